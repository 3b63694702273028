// README: Disabled cache behavior tests.
package availability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisabledReportsUnavailable(t *testing.T) {
	ctx := context.Background()
	var c Disabled

	_, found, err := c.ActiveRide(ctx, 1)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, found)

	_, err = c.AvailableDrivers(ctx, 7)
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.False(t, c.SetActiveRide(ctx, 1, 42))
	assert.False(t, c.ClearActiveRide(ctx, 1))
	assert.False(t, c.AddAvailableDriver(ctx, 7, 1))
	assert.False(t, c.RemoveAvailableDriver(ctx, 7, 1))
}
