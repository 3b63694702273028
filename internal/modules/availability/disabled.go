// README: Pass-through cache that always reports itself unavailable.
package availability

import (
	"context"
	"errors"

	"trego/internal/types"
)

var ErrUnavailable = errors.New("availability cache unavailable")

// Disabled forces every read onto the durable store and drops every write,
// exercising the engine's fallback paths without a live Redis.
type Disabled struct{}

func (Disabled) SetActiveRide(context.Context, types.ID, types.ID) bool { return false }

func (Disabled) ClearActiveRide(context.Context, types.ID) bool { return false }

func (Disabled) ActiveRide(context.Context, types.ID) (types.ID, bool, error) {
	return 0, false, ErrUnavailable
}

func (Disabled) AddAvailableDriver(context.Context, types.ID, types.ID) bool { return false }

func (Disabled) RemoveAvailableDriver(context.Context, types.ID, types.ID) bool { return false }

func (Disabled) AvailableDrivers(context.Context, types.ID) ([]types.ID, error) {
	return nil, ErrUnavailable
}
