// README: Redis availability cache tests; require TREGO_TEST_REDIS.
package availability

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trego/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("TREGO_TEST_REDIS")
	if addr == "" {
		t.Skip("TREGO_TEST_REDIS not set; skipping Redis-backed cache tests")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	t.Cleanup(func() { rdb.Close() })

	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	return NewStore(rdb, time.Hour, zap.NewNop())
}

func TestActiveRideRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, found, err := store.ActiveRide(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "missing key means not busy")

	assert.True(t, store.SetActiveRide(ctx, 1, 42))
	id, found, err := store.ActiveRide(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, types.ID(42), id)

	assert.True(t, store.ClearActiveRide(ctx, 1))
	_, found, err = store.ActiveRide(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestActiveRideEntryExpires(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.True(t, store.SetActiveRide(ctx, 1, 42))
	ttl, err := store.rdb.TTL(ctx, activeRideKey(1)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0), "active-ride entries must carry a TTL")
}

func TestAvailableDriversSet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	assert.True(t, store.AddAvailableDriver(ctx, 7, 1))
	assert.True(t, store.AddAvailableDriver(ctx, 7, 2))
	assert.True(t, store.AddAvailableDriver(ctx, 7, 2), "SAdd is idempotent")

	ids, err := store.AvailableDrivers(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ID{1, 2}, ids)

	assert.True(t, store.RemoveAvailableDriver(ctx, 7, 1))
	ids, err = store.AvailableDrivers(ctx, 7)
	require.NoError(t, err)
	assert.ElementsMatch(t, []types.ID{2}, ids)

	ids, err = store.AvailableDrivers(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCorruptActiveRideEntryIgnored(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.rdb.Set(ctx, activeRideKey(1), "not-a-number", 0).Err())
	_, found, err := store.ActiveRide(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "corrupt entries read as not busy")
}
