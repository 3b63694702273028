// README: Fast-path availability cache backed by Redis; advisory, never the source of truth.
package availability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"trego/internal/types"
)

const (
	activeRideKeyFmt       = "driver:%d:active_ride"
	availableDriversKeyFmt = "city:%d:available_drivers"
)

// Store caches which driver is busy with which ride, and which drivers are
// free per city. Writes swallow failures (log and report false); reads
// return an error only when Redis itself is unreachable, so callers can fall
// back to the durable store.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewStore builds the cache. ttl bounds how long an active-ride entry can
// survive a missed cleanup path.
func NewStore(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Store {
	return &Store{rdb: rdb, ttl: ttl, log: log}
}

func (s *Store) SetActiveRide(ctx context.Context, driverID, rideID types.ID) bool {
	if err := s.rdb.Set(ctx, activeRideKey(driverID), int64(rideID), s.ttl).Err(); err != nil {
		s.log.Warn("failed to cache active ride",
			zap.Int64("driver_id", int64(driverID)), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) ClearActiveRide(ctx context.Context, driverID types.ID) bool {
	if err := s.rdb.Del(ctx, activeRideKey(driverID)).Err(); err != nil {
		s.log.Warn("failed to clear active ride",
			zap.Int64("driver_id", int64(driverID)), zap.Error(err))
		return false
	}
	return true
}

// ActiveRide returns the driver's cached active ride. A missing key means
// the driver is not busy as far as the cache knows; an error means the cache
// is unavailable and the caller must consult the store instead.
func (s *Store) ActiveRide(ctx context.Context, driverID types.ID) (types.ID, bool, error) {
	val, err := s.rdb.Get(ctx, activeRideKey(driverID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	id, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		s.log.Warn("corrupt active ride entry, ignoring",
			zap.Int64("driver_id", int64(driverID)), zap.String("value", val))
		return 0, false, nil
	}
	return types.ID(id), true, nil
}

func (s *Store) AddAvailableDriver(ctx context.Context, cityID, driverID types.ID) bool {
	if err := s.rdb.SAdd(ctx, availableDriversKey(cityID), int64(driverID)).Err(); err != nil {
		s.log.Warn("failed to add available driver",
			zap.Int64("city_id", int64(cityID)), zap.Int64("driver_id", int64(driverID)), zap.Error(err))
		return false
	}
	return true
}

func (s *Store) RemoveAvailableDriver(ctx context.Context, cityID, driverID types.ID) bool {
	if err := s.rdb.SRem(ctx, availableDriversKey(cityID), int64(driverID)).Err(); err != nil {
		s.log.Warn("failed to remove available driver",
			zap.Int64("city_id", int64(cityID)), zap.Int64("driver_id", int64(driverID)), zap.Error(err))
		return false
	}
	return true
}

// AvailableDrivers lists the cached free drivers in a city. Errors mean the
// cache is unavailable; callers fall back to the user store.
func (s *Store) AvailableDrivers(ctx context.Context, cityID types.ID) ([]types.ID, error) {
	members, err := s.rdb.SMembers(ctx, availableDriversKey(cityID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, types.ID(id))
	}
	return ids, nil
}

func activeRideKey(driverID types.ID) string {
	return fmt.Sprintf(activeRideKeyFmt, int64(driverID))
}

func availableDriversKey(cityID types.ID) string {
	return fmt.Sprintf(availableDriversKeyFmt, int64(cityID))
}
