// README: In-memory ride store with a per-ride mutex map; single-process deployments and tests.
package ride

import (
	"context"
	"sort"
	"sync"
	"time"

	"trego/internal/types"
)

// MemStore implements Store with a per-ride mutex map. It provides the same
// locking discipline as the Postgres store for a single process sharing the
// data, which is all the unit and race tests need.
type MemStore struct {
	mu    sync.Mutex
	seq   int64
	rides map[types.ID]*Ride
	locks map[types.ID]*sync.Mutex
}

func NewMemStore() *MemStore {
	return &MemStore{
		rides: make(map[types.ID]*Ride),
		locks: make(map[types.ID]*sync.Mutex),
	}
}

func (s *MemStore) Create(_ context.Context, r *Ride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if r.ID == 0 {
		r.ID = types.ID(s.seq)
	}
	s.rides[r.ID] = cloneRide(r)
	s.locks[r.ID] = &sync.Mutex{}
	return nil
}

func (s *MemStore) Get(_ context.Context, id types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rides[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRide(r), nil
}

func (s *MemStore) UpdateLocked(_ context.Context, id types.ID, fn func(*Ride) error) (*Ride, error) {
	s.mu.Lock()
	lock, ok := s.locks[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	r := cloneRide(s.rides[id])
	s.mu.Unlock()

	if err := fn(r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.rides[id] = cloneRide(r)
	s.mu.Unlock()
	return r, nil
}

func (s *MemStore) FindActiveByDriver(_ context.Context, driverID types.ID) (*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rides {
		if r.DriverID != nil && *r.DriverID == driverID && statusIn(r.Status, DriverActiveStatuses) {
			return cloneRide(r), nil
		}
	}
	return nil, nil
}

func (s *MemStore) CountAssignedSince(_ context.Context, driverID types.ID, since time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rides {
		if r.DriverID != nil && *r.DriverID == driverID && r.AssignedAt != nil && !r.AssignedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemStore) ListRequestedBefore(_ context.Context, cutoff time.Time, limit int) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ride
	for _, r := range s.rides {
		if r.Status == StatusRequested && r.CreatedAt.Before(cutoff) {
			out = append(out, cloneRide(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) List(_ context.Context, limit, offset int) ([]*Ride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*Ride, 0, len(s.rides))
	for _, r := range s.rides {
		all = append(all, cloneRide(r))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func cloneRide(r *Ride) *Ride {
	c := *r
	c.DriverID = cloneID(r.DriverID)
	c.VehicleID = cloneID(r.VehicleID)
	c.CityID = cloneID(r.CityID)
	c.AssignedAt = cloneTime(r.AssignedAt)
	c.AcceptedAt = cloneTime(r.AcceptedAt)
	c.StartedAt = cloneTime(r.StartedAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.CancelledAt = cloneTime(r.CancelledAt)
	return &c
}

func cloneID(v *types.ID) *types.ID {
	if v == nil {
		return nil
	}
	id := *v
	return &id
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	t := *v
	return &t
}
