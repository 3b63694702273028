// README: Ride lifecycle engine; the only component allowed to change a ride's status.
package ride

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trego/internal/config"
	"trego/internal/modules/user"
	"trego/internal/types"
)

var (
	ErrUnauthorized      = errors.New("not allowed")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrAdmissionDenied   = errors.New("accept denied")
	ErrNotFound          = errors.New("ride not found")
)

// Store is the durable ride record. UpdateLocked must hold an exclusive
// per-ride lock for the duration of fn: read fresh state, run fn to validate
// and mutate, persist only when fn returns nil.
type Store interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	UpdateLocked(ctx context.Context, id types.ID, fn func(*Ride) error) (*Ride, error)
	FindActiveByDriver(ctx context.Context, driverID types.ID) (*Ride, error)
	CountAssignedSince(ctx context.Context, driverID types.ID, since time.Time) (int, error)
	ListRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Ride, error)
	List(ctx context.Context, limit, offset int) ([]*Ride, error)
}

// Cache is the advisory fast-path index over the store. Writes report
// success as a bool and must never fail the caller; reads return an error
// only when the cache itself is unavailable, signalling the engine to fall
// back to the store.
type Cache interface {
	SetActiveRide(ctx context.Context, driverID, rideID types.ID) bool
	ClearActiveRide(ctx context.Context, driverID types.ID) bool
	ActiveRide(ctx context.Context, driverID types.ID) (types.ID, bool, error)
	AddAvailableDriver(ctx context.Context, cityID, driverID types.ID) bool
	RemoveAvailableDriver(ctx context.Context, cityID, driverID types.ID) bool
}

// Emitter hands lifecycle events to the async job layer. The engine never
// awaits delivery.
type Emitter interface {
	Emit(ctx context.Context, rideID types.ID, event string) error
}

type Service struct {
	store   Store
	cache   Cache
	emitter Emitter
	cfg     config.LifecycleConfig
	log     *zap.Logger
}

func NewService(store Store, cache Cache, emitter Emitter, cfg config.LifecycleConfig, log *zap.Logger) *Service {
	return &Service{store: store, cache: cache, emitter: emitter, cfg: cfg, log: log}
}

// Per-role cancellation windows. The transition table still gates every move;
// these narrow it further for non-admin actors.
var (
	riderCancelFrom  = []Status{StatusRequested, StatusAssigned}
	driverCancelFrom = []Status{StatusAssigned, StatusAccepted, StatusStarted}
)

type RequestCommand struct {
	PickupLocation  string
	DropoffLocation string
	CityID          *types.ID
	VehicleID       *types.ID
}

// Request creates a new ride in requested status on behalf of a rider.
func (s *Service) Request(ctx context.Context, actor *user.User, cmd RequestCommand) (*Ride, error) {
	if err := requireRole(actor, user.RoleRider); err != nil {
		return nil, err
	}
	r := &Ride{
		RiderID:         actor.ID,
		Status:          StatusRequested,
		PickupLocation:  cmd.PickupLocation,
		DropoffLocation: cmd.DropoffLocation,
		CityID:          cmd.CityID,
		VehicleID:       cmd.VehicleID,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// List returns rides for the admin console, newest first.
func (s *Service) List(ctx context.Context, actor *user.User, limit, offset int) ([]*Ride, error) {
	if err := requireRole(actor, user.RoleAdmin); err != nil {
		return nil, err
	}
	return s.store.List(ctx, limit, offset)
}

// Accept assigns a requested ride to the acting driver. The admission check
// (active ride, accept-storm guard) runs before the lock on purpose: it is
// advisory, and the locked precondition check remains the authoritative
// guard against double assignment.
func (s *Service) Accept(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleDriver); err != nil {
		return nil, err
	}
	if err := s.admitDriver(ctx, actor.ID, rideID); err != nil {
		return nil, err
	}

	var changed bool
	updated, err := s.store.UpdateLocked(ctx, rideID, func(r *Ride) error {
		if r.Status == StatusAssigned && r.DriverID != nil && *r.DriverID == actor.ID {
			return nil // retry of an accept that already won
		}
		if r.Status != StatusRequested || !CanTransition(r.Status, StatusAssigned) {
			return ErrInvalidTransition
		}
		d := actor.ID
		r.DriverID = &d
		r.applyStatus(StatusAssigned, time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.cache.SetActiveRide(ctx, actor.ID, updated.ID)
		if updated.CityID != nil {
			s.cache.RemoveAvailableDriver(ctx, *updated.CityID, actor.ID)
		}
		s.emit(ctx, updated.ID, EventAssigned)
	}
	return updated, nil
}

// Confirm is the driver's acknowledgement of an assignment, distinct from
// Accept: it moves the ride from assigned to accepted and is required before
// the trip can start.
func (s *Service) Confirm(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleDriver); err != nil {
		return nil, err
	}
	updated, _, err := s.driverTransition(ctx, rideID, actor, StatusAccepted, []Status{StatusAssigned})
	return updated, err
}

func (s *Service) Start(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleDriver); err != nil {
		return nil, err
	}
	updated, changed, err := s.driverTransition(ctx, rideID, actor, StatusStarted, []Status{StatusAccepted})
	if err != nil {
		return nil, err
	}
	if changed {
		s.emit(ctx, updated.ID, EventStarted)
	}
	return updated, nil
}

func (s *Service) Complete(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleDriver); err != nil {
		return nil, err
	}
	updated, changed, err := s.driverTransition(ctx, rideID, actor, StatusCompleted, []Status{StatusStarted})
	if err != nil {
		return nil, err
	}
	if changed {
		s.releaseDriver(ctx, actor.ID, updated.CityID)
		s.emit(ctx, updated.ID, EventCompleted)
		s.emit(ctx, updated.ID, EventFare)
	}
	return updated, nil
}

func (s *Service) DriverCancel(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleDriver); err != nil {
		return nil, err
	}
	var changed bool
	updated, err := s.store.UpdateLocked(ctx, rideID, func(r *Ride) error {
		if r.DriverID == nil || *r.DriverID != actor.ID {
			return fmt.Errorf("%w: not your ride", ErrUnauthorized)
		}
		if !statusIn(r.Status, driverCancelFrom) || !CanTransition(r.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		r.CancelledBy = CancelledByDriver
		r.applyStatus(StatusCancelled, time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.releaseDriver(ctx, actor.ID, updated.CityID)
		s.emit(ctx, updated.ID, EventCancelled)
	}
	return updated, nil
}

func (s *Service) RiderCancel(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleRider); err != nil {
		return nil, err
	}
	var changed bool
	var assignedDriver *types.ID
	updated, err := s.store.UpdateLocked(ctx, rideID, func(r *Ride) error {
		if r.RiderID != actor.ID {
			return fmt.Errorf("%w: not your ride", ErrUnauthorized)
		}
		if !statusIn(r.Status, riderCancelFrom) || !CanTransition(r.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		assignedDriver = r.DriverID
		r.CancelledBy = CancelledByRider
		r.applyStatus(StatusCancelled, time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		if assignedDriver != nil {
			s.releaseDriver(ctx, *assignedDriver, updated.CityID)
		}
		s.emit(ctx, updated.ID, EventCancelled)
	}
	return updated, nil
}

// AdminCancel force-cancels any non-terminal ride.
func (s *Service) AdminCancel(ctx context.Context, rideID types.ID, actor *user.User) (*Ride, error) {
	if err := requireRole(actor, user.RoleAdmin); err != nil {
		return nil, err
	}
	var changed bool
	var assignedDriver *types.ID
	updated, err := s.store.UpdateLocked(ctx, rideID, func(r *Ride) error {
		if r.Status.Terminal() || !CanTransition(r.Status, StatusCancelled) {
			return ErrInvalidTransition
		}
		assignedDriver = r.DriverID
		r.CancelledBy = CancelledByAdmin
		r.applyStatus(StatusCancelled, time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		if assignedDriver != nil {
			s.releaseDriver(ctx, *assignedDriver, updated.CityID)
		}
		s.emit(ctx, updated.ID, EventCancelled)
	}
	return updated, nil
}

// admitDriver rejects an accept before lock acquisition when the driver is
// already busy or is accepting too fast. The active-ride check asks the cache
// first and falls back to the store when the cache is unavailable; the
// accept-storm count always comes from the store so the guard holds with the
// cache down. A driver re-accepting the ride they already hold passes through
// so the locked no-op retry path can answer.
func (s *Service) admitDriver(ctx context.Context, driverID, rideID types.ID) error {
	if activeID, found, err := s.cache.ActiveRide(ctx, driverID); err != nil {
		s.log.Warn("active-ride cache unavailable, falling back to store",
			zap.Int64("driver_id", int64(driverID)), zap.Error(err))
		active, qerr := s.store.FindActiveByDriver(ctx, driverID)
		if qerr != nil {
			return qerr
		}
		if active != nil && active.ID != rideID {
			return fmt.Errorf("%w: driver already has active ride %d", ErrAdmissionDenied, active.ID)
		}
	} else if found && activeID != rideID {
		return fmt.Errorf("%w: driver already has active ride %d", ErrAdmissionDenied, activeID)
	}

	since := time.Now().UTC().Add(-s.cfg.AcceptWindow)
	n, err := s.store.CountAssignedSince(ctx, driverID, since)
	if err != nil {
		return err
	}
	if n >= s.cfg.AcceptLimit {
		return fmt.Errorf("%w: %d rides assigned within %s", ErrAdmissionDenied, n, s.cfg.AcceptWindow)
	}
	return nil
}

// driverTransition runs an ownership-checked status move under the ride lock.
// A repeat of an already-applied move is a no-op success (changed=false) so
// retries do not re-trigger side effects or rewrite timestamps.
func (s *Service) driverTransition(ctx context.Context, rideID types.ID, actor *user.User, to Status, from []Status) (*Ride, bool, error) {
	var changed bool
	updated, err := s.store.UpdateLocked(ctx, rideID, func(r *Ride) error {
		if r.DriverID == nil || *r.DriverID != actor.ID {
			return fmt.Errorf("%w: not your ride", ErrUnauthorized)
		}
		if r.Status == to {
			return nil
		}
		if !statusIn(r.Status, from) || !CanTransition(r.Status, to) {
			return ErrInvalidTransition
		}
		r.applyStatus(to, time.Now().UTC())
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return updated, changed, nil
}

// releaseDriver clears the driver's active-ride entry and restores their
// availability. Best effort: the cache logs its own failures.
func (s *Service) releaseDriver(ctx context.Context, driverID types.ID, cityID *types.ID) {
	s.cache.ClearActiveRide(ctx, driverID)
	if cityID != nil {
		s.cache.AddAvailableDriver(ctx, *cityID, driverID)
	}
}

func (s *Service) emit(ctx context.Context, rideID types.ID, event string) {
	if s.emitter == nil {
		return
	}
	if err := s.emitter.Emit(ctx, rideID, event); err != nil {
		s.log.Warn("event enqueue failed",
			zap.Int64("ride_id", int64(rideID)), zap.String("event", event), zap.Error(err))
	}
}

func requireRole(actor *user.User, role user.Role) error {
	if !actor.CanAct() {
		return fmt.Errorf("%w: account is not active", ErrUnauthorized)
	}
	if actor.Role != role {
		return fmt.Errorf("%w: %s only action", ErrUnauthorized, role)
	}
	return nil
}

func statusIn(s Status, set []Status) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
