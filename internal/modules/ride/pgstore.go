// README: Ride store backed by PostgreSQL; row-level locking via SELECT FOR UPDATE.
package ride

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trego/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const rideColumns = `
	id, rider_id, driver_id, vehicle_id, city_id, status,
	pickup_location, dropoff_location, cancelled_by, created_at,
	assigned_at, accepted_at, started_at, completed_at, cancelled_at`

func (s *PGStore) Create(ctx context.Context, r *Ride) error {
	row := s.db.QueryRow(ctx, `
		INSERT INTO rides (
			rider_id, driver_id, vehicle_id, city_id, status,
			pickup_location, dropoff_location, cancelled_by, created_at,
			assigned_at, accepted_at, started_at, completed_at, cancelled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		int64(r.RiderID),
		toInt64Ptr(r.DriverID),
		toInt64Ptr(r.VehicleID),
		toInt64Ptr(r.CityID),
		string(r.Status),
		r.PickupLocation,
		r.DropoffLocation,
		nullableCancelActor(r.CancelledBy),
		r.CreatedAt,
		r.AssignedAt, r.AcceptedAt, r.StartedAt, r.CompletedAt, r.CancelledAt,
	)
	var id int64
	if err := row.Scan(&id); err != nil {
		return err
	}
	r.ID = types.ID(id)
	return nil
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1`, int64(id))
	return scanRide(row)
}

// UpdateLocked reads the ride under an exclusive row lock, applies fn, and
// persists the result. fn returning an error rolls back with no mutation.
// The critical section is a single-row read-modify-write; callers must not
// do I/O inside fn.
func (s *PGStore) UpdateLocked(ctx context.Context, id types.ID, fn func(*Ride) error) (*Ride, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+rideColumns+` FROM rides WHERE id = $1 FOR UPDATE`, int64(id))
	r, err := scanRide(row)
	if err != nil {
		return nil, err
	}
	if err := fn(r); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE rides
		SET status = $1,
		    driver_id = $2,
		    cancelled_by = $3,
		    assigned_at = $4,
		    accepted_at = $5,
		    started_at = $6,
		    completed_at = $7,
		    cancelled_at = $8
		WHERE id = $9`,
		string(r.Status),
		toInt64Ptr(r.DriverID),
		nullableCancelActor(r.CancelledBy),
		r.AssignedAt, r.AcceptedAt, r.StartedAt, r.CompletedAt, r.CancelledAt,
		int64(r.ID),
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PGStore) FindActiveByDriver(ctx context.Context, driverID types.ID) (*Ride, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE driver_id = $1 AND status IN ('assigned','accepted','started')
		LIMIT 1`, int64(driverID),
	)
	r, err := scanRide(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return r, err
}

func (s *PGStore) CountAssignedSince(ctx context.Context, driverID types.ID, since time.Time) (int, error) {
	row := s.db.QueryRow(ctx, `
		SELECT count(*) FROM rides
		WHERE driver_id = $1 AND assigned_at >= $2`, int64(driverID), since,
	)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *PGStore) ListRequestedBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		WHERE status = 'requested' AND created_at < $1
		ORDER BY created_at
		LIMIT $2`, cutoff, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func (s *PGStore) List(ctx context.Context, limit, offset int) ([]*Ride, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+rideColumns+`
		FROM rides
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRides(rows)
}

func scanRide(row pgx.Row) (*Ride, error) {
	var r Ride
	var driverID, vehicleID, cityID sql.NullInt64
	var cancelledBy sql.NullString
	var assignedAt, acceptedAt, startedAt, completedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&r.ID, &r.RiderID, &driverID, &vehicleID, &cityID, &r.Status,
		&r.PickupLocation, &r.DropoffLocation, &cancelledBy, &r.CreatedAt,
		&assignedAt, &acceptedAt, &startedAt, &completedAt, &cancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.DriverID = toIDPtr(driverID)
	r.VehicleID = toIDPtr(vehicleID)
	r.CityID = toIDPtr(cityID)
	if cancelledBy.Valid {
		r.CancelledBy = CancelActor(cancelledBy.String)
	}
	r.AssignedAt = toTimePtr(assignedAt)
	r.AcceptedAt = toTimePtr(acceptedAt)
	r.StartedAt = toTimePtr(startedAt)
	r.CompletedAt = toTimePtr(completedAt)
	r.CancelledAt = toTimePtr(cancelledAt)
	return &r, nil
}

func collectRides(rows pgx.Rows) ([]*Ride, error) {
	var out []*Ride
	for rows.Next() {
		r, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func toInt64Ptr(v *types.ID) *int64 {
	if v == nil {
		return nil
	}
	n := int64(*v)
	return &n
}

func toIDPtr(v sql.NullInt64) *types.ID {
	if !v.Valid {
		return nil
	}
	id := types.ID(v.Int64)
	return &id
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func nullableCancelActor(v CancelActor) *string {
	if v == "" {
		return nil
	}
	s := string(v)
	return &s
}
