// README: User store backed by PostgreSQL.
package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"trego/internal/types"
)

var ErrNotFound = errors.New("user not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Get(ctx context.Context, id types.ID) (*User, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, email, first_name, role, status, city_id
		FROM users
		WHERE id = $1`, int64(id),
	)

	var u User
	var firstName sql.NullString
	var cityID sql.NullInt64
	err := row.Scan(&u.ID, &u.Email, &firstName, &u.Role, &u.Status, &cityID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.FirstName = firstName.String
	if cityID.Valid {
		c := types.ID(cityID.Int64)
		u.CityID = &c
	}
	return &u, nil
}

// AvailableDriversInCity is the durable fallback for the city availability
// set: every active driver registered in the city. Slower than the cache but
// always correct.
func (s *Store) AvailableDriversInCity(ctx context.Context, cityID types.ID) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id FROM users
		WHERE role = 'driver' AND status = 'active' AND city_id = $1`, int64(cityID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []types.ID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, types.ID(id))
	}
	return ids, rows.Err()
}
