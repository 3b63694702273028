// README: Postgres ride store tests; require TREGO_TEST_DSN.
package ride

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"trego/internal/types"
)

func TestPGStoreCreateGet(t *testing.T) {
	store, riderID := setupTestPGStore(t)
	ctx := context.Background()

	r := &Ride{
		RiderID:         riderID,
		Status:          StatusRequested,
		PickupLocation:  "1 Main St",
		DropoffLocation: "99 Elm St",
		CreatedAt:       time.Now().UTC(),
	}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.ID == 0 {
		t.Fatal("expected id to be assigned")
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusRequested || got.RiderID != riderID {
		t.Fatalf("unexpected ride: %+v", got)
	}
	if got.DriverID != nil || got.CancelledBy != "" {
		t.Fatalf("expected empty optional fields, got %+v", got)
	}

	if _, err := store.Get(ctx, r.ID+1000); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreUpdateLocked(t *testing.T) {
	store, riderID := setupTestPGStore(t)
	ctx := context.Background()

	r := &Ride{RiderID: riderID, Status: StatusRequested, PickupLocation: "a", DropoffLocation: "b", CreatedAt: time.Now().UTC()}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	driverID := insertTestUser(t, store.db, "driver")
	updated, err := store.UpdateLocked(ctx, r.ID, func(cur *Ride) error {
		cur.DriverID = &driverID
		cur.applyStatus(StatusAssigned, time.Now().UTC())
		return nil
	})
	if err != nil {
		t.Fatalf("update locked: %v", err)
	}
	if updated.Status != StatusAssigned || updated.AssignedAt == nil {
		t.Fatalf("unexpected updated ride: %+v", updated)
	}

	// fn error rolls back with no mutation.
	if _, err := store.UpdateLocked(ctx, r.ID, func(cur *Ride) error {
		cur.applyStatus(StatusCancelled, time.Now().UTC())
		return ErrInvalidTransition
	}); err != ErrInvalidTransition {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusAssigned || got.CancelledAt != nil {
		t.Fatalf("rolled-back update leaked: %+v", got)
	}
}

func TestPGStoreDriverQueries(t *testing.T) {
	store, riderID := setupTestPGStore(t)
	ctx := context.Background()
	driverID := insertTestUser(t, store.db, "driver")

	if active, err := store.FindActiveByDriver(ctx, driverID); err != nil || active != nil {
		t.Fatalf("expected no active ride, got %+v err=%v", active, err)
	}

	r := &Ride{RiderID: riderID, Status: StatusRequested, PickupLocation: "a", DropoffLocation: "b", CreatedAt: time.Now().UTC()}
	if err := store.Create(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.UpdateLocked(ctx, r.ID, func(cur *Ride) error {
		cur.DriverID = &driverID
		cur.applyStatus(StatusAssigned, time.Now().UTC())
		return nil
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	active, err := store.FindActiveByDriver(ctx, driverID)
	if err != nil {
		t.Fatalf("find active: %v", err)
	}
	if active == nil || active.ID != r.ID {
		t.Fatalf("expected active ride %d, got %+v", r.ID, active)
	}

	n, err := store.CountAssignedSince(ctx, driverID, time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("count assigned: %v", err)
	}
	if n != 1 {
		t.Fatalf("count assigned = %d, want 1", n)
	}
	n, err = store.CountAssignedSince(ctx, driverID, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("count assigned: %v", err)
	}
	if n != 0 {
		t.Fatalf("count assigned with future cutoff = %d, want 0", n)
	}
}

func TestPGStoreListRequestedBefore(t *testing.T) {
	store, riderID := setupTestPGStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := &Ride{RiderID: riderID, Status: StatusRequested, PickupLocation: "a", DropoffLocation: "b", CreatedAt: now.Add(-20 * time.Minute)}
	fresh := &Ride{RiderID: riderID, Status: StatusRequested, PickupLocation: "a", DropoffLocation: "b", CreatedAt: now}
	for _, r := range []*Ride{old, fresh} {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	stale, err := store.ListRequestedBefore(ctx, now.Add(-10*time.Minute), 50)
	if err != nil {
		t.Fatalf("list requested before: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != old.ID {
		t.Fatalf("expected only the old ride, got %+v", stale)
	}
}

func setupTestPGStore(t *testing.T) (*PGStore, types.ID) {
	t.Helper()

	dsn := os.Getenv("TREGO_TEST_DSN")
	if dsn == "" {
		t.Skip("TREGO_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE rides, users RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	store := NewPGStore(db)
	riderID := insertTestUser(t, db, "rider")
	return store, riderID
}

func insertTestUser(t *testing.T, db *pgxpool.Pool, role string) types.ID {
	t.Helper()
	var id int64
	err := db.QueryRow(context.Background(), `
		INSERT INTO users (email, role, status)
		VALUES (gen_random_uuid()::text || '@test.local', $1, 'active')
		RETURNING id`, role,
	).Scan(&id)
	if err != nil {
		t.Fatalf("insert test user: %v", err)
	}
	return types.ID(id)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
