package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/internal/app/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return New(db)
}

func testUsername() string {
	return "it_" + uuid.NewString()[:8]
}

func TestCreateUserWithRootNest(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	username := testUsername()
	u, root, err := store.CreateUser(ctx,
		user.User{Username: username, PasswordHash: "x"},
		nest.Nest{Nestname: "Bookmarks"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if !root.DefaultRootNest {
		t.Fatalf("root nest flag not set")
	}

	got, err := store.GetNestByName(ctx, u.ID, "Bookmarks")
	if err != nil {
		t.Fatalf("get root nest: %v", err)
	}
	if got.ID != root.ID {
		t.Fatalf("root nest mismatch: %q vs %q", got.ID, root.ID)
	}

	// The unique index on lower(username) surfaces as ErrDuplicate.
	_, _, err = store.CreateUser(ctx,
		user.User{Username: username, PasswordHash: "x"},
		nest.Nest{Nestname: "Bookmarks"})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected duplicate username, got %v", err)
	}
}

func TestCreateUserRollsBackOnNestConflict(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, root, err := store.CreateUser(ctx,
		user.User{Username: testUsername(), PasswordHash: "x"},
		nest.Nest{Nestname: "Bookmarks"})
	if err != nil {
		t.Fatalf("create first user: %v", err)
	}

	// Reusing an existing nest id makes the second insert of the
	// transaction fail; the user row must roll back with it.
	username := testUsername()
	_, _, err = store.CreateUser(ctx,
		user.User{Username: username, PasswordHash: "x"},
		nest.Nest{ID: root.ID, Nestname: "Bookmarks"})
	if !errors.Is(err, storage.ErrDuplicate) {
		t.Fatalf("expected duplicate from nest id conflict, got %v", err)
	}
	if _, err := store.GetUserByUsername(ctx, username); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected user rolled back, got %v", err)
	}
}

func TestDeleteExpiredFreetsReturnsIDs(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u, _, err := store.CreateUser(ctx,
		user.User{Username: testUsername(), PasswordHash: "x"},
		nest.Nest{Nestname: "Bookmarks"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	past := time.Now().UTC().Add(-time.Minute)
	f, err := store.CreateFreet(ctx, freet.Freet{AuthorID: u.ID, Content: "fleeting", ExpiringDate: &past})
	if err != nil {
		t.Fatalf("create freet: %v", err)
	}

	removed, err := store.DeleteExpiredFreets(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	found := false
	for _, id := range removed {
		if id == f.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s among removed ids %v", f.ID, removed)
	}
	if _, err := store.GetFreet(ctx, f.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected freet gone, got %v", err)
	}
}
