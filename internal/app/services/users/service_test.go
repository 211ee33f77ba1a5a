package users

import (
	"context"
	"testing"
	"time"

	svcerrors "github.com/fritterhq/fritter/internal/errors"

	"github.com/fritterhq/fritter/internal/app/storage/memory"
)

func newService(store *memory.Store) *Service {
	return New(store, store, store, store, store, store, time.Hour, nil)
}

func TestRegisterCreatesRootNest(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID == "" {
		t.Fatalf("expected id to be generated")
	}

	nests, err := store.ListNestsByAuthor(ctx, u.ID)
	if err != nil {
		t.Fatalf("list nests: %v", err)
	}
	if len(nests) != 1 {
		t.Fatalf("expected 1 nest, got %d", len(nests))
	}
	if !nests[0].DefaultRootNest || nests[0].Nestname != RootNestName {
		t.Fatalf("expected default root nest %q, got %+v", RootNestName, nests[0])
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(memory.New())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "not a name", "pw"); !svcerrors.IsKind(err, svcerrors.KindValidation) {
		t.Fatalf("expected validation error for bad username, got %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "  "); !svcerrors.IsKind(err, svcerrors.KindValidation) {
		t.Fatalf("expected validation error for blank password, got %v", err)
	}

	if _, err := svc.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "pw"); !svcerrors.IsKind(err, svcerrors.KindConflict) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}
}

func TestLoginAndResolve(t *testing.T) {
	svc := newService(memory.New())
	ctx := context.Background()

	u, err := svc.Register(ctx, "bob", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "bob", "wrong"); !svcerrors.IsKind(err, svcerrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for bad password, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody", "secret"); !svcerrors.IsKind(err, svcerrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for unknown user, got %v", err)
	}

	sess, logged, err := svc.Login(ctx, "bob", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if logged.ID != u.ID {
		t.Fatalf("logged in as wrong user")
	}

	resolved, err := svc.Resolve(ctx, sess.Token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ID != u.ID {
		t.Fatalf("resolved wrong user")
	}

	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := svc.Resolve(ctx, sess.Token); !svcerrors.IsKind(err, svcerrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized after logout, got %v", err)
	}

	// Logging out twice is not an error.
	if err := svc.Logout(ctx, sess.Token); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestExpiredSessionRevokedOnResolve(t *testing.T) {
	store := memory.New()
	svc := New(store, store, store, store, store, store, time.Nanosecond, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol", "pw"); err != nil {
		t.Fatalf("register: %v", err)
	}
	sess, _, err := svc.Login(ctx, "carol", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	time.Sleep(time.Millisecond)
	if _, err := svc.Resolve(ctx, sess.Token); !svcerrors.IsKind(err, svcerrors.KindUnauthorized) {
		t.Fatalf("expected unauthorized for expired session, got %v", err)
	}
}

func TestDeleteAccountCascades(t *testing.T) {
	store := memory.New()
	svc := newService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, "dave", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	sess, _, err := svc.Login(ctx, "dave", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := svc.DeleteAccount(ctx, u.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	if _, err := svc.Get(ctx, u.ID); !svcerrors.IsKind(err, svcerrors.KindNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
	nests, err := store.ListNestsByAuthor(ctx, u.ID)
	if err != nil {
		t.Fatalf("list nests: %v", err)
	}
	if len(nests) != 0 {
		t.Fatalf("expected nests removed, got %d", len(nests))
	}
	if _, err := svc.Resolve(ctx, sess.Token); !svcerrors.IsKind(err, svcerrors.KindUnauthorized) {
		t.Fatalf("expected sessions revoked, got %v", err)
	}
}
