package drafts

import (
	"context"
	"strings"
	"testing"

	svcerrors "github.com/fritterhq/fritter/internal/errors"

	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/internal/app/storage/memory"
)

func seedUser(t *testing.T, store *memory.Store, username string) user.User {
	t.Helper()
	u, _, err := store.CreateUser(context.Background(),
		user.User{Username: username, PasswordHash: "x"},
		nest.Nest{Nestname: "Bookmarks", DefaultRootNest: true})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestDraftLifecycle(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice")

	d, err := svc.Create(ctx, alice.ID, "work in progress")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, alice.ID, d.ID, "second pass")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "second pass" {
		t.Fatalf("content not updated")
	}

	mine, err := svc.ListByAuthor(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(mine))
	}

	if err := svc.Delete(ctx, alice.ID, d.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice.ID, d.ID); !svcerrors.IsKind(err, svcerrors.KindNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestDraftContentRules(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice")

	if _, err := svc.Create(ctx, alice.ID, "  "); !svcerrors.IsKind(err, svcerrors.KindValidation) {
		t.Fatalf("expected validation error for blank draft, got %v", err)
	}
	if _, err := svc.Create(ctx, alice.ID, strings.Repeat("a", 141)); !svcerrors.IsKind(err, svcerrors.KindValidation) {
		t.Fatalf("expected validation error for overlong draft, got %v", err)
	}
}

func TestForeignDraftsInvisible(t *testing.T) {
	store := memory.New()
	svc := New(store, nil)
	ctx := context.Background()

	alice := seedUser(t, store, "alice")
	bob := seedUser(t, store, "bob")

	d, err := svc.Create(ctx, alice.ID, "private")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Get(ctx, bob.ID, d.ID); !svcerrors.IsKind(err, svcerrors.KindNotFound) {
		t.Fatalf("expected foreign draft to read as missing, got %v", err)
	}
	if _, err := svc.Update(ctx, bob.ID, d.ID, "stolen"); !svcerrors.IsKind(err, svcerrors.KindNotFound) {
		t.Fatalf("expected foreign update to read as missing, got %v", err)
	}

	theirs, err := svc.ListByAuthor(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(theirs) != 0 {
		t.Fatalf("expected no drafts for bob, got %d", len(theirs))
	}
}
