package storage

import (
	"context"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/session"
	"github.com/fritterhq/fritter/internal/app/domain/user"
)

// ErrNotFound is returned by stores when a lookup misses. The postgres
// store maps sql.ErrNoRows onto it so services never see driver errors.
var ErrNotFound = errNotFound{}

type errNotFound struct{}

func (errNotFound) Error() string { return "record not found" }

// ErrDuplicate is returned when an insert collides with an existing record
// the store treats as unique (usernames).
var ErrDuplicate = errDuplicate{}

type errDuplicate struct{}

func (errDuplicate) Error() string { return "record already exists" }

// UserStore persists account records.
type UserStore interface {
	// CreateUser inserts the user and their default root bookmark nest
	// atomically. Implementations must guarantee that a user never exists
	// without a root nest.
	CreateUser(ctx context.Context, u user.User, rootNest nest.Nest) (user.User, nest.Nest, error)
	GetUser(ctx context.Context, id string) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionStore persists login sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) (session.Session, error)
	GetSession(ctx context.Context, token string) (session.Session, error)
	DeleteSession(ctx context.Context, token string) error
	DeleteSessionsByUser(ctx context.Context, userID string) error
}

// FreetStore persists freets.
type FreetStore interface {
	CreateFreet(ctx context.Context, f freet.Freet) (freet.Freet, error)
	// GetFreet returns the row whether or not it has expired; callers apply
	// the expiration policy.
	GetFreet(ctx context.Context, id string) (freet.Freet, error)
	// ListFreets returns all freets newest-first.
	ListFreets(ctx context.Context) ([]freet.Freet, error)
	ListFreetsByAuthor(ctx context.Context, authorID string) ([]freet.Freet, error)
	DeleteFreet(ctx context.Context, id string) error
	DeleteFreetsByAuthor(ctx context.Context, authorID string) error
	// DeleteExpiredFreets removes freets whose expiration has passed and
	// returns their ids so dependent records can be cascaded.
	DeleteExpiredFreets(ctx context.Context) ([]string, error)
}

// DraftStore persists freet drafts.
type DraftStore interface {
	CreateDraft(ctx context.Context, d freet.Draft) (freet.Draft, error)
	UpdateDraft(ctx context.Context, d freet.Draft) (freet.Draft, error)
	GetDraft(ctx context.Context, id string) (freet.Draft, error)
	ListDraftsByAuthor(ctx context.Context, authorID string) ([]freet.Draft, error)
	DeleteDraft(ctx context.Context, id string) error
	DeleteDraftsByAuthor(ctx context.Context, authorID string) error
}

// InteractionStore persists likes, downfreets, refreets, and bookmarks as
// one record shape keyed by kind.
type InteractionStore interface {
	CreateInteraction(ctx context.Context, rec interaction.Interaction) (interaction.Interaction, error)
	// GetInteraction returns the row whether or not its copied expiration
	// has passed; callers apply the expiration policy.
	GetInteraction(ctx context.Context, kind interaction.Kind, id string) (interaction.Interaction, error)
	ListInteractions(ctx context.Context, kind interaction.Kind) ([]interaction.Interaction, error)
	ListInteractionsByAuthor(ctx context.Context, kind interaction.Kind, authorID string) ([]interaction.Interaction, error)
	// ListInteractionsByFreet is deliberately unfiltered: it backs the
	// uniqueness checks and cascade deletes, which must see expired rows.
	ListInteractionsByFreet(ctx context.Context, kind interaction.Kind, freetID string) ([]interaction.Interaction, error)
	ListInteractionsByNest(ctx context.Context, nestID string) ([]interaction.Interaction, error)
	DeleteInteraction(ctx context.Context, kind interaction.Kind, id string) error
	DeleteInteractionsByAuthor(ctx context.Context, authorID string) error
	DeleteInteractionsByFreet(ctx context.Context, freetID string) error
	DeleteInteractionsByNest(ctx context.Context, nestID string) error
	// DeleteExpiredInteractions removes rows of the kind whose copied
	// expiration has passed, returning how many went away.
	DeleteExpiredInteractions(ctx context.Context, kind interaction.Kind) (int, error)
}

// NestStore persists bookmark nests.
type NestStore interface {
	CreateNest(ctx context.Context, n nest.Nest) (nest.Nest, error)
	GetNest(ctx context.Context, id string) (nest.Nest, error)
	GetNestByName(ctx context.Context, authorID, nestname string) (nest.Nest, error)
	ListNestsByAuthor(ctx context.Context, authorID string) ([]nest.Nest, error)
	DeleteNest(ctx context.Context, id string) error
	DeleteNestsByAuthor(ctx context.Context, authorID string) error
}
