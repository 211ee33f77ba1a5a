// Package nests implements bookmark nests: named folders a user files
// bookmarks into. Every account owns a root nest that survives deletion
// attempts; deleting it only empties it.
package nests

import (
	"context"
	"errors"
	"regexp"
	"time"

	svcerrors "github.com/fritterhq/fritter/internal/errors"

	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/pkg/logger"
)

var nestnameRegex = regexp.MustCompile(`^\w+$`)

// Service manages bookmark nests.
type Service struct {
	users        storage.UserStore
	store        storage.NestStore
	interactions storage.InteractionStore
	log          *logger.Logger
}

// New constructs a nest service.
func New(users storage.UserStore, store storage.NestStore, interactions storage.InteractionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("nests")
	}
	return &Service{
		users:        users,
		store:        store,
		interactions: interactions,
		log:          log,
	}
}

// NestWithBookmarks pairs a nest with its unexpired bookmarks for listing.
type NestWithBookmarks struct {
	Nest      nest.Nest
	Bookmarks []interaction.Interaction
}

// Create adds a nest for the user. Nestnames are word characters only and
// unique per owner.
func (s *Service) Create(ctx context.Context, userID, nestname string) (nest.Nest, error) {
	if !nestnameRegex.MatchString(nestname) {
		return nest.Nest{}, svcerrors.Validation("Nestname must be a nonempty alphanumeric string.")
	}

	if _, err := s.store.GetNestByName(ctx, userID, nestname); err == nil {
		return nest.Nest{}, svcerrors.Conflict("A BookMarkNest with nestname %s already exists.", nestname)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nest.Nest{}, err
	}

	n, err := s.store.CreateNest(ctx, nest.Nest{Nestname: nestname, AuthorID: userID})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nest.Nest{}, svcerrors.Conflict("A BookMarkNest with nestname %s already exists.", nestname)
		}
		return nest.Nest{}, err
	}

	s.log.WithField("nest_id", n.ID).WithField("author_id", userID).Info("bookmarknest created")
	return n, nil
}

// Get returns a nest by id.
func (s *Service) Get(ctx context.Context, id string) (nest.Nest, error) {
	n, err := s.store.GetNest(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nest.Nest{}, svcerrors.NotFound("BookMarkNest with bookmarknest ID %s does not exist.", id)
	}
	return n, err
}

// ListByUsername returns the named user's nests with their bookmarks.
// Nests are private: only their owner may list them.
func (s *Service) ListByUsername(ctx context.Context, userID, username string) ([]NestWithBookmarks, error) {
	owner, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, svcerrors.NotFound("A user with username %s does not exist.", username)
		}
		return nil, err
	}
	if owner.ID != userID {
		return nil, svcerrors.Forbidden("Cannot view other users' bookmarknests.")
	}

	owned, err := s.store.ListNestsByAuthor(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	result := make([]NestWithBookmarks, 0, len(owned))
	for _, n := range owned {
		marks, err := s.interactions.ListInteractionsByNest(ctx, n.ID)
		if err != nil {
			return nil, err
		}
		live := make([]interaction.Interaction, 0, len(marks))
		for _, m := range marks {
			if !m.Expired(now) {
				live = append(live, m)
			}
		}
		result = append(result, NestWithBookmarks{Nest: n, Bookmarks: live})
	}
	return result, nil
}

// Delete empties the nest and, unless it is the root nest, removes it.
// The root nest always survives so every account keeps a place to file
// bookmarks.
func (s *Service) Delete(ctx context.Context, userID, nestID string) (emptiedRoot bool, err error) {
	n, err := s.Get(ctx, nestID)
	if err != nil {
		return false, err
	}
	if n.AuthorID != userID {
		return false, svcerrors.Forbidden("Cannot modify other users' bookmarknests.")
	}

	if err := s.interactions.DeleteInteractionsByNest(ctx, nestID); err != nil {
		return false, err
	}
	if n.DefaultRootNest {
		s.log.WithField("nest_id", nestID).Info("root bookmarknest emptied")
		return true, nil
	}

	if err := s.store.DeleteNest(ctx, nestID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return false, err
	}
	s.log.WithField("nest_id", nestID).WithField("author_id", userID).Info("bookmarknest deleted")
	return false, nil
}
