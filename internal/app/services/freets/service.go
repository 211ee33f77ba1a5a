// Package freets implements publishing, listing, and deleting freets,
// including the cascade to dependent interactions and the lazy expiration
// sweep.
package freets

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	svcerrors "github.com/fritterhq/fritter/internal/errors"
	"github.com/fritterhq/fritter/internal/metrics"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/pkg/logger"
)

// Service manages freets.
type Service struct {
	users        storage.UserStore
	store        storage.FreetStore
	interactions storage.InteractionStore
	log          *logger.Logger
}

// New constructs a freet service.
func New(users storage.UserStore, store storage.FreetStore, interactions storage.InteractionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("freets")
	}
	return &Service{
		users:        users,
		store:        store,
		interactions: interactions,
		log:          log,
	}
}

// ValidateContent applies the freet content rules. Blank content is a 400;
// overlong content is a 413. The split is historical and preserved.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return svcerrors.Validation("Freet content must be at least one character long.")
	}
	if len(content) > freet.MaxContentLength {
		return svcerrors.ValidationStatus(http.StatusRequestEntityTooLarge,
			"Freet content must be no more than %d characters.", freet.MaxContentLength)
	}
	return nil
}

// Create publishes a freet. The expiration, if any, was validated by the
// caller.
func (s *Service) Create(ctx context.Context, authorID, content string, expiringDate *time.Time) (freet.Freet, error) {
	if err := ValidateContent(content); err != nil {
		return freet.Freet{}, err
	}

	f, err := s.store.CreateFreet(ctx, freet.Freet{
		AuthorID:     authorID,
		Content:      content,
		ExpiringDate: expiringDate,
	})
	if err != nil {
		return freet.Freet{}, err
	}

	metrics.RecordFreetCreated()
	s.log.WithField("freet_id", f.ID).WithField("author_id", authorID).Info("freet created")
	return f, nil
}

// Get returns the freet, treating an expired one as missing even though the
// row may still exist.
func (s *Service) Get(ctx context.Context, id string) (freet.Freet, error) {
	f, err := s.store.GetFreet(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return freet.Freet{}, svcerrors.NotFound("Freet with freet ID %s does not exist.", id)
		}
		return freet.Freet{}, err
	}
	if f.Expired(time.Now().UTC()) {
		return freet.Freet{}, svcerrors.NotFound("Freet with freet ID %s does not exist.", id)
	}
	return f, nil
}

// List returns all unexpired freets, newest first.
func (s *Service) List(ctx context.Context) ([]freet.Freet, error) {
	all, err := s.store.ListFreets(ctx)
	if err != nil {
		return nil, err
	}
	return dropExpired(all), nil
}

// ListByUsername returns the author's unexpired freets.
func (s *Service) ListByUsername(ctx context.Context, username string) ([]freet.Freet, error) {
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, svcerrors.NotFound("A user with username %s does not exist.", username)
		}
		return nil, err
	}
	owned, err := s.store.ListFreetsByAuthor(ctx, author.ID)
	if err != nil {
		return nil, err
	}
	return dropExpired(owned), nil
}

// Delete removes the caller's freet, cascades to every interaction
// referencing it, then runs the expiration sweep.
func (s *Service) Delete(ctx context.Context, userID, freetID string) error {
	f, err := s.Get(ctx, freetID)
	if err != nil {
		return err
	}
	if f.AuthorID != userID {
		return svcerrors.Forbidden("Cannot modify other users' freets.")
	}

	if err := s.store.DeleteFreet(ctx, freetID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := s.interactions.DeleteInteractionsByFreet(ctx, freetID); err != nil {
		return err
	}
	if err := s.SweepExpired(ctx); err != nil {
		s.log.WithError(err).Warn("expiration sweep failed")
	}

	s.log.WithField("freet_id", freetID).WithField("author_id", userID).Info("freet deleted")
	return nil
}

// SweepExpired physically removes expired freets, the interactions that
// referenced them, and any interaction whose copied expiration has passed.
// It is best-effort and runs opportunistically on delete paths, never as a
// background job.
func (s *Service) SweepExpired(ctx context.Context) error {
	removed, err := s.store.DeleteExpiredFreets(ctx)
	if err != nil {
		return err
	}
	for _, id := range removed {
		if err := s.interactions.DeleteInteractionsByFreet(ctx, id); err != nil {
			return err
		}
	}
	metrics.RecordExpiredRemoved("freets", len(removed))

	for _, kind := range interaction.Kinds {
		n, err := s.interactions.DeleteExpiredInteractions(ctx, kind)
		if err != nil {
			return err
		}
		metrics.RecordExpiredRemoved(string(kind)+"s", n)
	}
	return nil
}

func dropExpired(freets []freet.Freet) []freet.Freet {
	now := time.Now().UTC()
	result := freets[:0]
	for _, f := range freets {
		if !f.Expired(now) {
			result = append(result, f)
		}
	}
	return result
}
