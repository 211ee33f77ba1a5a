// Package drafts implements freet drafts: unpublished content private to
// its author.
package drafts

import (
	"context"
	"errors"

	svcerrors "github.com/fritterhq/fritter/internal/errors"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/services/freets"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/pkg/logger"
)

// Service manages freet drafts.
type Service struct {
	store storage.DraftStore
	log   *logger.Logger
}

// New constructs a draft service.
func New(store storage.DraftStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("drafts")
	}
	return &Service{store: store, log: log}
}

// Create saves a new draft for the author. Draft content follows the same
// rules as published freets.
func (s *Service) Create(ctx context.Context, authorID, content string) (freet.Draft, error) {
	if err := freets.ValidateContent(content); err != nil {
		return freet.Draft{}, err
	}
	d, err := s.store.CreateDraft(ctx, freet.Draft{AuthorID: authorID, Content: content})
	if err != nil {
		return freet.Draft{}, err
	}
	s.log.WithField("draft_id", d.ID).WithField("author_id", authorID).Info("draft created")
	return d, nil
}

// Update replaces the draft content. Only the author may edit; a foreign
// draft reads as missing so drafts stay invisible across accounts.
func (s *Service) Update(ctx context.Context, userID, draftID, content string) (freet.Draft, error) {
	d, err := s.get(ctx, userID, draftID)
	if err != nil {
		return freet.Draft{}, err
	}
	if err := freets.ValidateContent(content); err != nil {
		return freet.Draft{}, err
	}
	d.Content = content
	return s.store.UpdateDraft(ctx, d)
}

// Get returns the caller's draft.
func (s *Service) Get(ctx context.Context, userID, draftID string) (freet.Draft, error) {
	return s.get(ctx, userID, draftID)
}

// ListByAuthor returns the caller's drafts, newest first.
func (s *Service) ListByAuthor(ctx context.Context, userID string) ([]freet.Draft, error) {
	return s.store.ListDraftsByAuthor(ctx, userID)
}

// Delete removes the caller's draft.
func (s *Service) Delete(ctx context.Context, userID, draftID string) error {
	if _, err := s.get(ctx, userID, draftID); err != nil {
		return err
	}
	return s.store.DeleteDraft(ctx, draftID)
}

func (s *Service) get(ctx context.Context, userID, draftID string) (freet.Draft, error) {
	d, err := s.store.GetDraft(ctx, draftID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return freet.Draft{}, svcerrors.NotFound("Freet draft with draft ID %s does not exist.", draftID)
		}
		return freet.Draft{}, err
	}
	if d.AuthorID != userID {
		// Foreign drafts read as missing rather than forbidden.
		return freet.Draft{}, svcerrors.NotFound("Freet draft with draft ID %s does not exist.", draftID)
	}
	return d, nil
}
