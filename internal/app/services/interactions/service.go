// Package interactions implements the four timed reactions (likes,
// downfreets, refreets, bookmarks) as one service parameterized by kind.
// The shared rules live here once: at most one record per (author, freet)
// per kind, a copied expiration snapshot taken from the freet at creation,
// lazy expiration on every read, and the like/downfreet mutual exclusion.
package interactions

import (
	"context"
	"errors"
	"time"

	svcerrors "github.com/fritterhq/fritter/internal/errors"
	"github.com/fritterhq/fritter/internal/metrics"

	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/pkg/logger"
)

// Service manages timed interactions.
type Service struct {
	users  storage.UserStore
	freets storage.FreetStore
	nests  storage.NestStore
	store  storage.InteractionStore
	log    *logger.Logger
}

// New constructs an interaction service.
func New(users storage.UserStore, freets storage.FreetStore, nests storage.NestStore, store storage.InteractionStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("interactions")
	}
	return &Service{
		users:  users,
		freets: freets,
		nests:  nests,
		store:  store,
		log:    log,
	}
}

// AddResult reports a created interaction and whether creating it canceled
// the mutually exclusive record (a like canceling a downfreet or the
// reverse).
type AddResult struct {
	Record           interaction.Interaction
	CanceledOpposite bool
}

// Add creates an interaction of the given kind on a freet. Bookmarks
// additionally require an owned nest. The freet's expiration is snapshotted
// onto the new record; it does not track later changes to the freet.
func (s *Service) Add(ctx context.Context, kind interaction.Kind, authorID, freetID, nestID string) (AddResult, error) {
	if !kind.Valid() {
		return AddResult{}, svcerrors.Validation("Unknown interaction kind %q.", string(kind))
	}

	f, err := s.freets.GetFreet(ctx, freetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return AddResult{}, svcerrors.NotFound("Freet with freet ID %s does not exist.", freetID)
		}
		return AddResult{}, err
	}
	now := time.Now().UTC()
	if f.Expired(now) {
		return AddResult{}, svcerrors.NotFound("Freet with freet ID %s does not exist.", freetID)
	}

	// Uniqueness is a scan over the freet's records, not a storage
	// constraint; concurrent submissions can race. Preserved as observed.
	existing, err := s.store.ListInteractionsByFreet(ctx, kind, freetID)
	if err != nil {
		return AddResult{}, err
	}
	for _, rec := range existing {
		if rec.AuthorID == authorID {
			return AddResult{}, svcerrors.Validation("User is not allowed to %s a Freet more than once.", verb(kind))
		}
	}

	if kind == interaction.KindBookmark {
		if err := s.checkNest(ctx, authorID, nestID); err != nil {
			return AddResult{}, err
		}
	} else {
		nestID = ""
	}

	rec, err := s.store.CreateInteraction(ctx, interaction.Interaction{
		Kind:          kind,
		AuthorID:      authorID,
		OriginalFreet: freetID,
		NestID:        nestID,
		DateCreated:   now,
		ExpiringDate:  f.ExpiringDate,
	})
	if err != nil {
		return AddResult{}, err
	}

	result := AddResult{Record: rec}
	if opposite, ok := kind.Opposite(); ok {
		canceled, err := s.cancelOpposite(ctx, opposite, authorID, freetID)
		if err != nil {
			return AddResult{}, err
		}
		result.CanceledOpposite = canceled
	}

	metrics.RecordInteractionCreated(string(kind))
	s.log.WithField("kind", string(kind)).
		WithField("freet_id", freetID).
		WithField("author_id", authorID).
		Info("interaction created")
	return result, nil
}

// cancelOpposite deletes the mutually exclusive record for the same
// (author, freet) pair, if present. Not atomic with the insert; a
// concurrent pair of requests can transiently hold both records.
func (s *Service) cancelOpposite(ctx context.Context, kind interaction.Kind, authorID, freetID string) (bool, error) {
	existing, err := s.store.ListInteractionsByFreet(ctx, kind, freetID)
	if err != nil {
		return false, err
	}
	for _, rec := range existing {
		if rec.AuthorID == authorID {
			if err := s.store.DeleteInteraction(ctx, kind, rec.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) checkNest(ctx context.Context, authorID, nestID string) error {
	if nestID == "" {
		return svcerrors.Validation("A bookmarknest id must be provided.")
	}
	n, err := s.nests.GetNest(ctx, nestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("BookMarkNest with bookmarknest ID %s does not exist.", nestID)
		}
		return err
	}
	if n.AuthorID != authorID {
		return svcerrors.Forbidden("Cannot add bookmarks to other users' bookmarknests.")
	}
	return nil
}

// Get returns the record only while its copied expiration, if any, is in
// the future; afterwards it reads as missing even though the row persists
// until a sweep.
func (s *Service) Get(ctx context.Context, kind interaction.Kind, id string) (interaction.Interaction, error) {
	rec, err := s.store.GetInteraction(ctx, kind, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return interaction.Interaction{}, notFound(kind, id)
		}
		return interaction.Interaction{}, err
	}
	if rec.Expired(time.Now().UTC()) {
		return interaction.Interaction{}, notFound(kind, id)
	}
	return rec, nil
}

// List returns all unexpired records of the kind, newest first.
func (s *Service) List(ctx context.Context, kind interaction.Kind) ([]interaction.Interaction, error) {
	all, err := s.store.ListInteractions(ctx, kind)
	if err != nil {
		return nil, err
	}
	return dropExpired(all), nil
}

// ListByAuthorID returns the author's unexpired records of the kind.
func (s *Service) ListByAuthorID(ctx context.Context, kind interaction.Kind, authorID string) ([]interaction.Interaction, error) {
	owned, err := s.store.ListInteractionsByAuthor(ctx, kind, authorID)
	if err != nil {
		return nil, err
	}
	return dropExpired(owned), nil
}

// ListByUsername resolves the username and returns their unexpired records
// of the kind.
func (s *Service) ListByUsername(ctx context.Context, kind interaction.Kind, username string) ([]interaction.Interaction, error) {
	author, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, svcerrors.NotFound("A user with username %s does not exist.", username)
		}
		return nil, err
	}
	return s.ListByAuthorID(ctx, kind, author.ID)
}

// ListByFreet returns every record of the kind on a freet, expired or not.
// It backs uniqueness checks and cascade deletes and is deliberately
// unfiltered.
func (s *Service) ListByFreet(ctx context.Context, kind interaction.Kind, freetID string) ([]interaction.Interaction, error) {
	return s.store.ListInteractionsByFreet(ctx, kind, freetID)
}

// Delete removes the caller's record, then opportunistically sweeps expired
// records of the same kind.
func (s *Service) Delete(ctx context.Context, kind interaction.Kind, userID, id string) error {
	rec, err := s.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	if rec.AuthorID != userID {
		return svcerrors.Forbidden("Cannot modify other users' %ss.", string(kind))
	}

	if err := s.store.DeleteInteraction(ctx, kind, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := s.SweepExpired(ctx, kind); err != nil {
		s.log.WithError(err).Warn("expiration sweep failed")
	}
	return nil
}

// SweepExpired physically removes expired records of the kind.
func (s *Service) SweepExpired(ctx context.Context, kind interaction.Kind) error {
	n, err := s.store.DeleteExpiredInteractions(ctx, kind)
	if err != nil {
		return err
	}
	metrics.RecordExpiredRemoved(string(kind)+"s", n)
	return nil
}

func notFound(kind interaction.Kind, id string) error {
	return svcerrors.NotFound("%s with ID %s does not exist.", title(kind), id)
}

func title(kind interaction.Kind) string {
	switch kind {
	case interaction.KindLike:
		return "Like"
	case interaction.KindDownfreet:
		return "DownFreet"
	case interaction.KindRefreet:
		return "ReFreet"
	case interaction.KindBookmark:
		return "BookMark"
	}
	return string(kind)
}

func verb(kind interaction.Kind) string {
	switch kind {
	case interaction.KindLike:
		return "like"
	case interaction.KindDownfreet:
		return "downfreet"
	case interaction.KindRefreet:
		return "refreet"
	case interaction.KindBookmark:
		return "bookmark"
	}
	return string(kind)
}

func dropExpired(recs []interaction.Interaction) []interaction.Interaction {
	now := time.Now().UTC()
	result := recs[:0]
	for _, rec := range recs {
		if !rec.Expired(now) {
			result = append(result, rec)
		}
	}
	return result
}
