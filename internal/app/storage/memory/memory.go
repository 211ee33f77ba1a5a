package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/session"
	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is safe
// for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu           sync.RWMutex
	users        map[string]user.User
	usersByName  map[string]string
	sessions     map[string]session.Session
	freets       map[string]freet.Freet
	drafts       map[string]freet.Draft
	interactions map[string]interaction.Interaction
	nests        map[string]nest.Nest
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.FreetStore = (*Store)(nil)
var _ storage.DraftStore = (*Store)(nil)
var _ storage.InteractionStore = (*Store)(nil)
var _ storage.NestStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		users:        make(map[string]user.User),
		usersByName:  make(map[string]string),
		sessions:     make(map[string]session.Session),
		freets:       make(map[string]freet.Freet),
		drafts:       make(map[string]freet.Draft),
		interactions: make(map[string]interaction.Interaction),
		nests:        make(map[string]nest.Nest),
	}
}

// UserStore implementation ----------------------------------------------------

func (s *Store) CreateUser(_ context.Context, u user.User, rootNest nest.Nest) (user.User, nest.Nest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(u.Username)
	if _, exists := s.usersByName[key]; exists {
		return user.User{}, nest.Nest{}, storage.ErrDuplicate
	}

	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = now
	u.UpdatedAt = now

	if rootNest.ID == "" {
		rootNest.ID = uuid.NewString()
	}
	rootNest.AuthorID = u.ID
	rootNest.DefaultRootNest = true
	rootNest.DateCreated = now

	s.users[u.ID] = u
	s.usersByName[key] = u.ID
	s.nests[rootNest.ID] = rootNest
	return u, rootNest, nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByName[strings.ToLower(username)]
	if !ok {
		return user.User{}, storage.ErrNotFound
	}
	return s.users[id], nil
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return storage.ErrNotFound
	}
	delete(s.usersByName, strings.ToLower(u.Username))
	delete(s.users, id)
	return nil
}

// SessionStore implementation -------------------------------------------------

func (s *Store) CreateSession(_ context.Context, sess session.Session) (session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess.Token == "" {
		sess.Token = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	s.sessions[sess.Token] = sess
	return sess, nil
}

func (s *Store) GetSession(_ context.Context, token string) (session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[token]
	if !ok {
		return session.Session{}, storage.ErrNotFound
	}
	return sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return storage.ErrNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteSessionsByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, token)
		}
	}
	return nil
}

// FreetStore implementation ---------------------------------------------------

func (s *Store) CreateFreet(_ context.Context, f freet.Freet) (freet.Freet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if f.DateCreated.IsZero() {
		f.DateCreated = now
		f.DateModified = now
	}
	f.ExpiringDate = cloneTime(f.ExpiringDate)
	s.freets[f.ID] = f
	return cloneFreet(f), nil
}

func (s *Store) GetFreet(_ context.Context, id string) (freet.Freet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.freets[id]
	if !ok {
		return freet.Freet{}, storage.ErrNotFound
	}
	return cloneFreet(f), nil
}

func (s *Store) ListFreets(_ context.Context) ([]freet.Freet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []freet.Freet
	for _, f := range s.freets {
		result = append(result, cloneFreet(f))
	}
	sortFreetsNewestFirst(result)
	return result, nil
}

func (s *Store) ListFreetsByAuthor(_ context.Context, authorID string) ([]freet.Freet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []freet.Freet
	for _, f := range s.freets {
		if f.AuthorID == authorID {
			result = append(result, cloneFreet(f))
		}
	}
	sortFreetsNewestFirst(result)
	return result, nil
}

func (s *Store) DeleteFreet(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.freets[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.freets, id)
	return nil
}

func (s *Store) DeleteFreetsByAuthor(_ context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, f := range s.freets {
		if f.AuthorID == authorID {
			delete(s.freets, id)
		}
	}
	return nil
}

func (s *Store) DeleteExpiredFreets(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	var removed []string
	for id, f := range s.freets {
		if f.Expired(now) {
			delete(s.freets, id)
			removed = append(removed, id)
		}
	}
	return removed, nil
}

// DraftStore implementation ---------------------------------------------------

func (s *Store) CreateDraft(_ context.Context, d freet.Draft) (freet.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.DateCreated = now
	d.DateModified = now
	s.drafts[d.ID] = d
	return d, nil
}

func (s *Store) UpdateDraft(_ context.Context, d freet.Draft) (freet.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.drafts[d.ID]
	if !ok {
		return freet.Draft{}, storage.ErrNotFound
	}
	d.AuthorID = original.AuthorID
	d.DateCreated = original.DateCreated
	d.DateModified = time.Now().UTC()
	s.drafts[d.ID] = d
	return d, nil
}

func (s *Store) GetDraft(_ context.Context, id string) (freet.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.drafts[id]
	if !ok {
		return freet.Draft{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListDraftsByAuthor(_ context.Context, authorID string) ([]freet.Draft, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []freet.Draft
	for _, d := range s.drafts {
		if d.AuthorID == authorID {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateCreated.After(result[j].DateCreated)
	})
	return result, nil
}

func (s *Store) DeleteDraft(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.drafts[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.drafts, id)
	return nil
}

func (s *Store) DeleteDraftsByAuthor(_ context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, d := range s.drafts {
		if d.AuthorID == authorID {
			delete(s.drafts, id)
		}
	}
	return nil
}

// InteractionStore implementation ---------------------------------------------

func (s *Store) CreateInteraction(_ context.Context, rec interaction.Interaction) (interaction.Interaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DateCreated.IsZero() {
		rec.DateCreated = time.Now().UTC()
	}
	rec.ExpiringDate = cloneTime(rec.ExpiringDate)
	s.interactions[rec.ID] = rec
	return cloneInteraction(rec), nil
}

func (s *Store) GetInteraction(_ context.Context, kind interaction.Kind, id string) (interaction.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.interactions[id]
	if !ok || rec.Kind != kind {
		return interaction.Interaction{}, storage.ErrNotFound
	}
	return cloneInteraction(rec), nil
}

func (s *Store) ListInteractions(_ context.Context, kind interaction.Kind) ([]interaction.Interaction, error) {
	return s.listInteractions(func(rec interaction.Interaction) bool {
		return rec.Kind == kind
	})
}

func (s *Store) ListInteractionsByAuthor(_ context.Context, kind interaction.Kind, authorID string) ([]interaction.Interaction, error) {
	return s.listInteractions(func(rec interaction.Interaction) bool {
		return rec.Kind == kind && rec.AuthorID == authorID
	})
}

func (s *Store) ListInteractionsByFreet(_ context.Context, kind interaction.Kind, freetID string) ([]interaction.Interaction, error) {
	return s.listInteractions(func(rec interaction.Interaction) bool {
		return rec.Kind == kind && rec.OriginalFreet == freetID
	})
}

func (s *Store) ListInteractionsByNest(_ context.Context, nestID string) ([]interaction.Interaction, error) {
	return s.listInteractions(func(rec interaction.Interaction) bool {
		return rec.Kind == interaction.KindBookmark && rec.NestID == nestID
	})
}

func (s *Store) listInteractions(keep func(interaction.Interaction) bool) ([]interaction.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []interaction.Interaction
	for _, rec := range s.interactions {
		if keep(rec) {
			result = append(result, cloneInteraction(rec))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateCreated.After(result[j].DateCreated)
	})
	return result, nil
}

func (s *Store) DeleteInteraction(_ context.Context, kind interaction.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.interactions[id]
	if !ok || rec.Kind != kind {
		return storage.ErrNotFound
	}
	delete(s.interactions, id)
	return nil
}

func (s *Store) DeleteInteractionsByAuthor(_ context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.interactions {
		if rec.AuthorID == authorID {
			delete(s.interactions, id)
		}
	}
	return nil
}

func (s *Store) DeleteInteractionsByFreet(_ context.Context, freetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.interactions {
		if rec.OriginalFreet == freetID {
			delete(s.interactions, id)
		}
	}
	return nil
}

func (s *Store) DeleteInteractionsByNest(_ context.Context, nestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, rec := range s.interactions {
		if rec.Kind == interaction.KindBookmark && rec.NestID == nestID {
			delete(s.interactions, id)
		}
	}
	return nil
}

func (s *Store) DeleteExpiredInteractions(_ context.Context, kind interaction.Kind) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	removed := 0
	for id, rec := range s.interactions {
		if rec.Kind == kind && rec.Expired(now) {
			delete(s.interactions, id)
			removed++
		}
	}
	return removed, nil
}

// NestStore implementation ----------------------------------------------------

func (s *Store) CreateNest(_ context.Context, n nest.Nest) (nest.Nest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.DateCreated.IsZero() {
		n.DateCreated = time.Now().UTC()
	}
	s.nests[n.ID] = n
	return n, nil
}

func (s *Store) GetNest(_ context.Context, id string) (nest.Nest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nests[id]
	if !ok {
		return nest.Nest{}, storage.ErrNotFound
	}
	return n, nil
}

func (s *Store) GetNestByName(_ context.Context, authorID, nestname string) (nest.Nest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, n := range s.nests {
		if n.AuthorID == authorID && strings.EqualFold(n.Nestname, nestname) {
			return n, nil
		}
	}
	return nest.Nest{}, storage.ErrNotFound
}

func (s *Store) ListNestsByAuthor(_ context.Context, authorID string) ([]nest.Nest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []nest.Nest
	for _, n := range s.nests {
		if n.AuthorID == authorID {
			result = append(result, n)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DateCreated.After(result[j].DateCreated)
	})
	return result, nil
}

func (s *Store) DeleteNest(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nests[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.nests, id)
	return nil
}

func (s *Store) DeleteNestsByAuthor(_ context.Context, authorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, n := range s.nests {
		if n.AuthorID == authorID {
			delete(s.nests, id)
		}
	}
	return nil
}

// helpers ---------------------------------------------------------------------

func sortFreetsNewestFirst(freets []freet.Freet) {
	sort.Slice(freets, func(i, j int) bool {
		return freets[i].DateCreated.After(freets[j].DateCreated)
	})
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneFreet(f freet.Freet) freet.Freet {
	f.ExpiringDate = cloneTime(f.ExpiringDate)
	return f
}

func cloneInteraction(rec interaction.Interaction) interaction.Interaction {
	rec.ExpiringDate = cloneTime(rec.ExpiringDate)
	return rec
}
