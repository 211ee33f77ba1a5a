// Package users implements account registration, login sessions, and
// account deletion with its cross-entity cascades.
package users

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	svcerrors "github.com/fritterhq/fritter/internal/errors"

	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/session"
	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/internal/app/storage"
	"github.com/fritterhq/fritter/pkg/logger"
)

var usernameRegex = regexp.MustCompile(`^\w+$`)

// RootNestName is the nestname given to the default root bookmark nest
// created alongside every account.
const RootNestName = "Bookmarks"

// Service manages user accounts and their login sessions.
type Service struct {
	store        storage.UserStore
	sessions     storage.SessionStore
	freets       storage.FreetStore
	drafts       storage.DraftStore
	interactions storage.InteractionStore
	nests        storage.NestStore
	sessionTTL   time.Duration
	log          *logger.Logger
}

// New constructs a user service.
func New(store storage.UserStore, sessions storage.SessionStore, freets storage.FreetStore, drafts storage.DraftStore, interactions storage.InteractionStore, nests storage.NestStore, sessionTTL time.Duration, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	if sessionTTL <= 0 {
		sessionTTL = 7 * 24 * time.Hour
	}
	return &Service{
		store:        store,
		sessions:     sessions,
		freets:       freets,
		drafts:       drafts,
		interactions: interactions,
		nests:        nests,
		sessionTTL:   sessionTTL,
		log:          log,
	}
}

// Register creates an account together with its default root bookmark nest.
func (s *Service) Register(ctx context.Context, username, password string) (user.User, error) {
	username = strings.TrimSpace(username)
	if !usernameRegex.MatchString(username) {
		return user.User{}, svcerrors.Validation("Username must be a nonempty alphanumeric string.")
	}
	if strings.TrimSpace(password) == "" {
		return user.User{}, svcerrors.Validation("Password must be nonempty.")
	}

	// Pre-check mirrors the storage unique index so the common case reports
	// a clean conflict instead of a driver error.
	if _, err := s.store.GetUserByUsername(ctx, username); err == nil {
		return user.User{}, svcerrors.Conflict("An account with username %s already exists.", username)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return user.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, err
	}

	u, _, err := s.store.CreateUser(ctx,
		user.User{Username: username, PasswordHash: string(hash)},
		nest.Nest{Nestname: RootNestName, DefaultRootNest: true},
	)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, svcerrors.Conflict("An account with username %s already exists.", username)
		}
		return user.User{}, err
	}

	s.log.WithField("user_id", u.ID).WithField("username", u.Username).Info("user registered")
	return u, nil
}

// Login verifies the credentials and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (session.Session, user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, user.User{}, svcerrors.Unauthorized("Invalid username or password.")
		}
		return session.Session{}, user.User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return session.Session{}, user.User{}, svcerrors.Unauthorized("Invalid username or password.")
	}

	now := time.Now().UTC()
	sess, err := s.sessions.CreateSession(ctx, session.Session{
		UserID:    u.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	})
	if err != nil {
		return session.Session{}, user.User{}, err
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return sess, u, nil
}

// Logout revokes the session. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	err := s.sessions.DeleteSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

// Resolve maps a session token to its user. Lapsed sessions are revoked on
// sight.
func (s *Service) Resolve(ctx context.Context, token string) (user.User, error) {
	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.Unauthorized("Session is not recognized.")
		}
		return user.User{}, err
	}
	if sess.Expired(time.Now().UTC()) {
		_ = s.sessions.DeleteSession(ctx, sess.Token)
		return user.User{}, svcerrors.Unauthorized("Session has expired.")
	}
	u, err := s.store.GetUser(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerrors.Unauthorized("Session is not recognized.")
		}
		return user.User{}, err
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, svcerrors.NotFound("A user with ID %s does not exist.", id)
	}
	return u, err
}

// GetByUsername returns a user by username.
func (s *Service) GetByUsername(ctx context.Context, username string) (user.User, error) {
	u, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return user.User{}, svcerrors.NotFound("A user with username %s does not exist.", username)
	}
	return u, err
}

// DeleteAccount removes the user and everything they own: sessions, freets
// (with every interaction referencing them), drafts, interactions, and
// bookmark nests.
func (s *Service) DeleteAccount(ctx context.Context, userID string) error {
	owned, err := s.freets.ListFreetsByAuthor(ctx, userID)
	if err != nil {
		return err
	}
	for _, f := range owned {
		if err := s.interactions.DeleteInteractionsByFreet(ctx, f.ID); err != nil {
			return err
		}
	}
	if err := s.freets.DeleteFreetsByAuthor(ctx, userID); err != nil {
		return err
	}
	if err := s.drafts.DeleteDraftsByAuthor(ctx, userID); err != nil {
		return err
	}
	if err := s.interactions.DeleteInteractionsByAuthor(ctx, userID); err != nil {
		return err
	}
	if err := s.nests.DeleteNestsByAuthor(ctx, userID); err != nil {
		return err
	}
	if err := s.sessions.DeleteSessionsByUser(ctx, userID); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return svcerrors.NotFound("A user with ID %s does not exist.", userID)
		}
		return err
	}

	s.log.WithField("user_id", userID).Info("account deleted")
	return nil
}
