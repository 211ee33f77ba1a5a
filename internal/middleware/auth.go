// Package middleware provides the HTTP middleware for the fritter server.
package middleware

import (
	"context"
	"net/http"

	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/pkg/logger"
)

// SessionCookie is the cookie carrying the session token.
const SessionCookie = "fritter_session"

type contextKey string

const (
	userIDKey   contextKey = "user_id"
	usernameKey contextKey = "username"
)

// SessionResolver maps a session token to its user.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (user.User, error)
}

// AuthMiddleware attaches the session's identity to the request context.
// Login requirements differ per method on the same path (creating an
// account is anonymous, deleting one is not), so enforcement happens in the
// handlers; this middleware only resolves who the caller is.
type AuthMiddleware struct {
	resolver SessionResolver
	logger   *logger.Logger
}

// NewAuthMiddleware creates an authentication middleware.
func NewAuthMiddleware(resolver SessionResolver, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("middleware")
	}
	return &AuthMiddleware{resolver: resolver, logger: log}
}

// Handler returns the middleware handler. A missing, stale, or revoked
// cookie leaves the request anonymous rather than failing it.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, err := m.resolver.Resolve(r.Context(), cookie.Value)
		if err != nil {
			m.logger.WithError(err).Debug("session resolution failed")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u.ID, u.Username)))
	})
}

// GetUserID extracts the authenticated user's id from the context, or ""
// for anonymous requests.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// GetUsername extracts the authenticated user's username from the context.
func GetUsername(ctx context.Context) string {
	name, _ := ctx.Value(usernameKey).(string)
	return name
}

// WithUser returns a context carrying the given identity.
func WithUser(ctx context.Context, userID, username string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, usernameKey, username)
}
