package session

import "time"

// Session is a server-side login session. The Token is the opaque value
// carried by the client cookie; deleting the row revokes the session.
type Session struct {
	Token     string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session has lapsed at the given instant.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
