package nest

import "time"

// Nest is a user-owned folder grouping bookmarks. Exactly one nest per user
// carries DefaultRootNest; it is created with the user and cannot be
// deleted, only emptied.
type Nest struct {
	ID              string
	Nestname        string
	AuthorID        string
	DefaultRootNest bool
	DateCreated     time.Time
}
