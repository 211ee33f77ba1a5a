// Package interaction models the four timed reactions a user can attach to
// a freet. They share one record shape; Kind tells them apart.
package interaction

import "time"

// Kind identifies the interaction type.
type Kind string

const (
	KindLike      Kind = "like"
	KindDownfreet Kind = "downfreet"
	KindRefreet   Kind = "refreet"
	KindBookmark  Kind = "bookmark"
)

// Kinds lists every interaction kind.
var Kinds = []Kind{KindLike, KindDownfreet, KindRefreet, KindBookmark}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindLike, KindDownfreet, KindRefreet, KindBookmark:
		return true
	}
	return false
}

// Opposite returns the mutually exclusive kind, if any. Likes and
// downfreets cancel each other; the other kinds have no opposite.
func (k Kind) Opposite() (Kind, bool) {
	switch k {
	case KindLike:
		return KindDownfreet, true
	case KindDownfreet:
		return KindLike, true
	}
	return "", false
}

// Interaction is a reaction record referencing an author and a freet.
// ExpiringDate is copied from the freet at creation time; it is a snapshot,
// not a live join, so it survives edits to the freet.
type Interaction struct {
	ID            string
	Kind          Kind
	AuthorID      string
	OriginalFreet string
	NestID        string // bookmarks only
	DateCreated   time.Time
	ExpiringDate  *time.Time
}

// Expired reports whether the copied expiration has passed at the given
// instant.
func (i Interaction) Expired(now time.Time) bool {
	return i.ExpiringDate != nil && !i.ExpiringDate.After(now)
}
