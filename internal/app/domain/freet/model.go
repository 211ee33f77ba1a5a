package freet

import "time"

// MaxContentLength is the hard cap on freet content.
const MaxContentLength = 140

// Freet is the root content entity. ExpiringDate, when set, marks the
// moment the freet stops being readable; the row itself is removed lazily
// by the expiration sweep.
type Freet struct {
	ID           string
	AuthorID     string
	Content      string
	DateCreated  time.Time
	DateModified time.Time
	ExpiringDate *time.Time
}

// Expired reports whether the freet's expiration has passed at the given
// instant. Freets without an expiration never expire.
func (f Freet) Expired(now time.Time) bool {
	return f.ExpiringDate != nil && !f.ExpiringDate.After(now)
}

// Draft is unpublished freet content, private to its author.
type Draft struct {
	ID           string
	AuthorID     string
	Content      string
	DateCreated  time.Time
	DateModified time.Time
}
