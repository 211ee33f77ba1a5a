package user

import "time"

// User is an account record. Every other entity references users through
// their AuthorID field. PasswordHash is a bcrypt hash and never leaves the
// storage/service layers.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
