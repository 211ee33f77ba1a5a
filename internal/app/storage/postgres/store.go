// Package postgres implements the storage interfaces backed by PostgreSQL
// through the database/sql interface of pgx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fritterhq/fritter/internal/app/domain/freet"
	"github.com/fritterhq/fritter/internal/app/domain/interaction"
	"github.com/fritterhq/fritter/internal/app/domain/nest"
	"github.com/fritterhq/fritter/internal/app/domain/session"
	"github.com/fritterhq/fritter/internal/app/domain/user"
	"github.com/fritterhq/fritter/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.UserStore = (*Store)(nil)
var _ storage.SessionStore = (*Store)(nil)
var _ storage.FreetStore = (*Store)(nil)
var _ storage.DraftStore = (*Store)(nil)
var _ storage.InteractionStore = (*Store)(nil)
var _ storage.NestStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func mapErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrDuplicate
	}
	return err
}

// dbtx is the subset of database/sql shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a transaction, committing on success and rolling
// back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(tx dbtx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()
	return fn(tx)
}

// --- UserStore --------------------------------------------------------------

func (s *Store) CreateUser(ctx context.Context, u user.User, rootNest nest.Nest) (user.User, nest.Nest, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now

	if rootNest.ID == "" {
		rootNest.ID = uuid.NewString()
	}
	rootNest.AuthorID = u.ID
	rootNest.DefaultRootNest = true
	rootNest.DateCreated = now

	err := s.withTx(ctx, func(tx dbtx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, username, password_hash, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5)
		`, u.ID, u.Username, u.PasswordHash, u.CreatedAt, u.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookmark_nests (id, nestname, author_id, default_root_nest, date_created)
			VALUES ($1, $2, $3, $4, $5)
		`, rootNest.ID, rootNest.Nestname, rootNest.AuthorID, rootNest.DefaultRootNest, rootNest.DateCreated)
		return err
	})
	if err != nil {
		return user.User{}, nest.Nest{}, mapErr(err)
	}
	return u, rootNest, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at, updated_at
		FROM users
		WHERE lower(username) = lower($1)
	`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (user.User, error) {
	var u user.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return user.User{}, mapErr(err)
	}
	return u, nil
}

func (s *Store) DeleteUser(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// --- SessionStore -----------------------------------------------------------

func (s *Store) CreateSession(ctx context.Context, sess session.Session) (session.Session, error) {
	if sess.Token == "" {
		sess.Token = uuid.NewString()
	}
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
	`, sess.Token, sess.UserID, sess.CreatedAt, sess.ExpiresAt)
	if err != nil {
		return session.Session{}, mapErr(err)
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT token, user_id, created_at, expires_at
		FROM sessions
		WHERE token = $1
	`, token)

	var sess session.Session
	if err := row.Scan(&sess.Token, &sess.UserID, &sess.CreatedAt, &sess.ExpiresAt); err != nil {
		return session.Session{}, mapErr(err)
	}
	return sess, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSessionsByUser(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	return mapErr(err)
}

// --- FreetStore -------------------------------------------------------------

func (s *Store) CreateFreet(ctx context.Context, f freet.Freet) (freet.Freet, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if f.DateCreated.IsZero() {
		f.DateCreated = now
		f.DateModified = now
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO freets (id, author_id, content, date_created, date_modified, expiring_date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.AuthorID, f.Content, f.DateCreated, f.DateModified, nullTime(f.ExpiringDate))
	if err != nil {
		return freet.Freet{}, mapErr(err)
	}
	return f, nil
}

func (s *Store) GetFreet(ctx context.Context, id string) (freet.Freet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, content, date_created, date_modified, expiring_date
		FROM freets
		WHERE id = $1
	`, id)

	var (
		f       freet.Freet
		expires sql.NullTime
	)
	if err := row.Scan(&f.ID, &f.AuthorID, &f.Content, &f.DateCreated, &f.DateModified, &expires); err != nil {
		return freet.Freet{}, mapErr(err)
	}
	f.ExpiringDate = timePtr(expires)
	return f, nil
}

func (s *Store) ListFreets(ctx context.Context) ([]freet.Freet, error) {
	return s.listFreets(ctx, `
		SELECT id, author_id, content, date_created, date_modified, expiring_date
		FROM freets
		ORDER BY date_created DESC
	`)
}

func (s *Store) ListFreetsByAuthor(ctx context.Context, authorID string) ([]freet.Freet, error) {
	return s.listFreets(ctx, `
		SELECT id, author_id, content, date_created, date_modified, expiring_date
		FROM freets
		WHERE author_id = $1
		ORDER BY date_created DESC
	`, authorID)
}

func (s *Store) listFreets(ctx context.Context, query string, args ...any) ([]freet.Freet, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []freet.Freet
	for rows.Next() {
		var (
			f       freet.Freet
			expires sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.AuthorID, &f.Content, &f.DateCreated, &f.DateModified, &expires); err != nil {
			return nil, err
		}
		f.ExpiringDate = timePtr(expires)
		result = append(result, f)
	}
	return result, rows.Err()
}

func (s *Store) DeleteFreet(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM freets WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteFreetsByAuthor(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM freets WHERE author_id = $1`, authorID)
	return mapErr(err)
}

func (s *Store) DeleteExpiredFreets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		DELETE FROM freets
		WHERE expiring_date IS NOT NULL AND expiring_date <= now()
		RETURNING id
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var removed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		removed = append(removed, id)
	}
	return removed, rows.Err()
}

// --- DraftStore -------------------------------------------------------------

func (s *Store) CreateDraft(ctx context.Context, d freet.Draft) (freet.Draft, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	d.DateCreated = now
	d.DateModified = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO freet_drafts (id, author_id, content, date_created, date_modified)
		VALUES ($1, $2, $3, $4, $5)
	`, d.ID, d.AuthorID, d.Content, d.DateCreated, d.DateModified)
	if err != nil {
		return freet.Draft{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) UpdateDraft(ctx context.Context, d freet.Draft) (freet.Draft, error) {
	existing, err := s.GetDraft(ctx, d.ID)
	if err != nil {
		return freet.Draft{}, err
	}
	d.AuthorID = existing.AuthorID
	d.DateCreated = existing.DateCreated
	d.DateModified = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE freet_drafts
		SET content = $2, date_modified = $3
		WHERE id = $1
	`, d.ID, d.Content, d.DateModified)
	if err != nil {
		return freet.Draft{}, mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return freet.Draft{}, storage.ErrNotFound
	}
	return d, nil
}

func (s *Store) GetDraft(ctx context.Context, id string) (freet.Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, content, date_created, date_modified
		FROM freet_drafts
		WHERE id = $1
	`, id)

	var d freet.Draft
	if err := row.Scan(&d.ID, &d.AuthorID, &d.Content, &d.DateCreated, &d.DateModified); err != nil {
		return freet.Draft{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) ListDraftsByAuthor(ctx context.Context, authorID string) ([]freet.Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, content, date_created, date_modified
		FROM freet_drafts
		WHERE author_id = $1
		ORDER BY date_created DESC
	`, authorID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []freet.Draft
	for rows.Next() {
		var d freet.Draft
		if err := rows.Scan(&d.ID, &d.AuthorID, &d.Content, &d.DateCreated, &d.DateModified); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

func (s *Store) DeleteDraft(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM freet_drafts WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteDraftsByAuthor(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM freet_drafts WHERE author_id = $1`, authorID)
	return mapErr(err)
}

// --- InteractionStore -------------------------------------------------------

const interactionColumns = `id, kind, author_id, original_freet, nest_id, date_created, expiring_date`

func (s *Store) CreateInteraction(ctx context.Context, rec interaction.Interaction) (interaction.Interaction, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.DateCreated.IsZero() {
		rec.DateCreated = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (id, kind, author_id, original_freet, nest_id, date_created, expiring_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, string(rec.Kind), rec.AuthorID, rec.OriginalFreet, nullString(rec.NestID), rec.DateCreated, nullTime(rec.ExpiringDate))
	if err != nil {
		return interaction.Interaction{}, mapErr(err)
	}
	return rec, nil
}

func (s *Store) GetInteraction(ctx context.Context, kind interaction.Kind, id string) (interaction.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE id = $1 AND kind = $2
	`, id, string(kind))
	if err != nil {
		return interaction.Interaction{}, mapErr(err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return interaction.Interaction{}, err
		}
		return interaction.Interaction{}, storage.ErrNotFound
	}
	return scanInteraction(rows)
}

func (s *Store) ListInteractions(ctx context.Context, kind interaction.Kind) ([]interaction.Interaction, error) {
	return s.listInteractions(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE kind = $1
		ORDER BY date_created DESC
	`, string(kind))
}

func (s *Store) ListInteractionsByAuthor(ctx context.Context, kind interaction.Kind, authorID string) ([]interaction.Interaction, error) {
	return s.listInteractions(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE kind = $1 AND author_id = $2
		ORDER BY date_created DESC
	`, string(kind), authorID)
}

func (s *Store) ListInteractionsByFreet(ctx context.Context, kind interaction.Kind, freetID string) ([]interaction.Interaction, error) {
	return s.listInteractions(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE kind = $1 AND original_freet = $2
		ORDER BY date_created DESC
	`, string(kind), freetID)
}

func (s *Store) ListInteractionsByNest(ctx context.Context, nestID string) ([]interaction.Interaction, error) {
	return s.listInteractions(ctx, `
		SELECT `+interactionColumns+`
		FROM interactions
		WHERE kind = 'bookmark' AND nest_id = $1
		ORDER BY date_created DESC
	`, nestID)
}

func (s *Store) listInteractions(ctx context.Context, query string, args ...any) ([]interaction.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []interaction.Interaction
	for rows.Next() {
		rec, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func scanInteraction(rows *sql.Rows) (interaction.Interaction, error) {
	var (
		rec     interaction.Interaction
		kind    string
		nestID  sql.NullString
		expires sql.NullTime
	)
	if err := rows.Scan(&rec.ID, &kind, &rec.AuthorID, &rec.OriginalFreet, &nestID, &rec.DateCreated, &expires); err != nil {
		return interaction.Interaction{}, err
	}
	rec.Kind = interaction.Kind(kind)
	if nestID.Valid {
		rec.NestID = nestID.String
	}
	rec.ExpiringDate = timePtr(expires)
	return rec, nil
}

func (s *Store) DeleteInteraction(ctx context.Context, kind interaction.Kind, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM interactions WHERE id = $1 AND kind = $2
	`, id, string(kind))
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteInteractionsByAuthor(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE author_id = $1`, authorID)
	return mapErr(err)
}

func (s *Store) DeleteInteractionsByFreet(ctx context.Context, freetID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM interactions WHERE original_freet = $1`, freetID)
	return mapErr(err)
}

func (s *Store) DeleteInteractionsByNest(ctx context.Context, nestID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM interactions WHERE kind = 'bookmark' AND nest_id = $1
	`, nestID)
	return mapErr(err)
}

func (s *Store) DeleteExpiredInteractions(ctx context.Context, kind interaction.Kind) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM interactions
		WHERE kind = $1 AND expiring_date IS NOT NULL AND expiring_date <= now()
	`, string(kind))
	if err != nil {
		return 0, mapErr(err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}

// --- NestStore --------------------------------------------------------------

func (s *Store) CreateNest(ctx context.Context, n nest.Nest) (nest.Nest, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.DateCreated.IsZero() {
		n.DateCreated = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bookmark_nests (id, nestname, author_id, default_root_nest, date_created)
		VALUES ($1, $2, $3, $4, $5)
	`, n.ID, n.Nestname, n.AuthorID, n.DefaultRootNest, n.DateCreated)
	if err != nil {
		return nest.Nest{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) GetNest(ctx context.Context, id string) (nest.Nest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nestname, author_id, default_root_nest, date_created
		FROM bookmark_nests
		WHERE id = $1
	`, id)
	return scanNest(row)
}

func (s *Store) GetNestByName(ctx context.Context, authorID, nestname string) (nest.Nest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, nestname, author_id, default_root_nest, date_created
		FROM bookmark_nests
		WHERE author_id = $1 AND lower(nestname) = lower($2)
	`, authorID, nestname)
	return scanNest(row)
}

func scanNest(row *sql.Row) (nest.Nest, error) {
	var n nest.Nest
	if err := row.Scan(&n.ID, &n.Nestname, &n.AuthorID, &n.DefaultRootNest, &n.DateCreated); err != nil {
		return nest.Nest{}, mapErr(err)
	}
	return n, nil
}

func (s *Store) ListNestsByAuthor(ctx context.Context, authorID string) ([]nest.Nest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, nestname, author_id, default_root_nest, date_created
		FROM bookmark_nests
		WHERE author_id = $1
		ORDER BY date_created DESC
	`, authorID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var result []nest.Nest
	for rows.Next() {
		var n nest.Nest
		if err := rows.Scan(&n.ID, &n.Nestname, &n.AuthorID, &n.DefaultRootNest, &n.DateCreated); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (s *Store) DeleteNest(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bookmark_nests WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteNestsByAuthor(ctx context.Context, authorID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM bookmark_nests WHERE author_id = $1`, authorID)
	return mapErr(err)
}

// helpers ---------------------------------------------------------------------

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
