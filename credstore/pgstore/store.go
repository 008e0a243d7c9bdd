package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
)

// Store is a PostgreSQL-backed credstore.Store.
type Store struct {
	db *sqlx.DB
}

var (
	_ credstore.Store       = (*Store)(nil)
	_ credstore.CodeSweeper = (*Store)(nil)
)

// Open connects to dsn with the pgx driver.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", credstore.ErrUnavailable, err)
	}
	return New(db), nil
}

// New wraps an existing handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return mapErr(err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

type codeRow struct {
	Recipient      string    `db:"recipient"`
	ShortCodeHash  []byte    `db:"short_code_hash"`
	LongCodeHash   []byte    `db:"long_code_hash"`
	IssuedAt       time.Time `db:"issued_at"`
	ExpiresAt      time.Time `db:"expires_at"`
	FailedAttempts int       `db:"failed_attempts"`
	RedirectURL    string    `db:"redirect_url"`
	Version        uuid.UUID `db:"version"`
}

func (r codeRow) toCode() (credstore.OneTimeCode, error) {
	c := credstore.OneTimeCode{
		Recipient:      r.Recipient,
		IssuedAt:       r.IssuedAt.UTC(),
		ExpiresAt:      r.ExpiresAt.UTC(),
		FailedAttempts: r.FailedAttempts,
		RedirectURL:    r.RedirectURL,
		Version:        r.Version,
	}
	if len(r.ShortCodeHash) != len(c.ShortCodeHash) || len(r.LongCodeHash) != len(c.LongCodeHash) {
		return credstore.OneTimeCode{}, errors.New("pgstore: malformed code hash column")
	}
	copy(c.ShortCodeHash[:], r.ShortCodeHash)
	copy(c.LongCodeHash[:], r.LongCodeHash)
	return c, nil
}

type passwordRow struct {
	IdentityID     string       `db:"identity_id"`
	Hash           string       `db:"hash"`
	LastChangedAt  time.Time    `db:"last_changed_at"`
	FailedAttempts int          `db:"failed_attempts"`
	LockedUntil    sql.NullTime `db:"locked_until"`
	Version        uuid.UUID    `db:"version"`
}

func (r passwordRow) toCredential() credstore.PasswordCredential {
	p := credstore.PasswordCredential{
		IdentityID:     r.IdentityID,
		Hash:           r.Hash,
		LastChangedAt:  r.LastChangedAt.UTC(),
		FailedAttempts: r.FailedAttempts,
		Version:        r.Version,
	}
	if r.LockedUntil.Valid {
		p.LockedUntil = r.LockedUntil.Time.UTC()
	}
	return p
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

const codeColumns = `recipient, short_code_hash, long_code_hash, issued_at, expires_at, failed_attempts, redirect_url, version`

// GetCode returns the current code for recipient.
func (s *Store) GetCode(ctx context.Context, recipient string) (credstore.OneTimeCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM otc_codes WHERE recipient = $1`

	var row codeRow
	if err := s.db.GetContext(ctx, &row, query, recipient); err != nil {
		return credstore.OneTimeCode{}, mapErr(err)
	}
	return row.toCode()
}

// GetCodeByLongHash looks a code up through the unique long-hash column.
func (s *Store) GetCodeByLongHash(ctx context.Context, hash [32]byte) (credstore.OneTimeCode, error) {
	const query = `SELECT ` + codeColumns + ` FROM otc_codes WHERE long_code_hash = $1`

	var row codeRow
	if err := s.db.GetContext(ctx, &row, query, hash[:]); err != nil {
		return credstore.OneTimeCode{}, mapErr(err)
	}
	return row.toCode()
}

// PutCode upserts the recipient's code with a fresh version.
func (s *Store) PutCode(ctx context.Context, code credstore.OneTimeCode) (credstore.OneTimeCode, error) {
	const query = `
        INSERT INTO otc_codes (` + codeColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (recipient) DO UPDATE
        SET short_code_hash = EXCLUDED.short_code_hash,
            long_code_hash = EXCLUDED.long_code_hash,
            issued_at = EXCLUDED.issued_at,
            expires_at = EXCLUDED.expires_at,
            failed_attempts = EXCLUDED.failed_attempts,
            redirect_url = EXCLUDED.redirect_url,
            version = EXCLUDED.version
    `
	code.Version = uuid.New()
	_, err := s.db.ExecContext(ctx, query,
		code.Recipient, code.ShortCodeHash[:], code.LongCodeHash[:],
		code.IssuedAt, code.ExpiresAt, code.FailedAttempts, code.RedirectURL, code.Version,
	)
	if err != nil {
		return credstore.OneTimeCode{}, mapErr(err)
	}
	return code, nil
}

// UpdateCode rewrites the row if its version still matches expected.
func (s *Store) UpdateCode(ctx context.Context, code credstore.OneTimeCode, expected uuid.UUID) (credstore.OneTimeCode, error) {
	const query = `
        UPDATE otc_codes
        SET short_code_hash = $2,
            long_code_hash = $3,
            issued_at = $4,
            expires_at = $5,
            failed_attempts = $6,
            redirect_url = $7,
            version = $8
        WHERE recipient = $1 AND ($9::boolean OR version = $10)
    `
	next := uuid.New()
	res, err := s.db.ExecContext(ctx, query,
		code.Recipient, code.ShortCodeHash[:], code.LongCodeHash[:],
		code.IssuedAt, code.ExpiresAt, code.FailedAttempts, code.RedirectURL, next,
		expected == uuid.Nil, expected,
	)
	if err := s.checkAffected(ctx, res, err, `SELECT 1 FROM otc_codes WHERE recipient = $1`, code.Recipient); err != nil {
		return credstore.OneTimeCode{}, err
	}
	code.Version = next
	return code, nil
}

// DeleteCode removes the row if its version matches expected.
func (s *Store) DeleteCode(ctx context.Context, recipient string, expected uuid.UUID) error {
	const query = `DELETE FROM otc_codes WHERE recipient = $1 AND ($2::boolean OR version = $3)`

	res, err := s.db.ExecContext(ctx, query, recipient, expected == uuid.Nil, expected)
	return s.checkAffected(ctx, res, err, `SELECT 1 FROM otc_codes WHERE recipient = $1`, recipient)
}

// SweepExpiredCodes deletes codes whose expiry is before the cutoff.
func (s *Store) SweepExpiredCodes(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otc_codes WHERE expires_at < $1`, before)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return int(n), nil
}

const passwordColumns = `identity_id, hash, last_changed_at, failed_attempts, locked_until, version`

// GetPassword returns the credential for identityID.
func (s *Store) GetPassword(ctx context.Context, identityID string) (credstore.PasswordCredential, error) {
	const query = `SELECT ` + passwordColumns + ` FROM password_credentials WHERE identity_id = $1`

	var row passwordRow
	if err := s.db.GetContext(ctx, &row, query, identityID); err != nil {
		return credstore.PasswordCredential{}, mapErr(err)
	}
	return row.toCredential(), nil
}

// PutPassword upserts cred with a fresh version.
func (s *Store) PutPassword(ctx context.Context, cred credstore.PasswordCredential) (credstore.PasswordCredential, error) {
	const query = `
        INSERT INTO password_credentials (` + passwordColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (identity_id) DO UPDATE
        SET hash = EXCLUDED.hash,
            last_changed_at = EXCLUDED.last_changed_at,
            failed_attempts = EXCLUDED.failed_attempts,
            locked_until = EXCLUDED.locked_until,
            version = EXCLUDED.version
    `
	cred.Version = uuid.New()
	_, err := s.db.ExecContext(ctx, query,
		cred.IdentityID, cred.Hash, cred.LastChangedAt, cred.FailedAttempts, nullTime(cred.LockedUntil), cred.Version,
	)
	if err != nil {
		return credstore.PasswordCredential{}, mapErr(err)
	}
	return cred, nil
}

// UpdatePassword rewrites the row if its version matches expected.
func (s *Store) UpdatePassword(ctx context.Context, cred credstore.PasswordCredential, expected uuid.UUID) (credstore.PasswordCredential, error) {
	const query = `
        UPDATE password_credentials
        SET hash = $2,
            last_changed_at = $3,
            failed_attempts = $4,
            locked_until = $5,
            version = $6
        WHERE identity_id = $1 AND ($7::boolean OR version = $8)
    `
	next := uuid.New()
	res, err := s.db.ExecContext(ctx, query,
		cred.IdentityID, cred.Hash, cred.LastChangedAt, cred.FailedAttempts, nullTime(cred.LockedUntil), next,
		expected == uuid.Nil, expected,
	)
	if err := s.checkAffected(ctx, res, err, `SELECT 1 FROM password_credentials WHERE identity_id = $1`, cred.IdentityID); err != nil {
		return credstore.PasswordCredential{}, err
	}
	cred.Version = next
	return cred, nil
}

// DeletePassword removes the row if its version matches expected.
func (s *Store) DeletePassword(ctx context.Context, identityID string, expected uuid.UUID) error {
	const query = `DELETE FROM password_credentials WHERE identity_id = $1 AND ($2::boolean OR version = $3)`

	res, err := s.db.ExecContext(ctx, query, identityID, expected == uuid.Nil, expected)
	return s.checkAffected(ctx, res, err, `SELECT 1 FROM password_credentials WHERE identity_id = $1`, identityID)
}

// checkAffected turns a zero-row conditional write into ErrNotFound or
// ErrConflict depending on whether the key still exists.
func (s *Store) checkAffected(ctx context.Context, res sql.Result, err error, existsQuery string, key string) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n > 0 {
		return nil
	}

	var one int
	if err := s.db.GetContext(ctx, &one, existsQuery, key); err != nil {
		return mapErr(err)
	}
	return credstore.ErrConflict
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return credstore.ErrNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", credstore.ErrUnavailable, err)
	}
}
