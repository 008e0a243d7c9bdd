package credstore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound reports that no record exists for the key.
	ErrNotFound = errors.New("credential record not found")
	// ErrConflict reports that the stored version no longer matches the
	// version the caller read; the caller should reload and re-decide.
	ErrConflict = errors.New("credential record version conflict")
	// ErrUnavailable wraps backend failures.
	ErrUnavailable = errors.New("credential store unavailable")
)

// OneTimeCode is the at-rest form of an issued code pair. It never holds
// plaintext codes.
type OneTimeCode struct {
	Recipient      string
	ShortCodeHash  [32]byte
	LongCodeHash   [32]byte
	IssuedAt       time.Time
	ExpiresAt      time.Time
	FailedAttempts int
	RedirectURL    string
	Version        uuid.UUID
}

// Expired reports whether the code is past its expiry at now.
func (c OneTimeCode) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// PasswordCredential is the at-rest password hash and lockout state for one
// identity.
type PasswordCredential struct {
	IdentityID     string
	Hash           string
	LastChangedAt  time.Time
	FailedAttempts int
	LockedUntil    time.Time
	Version        uuid.UUID
}

// Locked reports whether the temporary lock is still in force at now.
func (p PasswordCredential) Locked(now time.Time) bool {
	return !p.LockedUntil.IsZero() && now.Before(p.LockedUntil)
}

// CodeStore persists one-time codes keyed by recipient, with a unique index
// on the long-code hash.
//
// Every write assigns a fresh Version and returns the stored record. Update
// and Delete with a non-nil expected version succeed only while the stored
// version still matches, which is what keeps two racing redemptions from
// both consuming the same code.
type CodeStore interface {
	GetCode(ctx context.Context, recipient string) (OneTimeCode, error)
	GetCodeByLongHash(ctx context.Context, longHash [32]byte) (OneTimeCode, error)
	// PutCode replaces any record for the recipient, including its long-code
	// index entry.
	PutCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error)
	UpdateCode(ctx context.Context, code OneTimeCode, expected uuid.UUID) (OneTimeCode, error)
	// DeleteCode removes the record. uuid.Nil deletes unconditionally.
	// A missing record yields ErrNotFound, a stale version ErrConflict.
	DeleteCode(ctx context.Context, recipient string, expected uuid.UUID) error
}

// PasswordStore persists password credentials keyed by identity id with the
// same version semantics as [CodeStore].
type PasswordStore interface {
	GetPassword(ctx context.Context, identityID string) (PasswordCredential, error)
	PutPassword(ctx context.Context, cred PasswordCredential) (PasswordCredential, error)
	UpdatePassword(ctx context.Context, cred PasswordCredential, expected uuid.UUID) (PasswordCredential, error)
	DeletePassword(ctx context.Context, identityID string, expected uuid.UUID) error
}

// Store is the full credential store consumed by the engine.
type Store interface {
	CodeStore
	PasswordStore
}

// CodeSweeper is implemented by stores that keep expired rows until they are
// collected. Stores with native expiry (Redis TTL) need not implement it.
type CodeSweeper interface {
	SweepExpiredCodes(ctx context.Context, before time.Time) (int, error)
}
