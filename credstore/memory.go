package credstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local [Store]. One mutex guards every map, so each
// read-compare-write runs whole; reads share the lock.
type Memory struct {
	mu        sync.RWMutex
	codes     map[string]OneTimeCode
	longIndex map[[32]byte]string
	passwords map[string]PasswordCredential
}

var (
	_ Store       = (*Memory)(nil)
	_ CodeSweeper = (*Memory)(nil)
)

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		codes:     make(map[string]OneTimeCode),
		longIndex: make(map[[32]byte]string),
		passwords: make(map[string]PasswordCredential),
	}
}

// GetCode returns the current code for recipient.
func (m *Memory) GetCode(ctx context.Context, recipient string) (OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return OneTimeCode{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	code, ok := m.codes[recipient]
	if !ok {
		return OneTimeCode{}, ErrNotFound
	}
	return code, nil
}

// GetCodeByLongHash resolves a code through its long-code digest.
func (m *Memory) GetCodeByLongHash(ctx context.Context, longHash [32]byte) (OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return OneTimeCode{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	recipient, ok := m.longIndex[longHash]
	if !ok {
		return OneTimeCode{}, ErrNotFound
	}
	code, ok := m.codes[recipient]
	if !ok {
		return OneTimeCode{}, ErrNotFound
	}
	return code, nil
}

// PutCode replaces any record for the recipient with a fresh version.
func (m *Memory) PutCode(ctx context.Context, code OneTimeCode) (OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return OneTimeCode{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.codes[code.Recipient]; ok {
		delete(m.longIndex, prev.LongCodeHash)
	}
	code.Version = uuid.New()
	m.codes[code.Recipient] = code
	m.longIndex[code.LongCodeHash] = code.Recipient
	return code, nil
}

// UpdateCode rewrites the record if its version still matches expected.
func (m *Memory) UpdateCode(ctx context.Context, code OneTimeCode, expected uuid.UUID) (OneTimeCode, error) {
	if err := ctx.Err(); err != nil {
		return OneTimeCode{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.codes[code.Recipient]
	if !ok {
		return OneTimeCode{}, ErrNotFound
	}
	if expected != uuid.Nil && cur.Version != expected {
		return OneTimeCode{}, ErrConflict
	}

	delete(m.longIndex, cur.LongCodeHash)
	code.Version = uuid.New()
	m.codes[code.Recipient] = code
	m.longIndex[code.LongCodeHash] = code.Recipient
	return code, nil
}

// DeleteCode removes the record if its version matches expected.
func (m *Memory) DeleteCode(ctx context.Context, recipient string, expected uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.codes[recipient]
	if !ok {
		return ErrNotFound
	}
	if expected != uuid.Nil && cur.Version != expected {
		return ErrConflict
	}
	delete(m.longIndex, cur.LongCodeHash)
	delete(m.codes, recipient)
	return nil
}

// SweepExpiredCodes removes every code that expired before the cutoff.
func (m *Memory) SweepExpiredCodes(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for recipient, code := range m.codes {
		if code.ExpiresAt.Before(before) {
			delete(m.longIndex, code.LongCodeHash)
			delete(m.codes, recipient)
			removed++
		}
	}
	return removed, nil
}

// GetPassword returns the credential for identityID.
func (m *Memory) GetPassword(ctx context.Context, identityID string) (PasswordCredential, error) {
	if err := ctx.Err(); err != nil {
		return PasswordCredential{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.passwords[identityID]
	if !ok {
		return PasswordCredential{}, ErrNotFound
	}
	return cred, nil
}

// PutPassword upserts cred with a fresh version.
func (m *Memory) PutPassword(ctx context.Context, cred PasswordCredential) (PasswordCredential, error) {
	if err := ctx.Err(); err != nil {
		return PasswordCredential{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cred.Version = uuid.New()
	m.passwords[cred.IdentityID] = cred
	return cred, nil
}

// UpdatePassword rewrites the credential if its version matches expected.
func (m *Memory) UpdatePassword(ctx context.Context, cred PasswordCredential, expected uuid.UUID) (PasswordCredential, error) {
	if err := ctx.Err(); err != nil {
		return PasswordCredential{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.passwords[cred.IdentityID]
	if !ok {
		return PasswordCredential{}, ErrNotFound
	}
	if expected != uuid.Nil && cur.Version != expected {
		return PasswordCredential{}, ErrConflict
	}
	cred.Version = uuid.New()
	m.passwords[cred.IdentityID] = cred
	return cred, nil
}

// DeletePassword removes the credential if its version matches expected.
func (m *Memory) DeletePassword(ctx context.Context, identityID string, expected uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.passwords[identityID]
	if !ok {
		return ErrNotFound
	}
	if expected != uuid.Nil && cur.Version != expected {
		return ErrConflict
	}
	delete(m.passwords, identityID)
	return nil
}
