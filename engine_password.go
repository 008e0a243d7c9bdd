package goOTC

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/password"
	"github.com/google/uuid"
)

// SetPassword checks plaintext against the strength policy, hashes it with
// Argon2id and overwrites any existing credential. Failure counters and any
// lock are cleared.
func (e *Engine) SetPassword(ctx context.Context, identityID, plaintext string) (PasswordSetResult, error) {
	if !e.ready() {
		return PasswordSetResult{}, ErrEngineNotReady
	}
	identityID, ok := normalizeKey(identityID)
	if !ok {
		return PasswordSetResult{}, ErrInvalidIdentity
	}

	if err := e.policy.Check(plaintext); err != nil {
		return e.policyRejected(ctx, identityID, err), nil
	}

	hash, err := e.passwords.Hash(plaintext)
	if errors.Is(err, password.ErrPasswordTooLong) || errors.Is(err, password.ErrEmptyPassword) {
		return e.policyRejected(ctx, identityID, err), nil
	}
	if err != nil {
		return PasswordSetResult{Status: PasswordSetServiceFailure}, e.serviceFailure("set password: hash", err)
	}

	_, err = e.store.PutPassword(ctx, credstore.PasswordCredential{
		IdentityID:    identityID,
		Hash:          hash,
		LastChangedAt: e.clock(),
	})
	if err != nil {
		err = e.serviceFailure("set password: store", err)
		e.emitAudit(ctx, auditEventPasswordSet, false, identityID, err, nil)
		return PasswordSetResult{Status: PasswordSetServiceFailure}, err
	}

	e.metricInc(MetricPasswordSet)
	e.emitAudit(ctx, auditEventPasswordSet, true, identityID, nil, nil)
	return PasswordSetResult{Status: PasswordSetSuccess}, nil
}

func (e *Engine) policyRejected(ctx context.Context, identityID string, violation error) PasswordSetResult {
	e.metricInc(MetricPasswordPolicyRejected)
	e.emitAudit(ctx, auditEventPasswordPolicyReject, false, identityID, nil, reasonMetadata(violation.Error()))
	return PasswordSetResult{Status: PasswordSetPolicyRejected, Violation: violation}
}

// RemovePassword deletes the identity's credential, leaving only
// passwordless sign-in.
func (e *Engine) RemovePassword(ctx context.Context, identityID string) (RemovePasswordStatus, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	identityID, ok := normalizeKey(identityID)
	if !ok {
		return 0, ErrInvalidIdentity
	}

	err := e.store.DeletePassword(ctx, identityID, uuid.Nil)
	switch {
	case err == nil:
		e.metricInc(MetricPasswordRemoved)
		e.emitAudit(ctx, auditEventPasswordRemoved, true, identityID, nil, nil)
		return PasswordRemoved, nil
	case errors.Is(err, credstore.ErrNotFound):
		return PasswordRemoveNotFound, nil
	default:
		return PasswordRemoveServiceFailure, e.serviceFailure("remove password", err)
	}
}

// VerifyPassword runs one step of the lockout state machine.
//
//   - No credential: a dummy hash is verified and VerifyDoesNotMatch returned.
//   - Locked: VerifyLocked, without hashing.
//   - Match: failures and lock are cleared.
//   - Mismatch: failures are counted; reaching Lockout.Threshold sets
//     LockedUntil = now + Lockout.Duration and zeroes the counter. The
//     attempt that triggers the lock still reports VerifyDoesNotMatch.
func (e *Engine) VerifyPassword(ctx context.Context, identityID, plaintext string) (VerifyResult, error) {
	if !e.ready() {
		return VerifyResult{}, ErrEngineNotReady
	}
	identityID, ok := normalizeKey(identityID)
	if !ok {
		return VerifyResult{}, ErrInvalidIdentity
	}
	start := time.Now()
	defer e.observe(MetricVerifyLatency, start)

	for attempt := 0; attempt < e.config.Store.MaxConflictRetries; attempt++ {
		cred, err := e.store.GetPassword(ctx, identityID)
		if errors.Is(err, credstore.ErrNotFound) {
			_, _, _ = e.passwords.Verify(plaintext, e.dummyHash)
			return e.passwordMismatch(ctx, identityID, noCredential()), nil
		}
		if err != nil {
			return VerifyResult{Status: VerifyServiceFailure}, e.serviceFailure("verify password: lookup", err)
		}

		now := e.clock()
		if cred.Locked(now) {
			e.metricInc(MetricPasswordLockedRejected)
			e.emitAudit(ctx, auditEventPasswordRejected, false, identityID, nil, reasonMetadata("locked"))
			return VerifyResult{Status: VerifyLocked, LockedUntil: cred.LockedUntil}, nil
		}

		matches, needsRehash, err := e.passwords.Verify(plaintext, cred.Hash)
		switch {
		case errors.Is(err, password.ErrPasswordTooLong), errors.Is(err, password.ErrEmptyPassword):
			matches = false
		case err != nil:
			return VerifyResult{Status: VerifyServiceFailure}, e.serviceFailure("verify password: stored hash", err)
		}

		if matches {
			result, retry, err := e.passwordMatched(ctx, cred, plaintext, needsRehash)
			if retry {
				continue
			}
			return result, err
		}

		result, retry, err := e.recordPasswordFailure(ctx, cred, now)
		if retry {
			continue
		}
		return result, err
	}

	return VerifyResult{Status: VerifyServiceFailure}, e.serviceFailure("verify password", errConflictRetries)
}

func (e *Engine) passwordMatched(ctx context.Context, cred credstore.PasswordCredential, plaintext string, needsRehash bool) (VerifyResult, bool, error) {
	identityID := cred.IdentityID

	if cred.FailedAttempts != 0 || !cred.LockedUntil.IsZero() {
		cred.FailedAttempts = 0
		cred.LockedUntil = time.Time{}
		updated, err := e.store.UpdatePassword(ctx, cred, cred.Version)
		switch {
		case err == nil:
			cred = updated
		case errors.Is(err, credstore.ErrConflict):
			e.metricInc(MetricStoreConflict)
			return VerifyResult{}, true, nil
		case errors.Is(err, credstore.ErrNotFound):
			// Removed between read and write.
			return e.passwordMismatch(ctx, identityID, noCredential()), false, nil
		default:
			return VerifyResult{Status: VerifyServiceFailure}, false, e.serviceFailure("verify password: reset failures", err)
		}
	}

	e.metricInc(MetricPasswordMatched)
	e.emitAudit(ctx, auditEventPasswordVerified, true, identityID, nil, nil)

	if !needsRehash {
		return VerifyResult{Status: VerifyMatches}, false, nil
	}
	if !e.config.Password.RehashOnVerify {
		return VerifyResult{Status: VerifyMatchesNeedsRehash}, false, nil
	}
	if e.rehash(ctx, cred, plaintext) {
		return VerifyResult{Status: VerifyMatches}, false, nil
	}
	return VerifyResult{Status: VerifyMatchesNeedsRehash}, false, nil
}

// rehash upgrades the stored hash. It is best effort: any failure is logged
// and the caller still learns the password matched.
func (e *Engine) rehash(ctx context.Context, cred credstore.PasswordCredential, plaintext string) bool {
	hash, err := e.passwords.Hash(plaintext)
	if err != nil {
		log.Printf("goOTC: rehash on verify: hash: %v", err)
		return false
	}
	cred.Hash = hash
	cred.LastChangedAt = e.clock()
	if _, err := e.store.UpdatePassword(ctx, cred, cred.Version); err != nil {
		log.Printf("goOTC: rehash on verify: store: %v", err)
		return false
	}

	e.metricInc(MetricPasswordRehashed)
	e.emitAudit(ctx, auditEventPasswordRehashed, true, cred.IdentityID, nil, nil)
	return true
}

func (e *Engine) recordPasswordFailure(ctx context.Context, cred credstore.PasswordCredential, now time.Time) (VerifyResult, bool, error) {
	cred.FailedAttempts++
	locking := cred.FailedAttempts >= e.config.Lockout.Threshold
	if locking {
		cred.LockedUntil = now.Add(e.config.Lockout.Duration)
		cred.FailedAttempts = 0
	}

	_, err := e.store.UpdatePassword(ctx, cred, cred.Version)
	switch {
	case err == nil:
	case errors.Is(err, credstore.ErrConflict):
		e.metricInc(MetricStoreConflict)
		return VerifyResult{}, true, nil
	case errors.Is(err, credstore.ErrNotFound):
		return e.passwordMismatch(ctx, cred.IdentityID, noCredential()), false, nil
	default:
		return VerifyResult{Status: VerifyServiceFailure}, false, e.serviceFailure("verify password: record failure", err)
	}

	if locking {
		e.metricInc(MetricPasswordLockoutTriggered)
		e.emitAudit(ctx, auditEventPasswordLockout, false, cred.IdentityID, nil, func() map[string]string {
			return map[string]string{"locked_until": cred.LockedUntil.Format(time.RFC3339)}
		})
	}
	return e.passwordMismatch(ctx, cred.IdentityID, map[string]string{
		"reason":   "mismatch",
		"attempts": strconv.Itoa(cred.FailedAttempts),
	}), false, nil
}

func (e *Engine) passwordMismatch(ctx context.Context, identityID string, metadata map[string]string) VerifyResult {
	e.metricInc(MetricPasswordMismatched)
	e.emitAudit(ctx, auditEventPasswordRejected, false, identityID, nil, func() map[string]string {
		return metadata
	})
	return VerifyResult{Status: VerifyDoesNotMatch}
}

func noCredential() map[string]string {
	return map[string]string{"reason": "no_credential"}
}

// PasswordState returns a read-only view of the identity's credential. An
// identity without a password reports HasPassword false and no error.
func (e *Engine) PasswordState(ctx context.Context, identityID string) (PasswordState, error) {
	if !e.ready() {
		return PasswordState{}, ErrEngineNotReady
	}
	identityID, ok := normalizeKey(identityID)
	if !ok {
		return PasswordState{}, ErrInvalidIdentity
	}

	cred, err := e.store.GetPassword(ctx, identityID)
	if errors.Is(err, credstore.ErrNotFound) {
		return PasswordState{}, nil
	}
	if err != nil {
		return PasswordState{}, e.serviceFailure("password state", err)
	}

	state := PasswordState{
		HasPassword:    true,
		Locked:         cred.Locked(e.clock()),
		FailedAttempts: cred.FailedAttempts,
		LastChangedAt:  cred.LastChangedAt,
	}
	if state.Locked {
		state.LockedUntil = cred.LockedUntil
	}
	return state, nil
}
