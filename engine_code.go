package goOTC

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/internal"
	"github.com/MrEthical07/goOTC/internal/rate"
	"github.com/google/uuid"
)

// IssueCode creates a short/long code pair for recipient, valid for
// validity, and returns the plaintext for delivery. Any earlier code for the
// recipient is superseded in the same write.
//
// IssueCode does not throttle; user-facing resend paths should call
// [Engine.CheckSendThrottle] first, or use [Engine.RequestCode].
func (e *Engine) IssueCode(ctx context.Context, recipient string, validity time.Duration, redirectURL string) (IssueResult, error) {
	if !e.ready() {
		return IssueResult{}, ErrEngineNotReady
	}
	recipient, ok := normalizeKey(recipient)
	if !ok {
		return IssueResult{}, ErrInvalidRecipient
	}
	if validity <= 0 {
		return IssueResult{}, ErrInvalidValidity
	}

	shortCode, err := internal.NewShortCode(e.random, e.config.OneTimeCode.ShortCodeDigits)
	if err != nil {
		return IssueResult{Status: IssueServiceFailure}, e.serviceFailure("issue code: short code", err)
	}
	longCode, err := internal.NewLongCode(e.random)
	if err != nil {
		return IssueResult{Status: IssueServiceFailure}, e.serviceFailure("issue code: long code", err)
	}

	now := e.clock()
	record := credstore.OneTimeCode{
		Recipient:     recipient,
		ShortCodeHash: e.codeHasher.Hash(internal.PurposeShortCode, shortCode),
		LongCodeHash:  e.codeHasher.Hash(internal.PurposeLongCode, longCode),
		IssuedAt:      now,
		ExpiresAt:     now.Add(validity),
		RedirectURL:   redirectURL,
	}

	if _, err := e.store.PutCode(ctx, record); err != nil {
		err = e.serviceFailure("issue code: store", err)
		e.emitAudit(ctx, auditEventCodeIssued, false, recipient, err, nil)
		return IssueResult{Status: IssueServiceFailure}, err
	}

	if e.sendLimiter != nil {
		if err := e.sendLimiter.Record(ctx, recipient); err != nil {
			log.Printf("goOTC: issue code: send limiter record: %v", err)
		}
	}

	e.metricInc(MetricCodeIssued)
	e.emitAudit(ctx, auditEventCodeIssued, true, recipient, nil, func() map[string]string {
		return map[string]string{"validity": validity.String()}
	})

	return IssueResult{
		Status: IssueIssued,
		Code: IssuedCode{
			Recipient:   recipient,
			ShortCode:   shortCode,
			LongCode:    longCode,
			ExpiresAt:   record.ExpiresAt,
			RedirectURL: redirectURL,
		},
	}, nil
}

// RedeemByLongCode consumes the code whose link code is longCode. Malformed
// input is hashed and looked up like any other value. The short-code attempt
// cap does not apply to this path.
func (e *Engine) RedeemByLongCode(ctx context.Context, longCode string) (LongCodeResult, error) {
	if !e.ready() {
		return LongCodeResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observe(MetricRedeemLatency, start)

	provided := e.codeHasher.Hash(internal.PurposeLongCode, longCode)

	for attempt := 0; attempt < e.config.Store.MaxConflictRetries; attempt++ {
		record, err := e.store.GetCodeByLongHash(ctx, provided)
		if errors.Is(err, credstore.ErrNotFound) {
			return e.longCodeNotFound(ctx, ""), nil
		}
		if err != nil {
			return LongCodeResult{Status: LongCodeServiceFailure}, e.serviceFailure("redeem long code: lookup", err)
		}
		if !internal.EqualHash(record.LongCodeHash, provided) {
			return e.longCodeNotFound(ctx, ""), nil
		}

		if record.Expired(e.clock()) {
			err := e.store.DeleteCode(ctx, record.Recipient, record.Version)
			switch {
			case err == nil, errors.Is(err, credstore.ErrNotFound):
				e.metricInc(MetricCodeExpired)
				e.emitAudit(ctx, auditEventCodeRejected, false, record.Recipient, nil, reasonMetadata("expired"))
				return LongCodeResult{Status: LongCodeExpired}, nil
			case errors.Is(err, credstore.ErrConflict):
				e.metricInc(MetricStoreConflict)
				continue
			default:
				return LongCodeResult{Status: LongCodeServiceFailure}, e.serviceFailure("redeem long code: delete expired", err)
			}
		}

		err = e.store.DeleteCode(ctx, record.Recipient, record.Version)
		switch {
		case err == nil:
			e.resetSendWindow(ctx, record.Recipient)
			e.metricInc(MetricLongCodeRedeemed)
			e.emitAudit(ctx, auditEventCodeRedeemed, true, record.Recipient, nil, func() map[string]string {
				return map[string]string{"path": "long"}
			})
			return LongCodeResult{
				Status:      LongCodeRedeemed,
				Recipient:   record.Recipient,
				RedirectURL: record.RedirectURL,
			}, nil
		case errors.Is(err, credstore.ErrNotFound):
			return e.longCodeNotFound(ctx, record.Recipient), nil
		case errors.Is(err, credstore.ErrConflict):
			// A failed short-code attempt or a reissue touched the record;
			// re-read and decide again.
			e.metricInc(MetricStoreConflict)
			continue
		default:
			return LongCodeResult{Status: LongCodeServiceFailure}, e.serviceFailure("redeem long code: consume", err)
		}
	}

	return LongCodeResult{Status: LongCodeServiceFailure}, e.serviceFailure("redeem long code", errConflictRetries)
}

// resetSendWindow clears the recipient's send budget once a code has been
// redeemed. Failure only delays the next send.
func (e *Engine) resetSendWindow(ctx context.Context, recipient string) {
	if e.sendLimiter == nil {
		return
	}
	if err := e.sendLimiter.Reset(ctx, recipient); err != nil {
		log.Printf("goOTC: redeem: send limiter reset: %v", err)
	}
}

func (e *Engine) longCodeNotFound(ctx context.Context, recipient string) LongCodeResult {
	e.metricInc(MetricCodeNotFound)
	e.emitAudit(ctx, auditEventCodeRejected, false, recipient, nil, func() map[string]string {
		return map[string]string{"reason": "not_found", "path": "long"}
	})
	return LongCodeResult{Status: LongCodeNotFound}
}

// RedeemByShortCode checks shortCode against recipient's live code.
// Spaces and dashes in shortCode are ignored.
//
// Order of checks: missing record, expiry (the record is deleted), attempt
// cap (the record is kept so the link code still works), then a
// constant-time digest comparison. A mismatch is persisted before
// ShortCodeIncorrect is returned.
func (e *Engine) RedeemByShortCode(ctx context.Context, recipient, shortCode string) (ShortCodeResult, error) {
	if !e.ready() {
		return ShortCodeResult{}, ErrEngineNotReady
	}
	recipient, ok := normalizeKey(recipient)
	if !ok {
		return ShortCodeResult{}, ErrInvalidRecipient
	}
	start := time.Now()
	defer e.observe(MetricRedeemLatency, start)

	provided := e.codeHasher.Hash(internal.PurposeShortCode, internal.NormalizeShortCode(shortCode))
	maxAttempts := e.config.OneTimeCode.MaxShortCodeAttempts

	for attempt := 0; attempt < e.config.Store.MaxConflictRetries; attempt++ {
		record, err := e.store.GetCode(ctx, recipient)
		if errors.Is(err, credstore.ErrNotFound) {
			return e.shortCodeNotFound(ctx, recipient), nil
		}
		if err != nil {
			return ShortCodeResult{Status: ShortCodeServiceFailure}, e.serviceFailure("redeem short code: lookup", err)
		}

		if record.Expired(e.clock()) {
			err := e.store.DeleteCode(ctx, recipient, record.Version)
			switch {
			case err == nil, errors.Is(err, credstore.ErrNotFound):
				e.metricInc(MetricCodeExpired)
				e.emitAudit(ctx, auditEventCodeRejected, false, recipient, nil, reasonMetadata("expired"))
				return ShortCodeResult{Status: ShortCodeExpired}, nil
			case errors.Is(err, credstore.ErrConflict):
				e.metricInc(MetricStoreConflict)
				continue
			default:
				return ShortCodeResult{Status: ShortCodeServiceFailure}, e.serviceFailure("redeem short code: delete expired", err)
			}
		}

		if record.FailedAttempts >= maxAttempts {
			e.metricInc(MetricShortCodeLocked)
			e.emitAudit(ctx, auditEventCodeRejected, false, recipient, nil, reasonMetadata("locked"))
			return ShortCodeResult{Status: ShortCodeLocked}, nil
		}

		if !internal.EqualHash(record.ShortCodeHash, provided) {
			record.FailedAttempts++
			_, err := e.store.UpdateCode(ctx, record, record.Version)
			switch {
			case err == nil:
				e.metricInc(MetricShortCodeIncorrect)
				e.emitAudit(ctx, auditEventCodeRejected, false, recipient, nil, func() map[string]string {
					return map[string]string{
						"reason":   "incorrect",
						"attempts": strconv.Itoa(record.FailedAttempts),
					}
				})
				return ShortCodeResult{
					Status:            ShortCodeIncorrect,
					AttemptsRemaining: maxAttempts - record.FailedAttempts,
				}, nil
			case errors.Is(err, credstore.ErrNotFound):
				return e.shortCodeNotFound(ctx, recipient), nil
			case errors.Is(err, credstore.ErrConflict):
				e.metricInc(MetricStoreConflict)
				continue
			default:
				return ShortCodeResult{Status: ShortCodeServiceFailure}, e.serviceFailure("redeem short code: record attempt", err)
			}
		}

		err = e.store.DeleteCode(ctx, recipient, record.Version)
		switch {
		case err == nil:
			e.resetSendWindow(ctx, recipient)
			e.metricInc(MetricShortCodeVerified)
			e.emitAudit(ctx, auditEventCodeRedeemed, true, recipient, nil, func() map[string]string {
				return map[string]string{"path": "short"}
			})
			return ShortCodeResult{Status: ShortCodeVerified, RedirectURL: record.RedirectURL}, nil
		case errors.Is(err, credstore.ErrNotFound):
			return e.shortCodeNotFound(ctx, recipient), nil
		case errors.Is(err, credstore.ErrConflict):
			e.metricInc(MetricStoreConflict)
			continue
		default:
			return ShortCodeResult{Status: ShortCodeServiceFailure}, e.serviceFailure("redeem short code: consume", err)
		}
	}

	return ShortCodeResult{Status: ShortCodeServiceFailure}, e.serviceFailure("redeem short code", errConflictRetries)
}

func (e *Engine) shortCodeNotFound(ctx context.Context, recipient string) ShortCodeResult {
	e.metricInc(MetricCodeNotFound)
	e.emitAudit(ctx, auditEventCodeRejected, false, recipient, nil, func() map[string]string {
		return map[string]string{"reason": "not_found", "path": "short"}
	})
	return ShortCodeResult{Status: ShortCodeNotFound}
}

// CheckSendThrottle reports whether a new code may be sent to recipient. It
// never writes. A send is refused while the recipient holds a live code that
// still has short-code attempts left (unless ResendCooldown has passed), or
// when the send limiter's window is spent.
func (e *Engine) CheckSendThrottle(ctx context.Context, recipient string) (ThrottleResult, error) {
	if !e.ready() {
		return ThrottleResult{}, ErrEngineNotReady
	}
	recipient, ok := normalizeKey(recipient)
	if !ok {
		return ThrottleResult{}, ErrInvalidRecipient
	}

	if e.sendLimiter != nil {
		retryAfter, err := e.sendLimiter.Check(ctx, recipient)
		if errors.Is(err, rate.ErrRateLimited) {
			return e.throttled(ctx, recipient, retryAfter, "send_limit"), nil
		}
		if err != nil {
			return ThrottleResult{Status: ThrottleServiceFailure}, e.serviceFailure("check send throttle: limiter", err)
		}
	}

	record, err := e.store.GetCode(ctx, recipient)
	if errors.Is(err, credstore.ErrNotFound) {
		return ThrottleResult{Status: ThrottleAllowed}, nil
	}
	if err != nil {
		return ThrottleResult{Status: ThrottleServiceFailure}, e.serviceFailure("check send throttle: lookup", err)
	}

	now := e.clock()
	if record.Expired(now) || record.FailedAttempts >= e.config.OneTimeCode.MaxShortCodeAttempts {
		return ThrottleResult{Status: ThrottleAllowed}, nil
	}

	retryAfter := record.ExpiresAt.Sub(now)
	if cooldown := e.config.OneTimeCode.ResendCooldown; cooldown > 0 {
		age := now.Sub(record.IssuedAt)
		if age >= cooldown {
			return ThrottleResult{Status: ThrottleAllowed}, nil
		}
		if wait := cooldown - age; wait < retryAfter {
			retryAfter = wait
		}
	}

	return e.throttled(ctx, recipient, retryAfter, "active_code"), nil
}

func (e *Engine) throttled(ctx context.Context, recipient string, retryAfter time.Duration, reason string) ThrottleResult {
	e.metricInc(MetricCodeSendThrottled)
	e.emitAudit(ctx, auditEventCodeSendThrottled, false, recipient, nil, reasonMetadata(reason))
	return ThrottleResult{Status: ThrottleTooManyRequests, RetryAfter: retryAfter}
}

// RequestCode is the resend-safe entry point: CheckSendThrottle, then
// IssueCode with OneTimeCode.DefaultValidity. The two steps are not atomic;
// two racing requests can both issue, and the later one supersedes.
func (e *Engine) RequestCode(ctx context.Context, recipient, redirectURL string) (IssueResult, error) {
	if !e.ready() {
		return IssueResult{}, ErrEngineNotReady
	}

	throttle, err := e.CheckSendThrottle(ctx, recipient)
	if err != nil {
		if throttle.Status == ThrottleServiceFailure {
			return IssueResult{Status: IssueServiceFailure}, err
		}
		return IssueResult{}, err
	}
	if throttle.Status == ThrottleTooManyRequests {
		return IssueResult{Status: IssueThrottled, RetryAfter: throttle.RetryAfter}, nil
	}

	return e.IssueCode(ctx, recipient, e.config.OneTimeCode.DefaultValidity, redirectURL)
}

// InvalidateCode deletes recipient's code, live or not. It reports whether a
// record existed.
func (e *Engine) InvalidateCode(ctx context.Context, recipient string) (bool, error) {
	if !e.ready() {
		return false, ErrEngineNotReady
	}
	recipient, ok := normalizeKey(recipient)
	if !ok {
		return false, ErrInvalidRecipient
	}

	err := e.store.DeleteCode(ctx, recipient, uuid.Nil)
	switch {
	case err == nil:
		e.metricInc(MetricCodeInvalidated)
		e.emitAudit(ctx, auditEventCodeInvalidated, true, recipient, nil, nil)
		return true, nil
	case errors.Is(err, credstore.ErrNotFound):
		return false, nil
	default:
		return false, e.serviceFailure("invalidate code", err)
	}
}

// SweepExpiredCodes removes codes that expired more than
// Store.ExpiredRetention ago. Stores with native expiry (Redis) do not
// implement sweeping and report zero.
func (e *Engine) SweepExpiredCodes(ctx context.Context) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	sweeper, ok := e.store.(credstore.CodeSweeper)
	if !ok {
		return 0, nil
	}

	cutoff := e.clock().Add(-e.config.Store.ExpiredRetention)
	n, err := sweeper.SweepExpiredCodes(ctx, cutoff)
	if err != nil {
		return 0, e.serviceFailure("sweep expired codes", err)
	}

	if n > 0 {
		e.metrics.Add(MetricCodesSwept, uint64(n))
		e.emitAudit(ctx, auditEventCodesSwept, true, "", nil, func() map[string]string {
			return map[string]string{"count": strconv.Itoa(n)}
		})
	}
	return n, nil
}
