package goOTC

import "time"

// IssueStatus is the outcome of [Engine.IssueCode] and [Engine.RequestCode].
type IssueStatus uint8

const (
	// IssueIssued means a fresh code pair was stored and returned.
	IssueIssued IssueStatus = iota + 1
	// IssueThrottled means RequestCode refused because a live code exists or
	// the send window is spent.
	IssueThrottled
	// IssueServiceFailure means the store or random source failed.
	IssueServiceFailure
)

func (s IssueStatus) String() string {
	switch s {
	case IssueIssued:
		return "issued"
	case IssueThrottled:
		return "throttled"
	case IssueServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// LongCodeStatus is the outcome of [Engine.RedeemByLongCode].
type LongCodeStatus uint8

const (
	LongCodeRedeemed LongCodeStatus = iota + 1
	LongCodeNotFound
	LongCodeExpired
	LongCodeServiceFailure
)

func (s LongCodeStatus) String() string {
	switch s {
	case LongCodeRedeemed:
		return "redeemed"
	case LongCodeNotFound:
		return "not_found"
	case LongCodeExpired:
		return "expired"
	case LongCodeServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// ShortCodeStatus is the outcome of [Engine.RedeemByShortCode].
type ShortCodeStatus uint8

const (
	ShortCodeVerified ShortCodeStatus = iota + 1
	ShortCodeExpired
	ShortCodeIncorrect
	ShortCodeLocked
	ShortCodeNotFound
	ShortCodeServiceFailure
)

func (s ShortCodeStatus) String() string {
	switch s {
	case ShortCodeVerified:
		return "verified"
	case ShortCodeExpired:
		return "expired"
	case ShortCodeIncorrect:
		return "incorrect"
	case ShortCodeLocked:
		return "locked"
	case ShortCodeNotFound:
		return "not_found"
	case ShortCodeServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// ThrottleStatus is the outcome of [Engine.CheckSendThrottle].
type ThrottleStatus uint8

const (
	ThrottleAllowed ThrottleStatus = iota + 1
	ThrottleTooManyRequests
	ThrottleServiceFailure
)

func (s ThrottleStatus) String() string {
	switch s {
	case ThrottleAllowed:
		return "allowed"
	case ThrottleTooManyRequests:
		return "too_many_requests"
	case ThrottleServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// PasswordSetStatus is the outcome of [Engine.SetPassword].
type PasswordSetStatus uint8

const (
	PasswordSetSuccess PasswordSetStatus = iota + 1
	PasswordSetPolicyRejected
	PasswordSetServiceFailure
)

func (s PasswordSetStatus) String() string {
	switch s {
	case PasswordSetSuccess:
		return "success"
	case PasswordSetPolicyRejected:
		return "policy_rejected"
	case PasswordSetServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// RemovePasswordStatus is the outcome of [Engine.RemovePassword].
type RemovePasswordStatus uint8

const (
	PasswordRemoved RemovePasswordStatus = iota + 1
	PasswordRemoveNotFound
	PasswordRemoveServiceFailure
)

func (s RemovePasswordStatus) String() string {
	switch s {
	case PasswordRemoved:
		return "removed"
	case PasswordRemoveNotFound:
		return "not_found"
	case PasswordRemoveServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// VerifyStatus is the outcome of [Engine.VerifyPassword].
type VerifyStatus uint8

const (
	VerifyMatches VerifyStatus = iota + 1
	// VerifyMatchesNeedsRehash means the password is correct but the stored
	// hash uses outdated parameters or a legacy algorithm. Call SetPassword
	// with the verified plaintext, or enable PasswordConfig.RehashOnVerify.
	VerifyMatchesNeedsRehash
	VerifyDoesNotMatch
	VerifyLocked
	VerifyServiceFailure
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyMatches:
		return "matches"
	case VerifyMatchesNeedsRehash:
		return "matches_needs_rehash"
	case VerifyDoesNotMatch:
		return "does_not_match"
	case VerifyLocked:
		return "locked"
	case VerifyServiceFailure:
		return "service_failure"
	default:
		return "unknown"
	}
}

// PublicOutcome is what an untrusted caller may be told. Not found, wrong
// code and expired all read as PublicInvalid so responses do not reveal
// which recipients hold a code.
type PublicOutcome uint8

const (
	PublicOK PublicOutcome = iota + 1
	PublicInvalid
	// PublicLocked is only reachable for a recipient or identity that exists:
	// unknown keys never accumulate failures. Callers that must hide account
	// existence should report it as PublicInvalid.
	PublicLocked
	PublicThrottled
	PublicUnavailable
)

func (o PublicOutcome) String() string {
	switch o {
	case PublicOK:
		return "ok"
	case PublicInvalid:
		return "invalid"
	case PublicLocked:
		return "locked"
	case PublicThrottled:
		return "throttled"
	case PublicUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// IssuedCode carries the plaintext codes for delivery. It is the only place
// plaintext codes ever exist; the store keeps digests.
type IssuedCode struct {
	Recipient   string
	ShortCode   string
	LongCode    string
	ExpiresAt   time.Time
	RedirectURL string
}

// IssueResult is returned by [Engine.IssueCode] and [Engine.RequestCode].
// Code is populated only when Status is IssueIssued; RetryAfter only when
// Status is IssueThrottled.
type IssueResult struct {
	Status     IssueStatus
	Code       IssuedCode
	RetryAfter time.Duration
}

// Public collapses the status into the outcome safe to show a caller.
func (r IssueResult) Public() PublicOutcome {
	switch r.Status {
	case IssueIssued:
		return PublicOK
	case IssueThrottled:
		return PublicThrottled
	default:
		return PublicUnavailable
	}
}

// LongCodeResult is returned by [Engine.RedeemByLongCode].
type LongCodeResult struct {
	Status      LongCodeStatus
	Recipient   string
	RedirectURL string
}

func (r LongCodeResult) Public() PublicOutcome {
	switch r.Status {
	case LongCodeRedeemed:
		return PublicOK
	case LongCodeNotFound, LongCodeExpired:
		return PublicInvalid
	default:
		return PublicUnavailable
	}
}

// ShortCodeResult is returned by [Engine.RedeemByShortCode].
// AttemptsRemaining is set for ShortCodeIncorrect.
type ShortCodeResult struct {
	Status            ShortCodeStatus
	RedirectURL       string
	AttemptsRemaining int
}

func (r ShortCodeResult) Public() PublicOutcome {
	switch r.Status {
	case ShortCodeVerified:
		return PublicOK
	case ShortCodeNotFound, ShortCodeIncorrect, ShortCodeExpired:
		return PublicInvalid
	case ShortCodeLocked:
		return PublicLocked
	default:
		return PublicUnavailable
	}
}

// ThrottleResult is returned by [Engine.CheckSendThrottle].
type ThrottleResult struct {
	Status     ThrottleStatus
	RetryAfter time.Duration
}

// PasswordSetResult is returned by [Engine.SetPassword]. Violation holds the
// password policy error when Status is PasswordSetPolicyRejected.
type PasswordSetResult struct {
	Status    PasswordSetStatus
	Violation error
}

// VerifyResult is returned by [Engine.VerifyPassword]. LockedUntil is set
// when Status is VerifyLocked.
type VerifyResult struct {
	Status      VerifyStatus
	LockedUntil time.Time
}

// Matched reports whether the password was accepted.
func (r VerifyResult) Matched() bool {
	return r.Status == VerifyMatches || r.Status == VerifyMatchesNeedsRehash
}

func (r VerifyResult) Public() PublicOutcome {
	switch r.Status {
	case VerifyMatches, VerifyMatchesNeedsRehash:
		return PublicOK
	case VerifyDoesNotMatch:
		return PublicInvalid
	case VerifyLocked:
		return PublicLocked
	default:
		return PublicUnavailable
	}
}

// PasswordState is a read-only view of an identity's password record.
type PasswordState struct {
	HasPassword    bool
	Locked         bool
	LockedUntil    time.Time
	FailedAttempts int
	LastChangedAt  time.Time
}
