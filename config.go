package goOTC

import (
	"errors"
	"time"

	"github.com/MrEthical07/goOTC/internal"
)

// Config holds every engine tunable. Obtain one from [DefaultConfig] and
// override fields; [Builder.Build] validates it.
type Config struct {
	OneTimeCode OneTimeCodeConfig
	Password    PasswordConfig
	Lockout     LockoutConfig
	SendLimit   SendLimitConfig
	Store       StoreConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
ONE-TIME CODE CONFIG
====================================
*/

// OneTimeCodeConfig controls code shape and the short-code attempt cap.
type OneTimeCodeConfig struct {
	ShortCodeDigits      int
	MaxShortCodeAttempts int
	// DefaultValidity is used by RequestCode.
	DefaultValidity time.Duration
	// ResendCooldown, when > 0, lets a resend through once the live code is
	// at least this old, superseding it. Zero means a live code always
	// blocks resends until it expires or its attempts run out.
	ResendCooldown time.Duration
	// Pepper switches code digests to HMAC-SHA-256 keyed with this secret.
	Pepper []byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and the strength policy bounds.
type PasswordConfig struct {
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int

	MinLength      int
	MaxLength      int
	MinEntropyBits float64

	// RehashOnVerify upgrades outdated hashes inline after a successful
	// verification instead of reporting VerifyMatchesNeedsRehash.
	RehashOnVerify bool
}

// LockoutConfig drives the password lockout state machine.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// SendLimitConfig enables the Redis fixed-window send counter that caps how
// many codes one recipient can be sent per window.
type SendLimitConfig struct {
	Enabled     bool
	MaxSends    int
	Window      time.Duration
	RedisPrefix string
}

// StoreConfig tunes the default Redis store and the engine's optimistic
// concurrency loop.
type StoreConfig struct {
	RedisPrefix string
	// ExpiredRetention is how long an expired code stays readable so a late
	// attempt reports Expired. SweepExpiredCodes only removes rows older
	// than this.
	ExpiredRetention time.Duration
	// MaxConflictRetries bounds how often an operation re-reads a record
	// after losing a version race.
	MaxConflictRetries int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// HashSubjects replaces recipients and identity ids in audit events with
	// a truncated SHA-256 digest.
	HashSubjects bool
}

// MetricsConfig toggles in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns a configuration suitable for production with a
// single process, minus a pepper.
func DefaultConfig() Config {
	return Config{
		OneTimeCode: OneTimeCodeConfig{
			ShortCodeDigits:      6,
			MaxShortCodeAttempts: 5,
			DefaultValidity:      10 * time.Minute,
		},
		Password: PasswordConfig{
			Memory:           65536,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			MinLength:        8,
			MaxLength:        256,
			MinEntropyBits:   28,
			RehashOnVerify:   false,
		},
		Lockout: LockoutConfig{
			Threshold: 5,
			Duration:  15 * time.Minute,
		},
		SendLimit: SendLimitConfig{
			Enabled:     false,
			MaxSends:    5,
			Window:      time.Hour,
			RedisPrefix: "os",
		},
		Store: StoreConfig{
			RedisPrefix:        "otc",
			ExpiredRetention:   time.Hour,
			MaxConflictRetries: 4,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.OneTimeCode.Pepper = cloneBytes(cfg.OneTimeCode.Pepper)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid field. Argon2 parameter floors are
// enforced separately by the password package at build time.
func (c *Config) Validate() error {
	// One-time code
	if c.OneTimeCode.ShortCodeDigits < internal.MinShortCodeDigits ||
		c.OneTimeCode.ShortCodeDigits > internal.MaxShortCodeDigits {
		return errors.New("OneTimeCode ShortCodeDigits must be between 6 and 10")
	}
	if c.OneTimeCode.MaxShortCodeAttempts < 1 {
		return errors.New("OneTimeCode MaxShortCodeAttempts must be >= 1")
	}
	if c.OneTimeCode.DefaultValidity <= 0 {
		return errors.New("OneTimeCode DefaultValidity must be > 0")
	}
	if c.OneTimeCode.ResendCooldown < 0 {
		return errors.New("OneTimeCode ResendCooldown must be >= 0")
	}

	// Password policy
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be >= 1")
	}
	if c.Password.MaxLength != 0 && c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be 0 or >= MinLength")
	}
	if c.Password.MinEntropyBits < 0 {
		return errors.New("Password MinEntropyBits must be >= 0")
	}
	if c.Password.MaxPasswordBytes < 0 {
		return errors.New("Password MaxPasswordBytes must be >= 0")
	}

	// Lockout
	if c.Lockout.Threshold < 1 {
		return errors.New("Lockout Threshold must be >= 1")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Send limit
	if c.SendLimit.Enabled {
		if c.SendLimit.MaxSends < 1 {
			return errors.New("SendLimit MaxSends must be >= 1 when enabled")
		}
		if c.SendLimit.Window <= 0 {
			return errors.New("SendLimit Window must be > 0 when enabled")
		}
	}

	// Store
	if c.Store.ExpiredRetention <= 0 {
		return errors.New("Store ExpiredRetention must be > 0")
	}
	if c.Store.MaxConflictRetries < 1 {
		return errors.New("Store MaxConflictRetries must be >= 1")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
