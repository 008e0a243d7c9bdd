package goOTC

import (
	"crypto/rand"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/credstore/redisstore"
	"github.com/MrEthical07/goOTC/internal"
	"github.com/MrEthical07/goOTC/internal/rate"
	"github.com/MrEthical07/goOTC/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single-use.
//
// Builder instances are intended to be configured during initialization and then discarded after Build.
type Builder struct {
	config Config
	store  credstore.Store
	redis  redis.UniversalClient

	auditSink AuditSink
	estimator password.StrengthEstimator
	legacy    []password.Algorithm

	clock  func() time.Time
	random io.Reader

	built bool
}

// New starts a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the credential store. It takes precedence over the store
// WithRedis would otherwise create.
func (b *Builder) WithStore(store credstore.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies a Redis client. Without WithStore the engine stores
// records in Redis; the send limiter always needs it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets where audit events go when Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithStrengthEstimator plugs a password strength estimator into the policy.
// The default is [password.CharsetEstimator].
func (b *Builder) WithStrengthEstimator(est password.StrengthEstimator) *Builder {
	b.estimator = est
	return b
}

// WithLegacyHashers registers algorithms that can still verify old hashes.
// A match on a legacy hash reports VerifyMatchesNeedsRehash.
func (b *Builder) WithLegacyHashers(algs ...password.Algorithm) *Builder {
	b.legacy = append(b.legacy, algs...)
	return b
}

// WithMetricsEnabled toggles Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now, mainly for tests.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithRandom overrides crypto/rand.Reader as the code randomness source.
func (b *Builder) WithRandom(r io.Reader) *Builder {
	b.random = r
	return b
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, errors.New("credential store or redis client required")
		}
		store = redisstore.New(b.redis, redisstore.Options{
			Prefix:    cfg.Store.RedisPrefix,
			Retention: cfg.Store.ExpiredRetention,
			Now:       b.clock,
		})
	}
	if cfg.SendLimit.Enabled && b.redis == nil {
		return nil, errors.New("SendLimit requires redis client")
	}

	primary, err := password.NewArgon2(password.Config{
		Memory:           cfg.Password.Memory,
		Time:             cfg.Password.Time,
		Parallelism:      cfg.Password.Parallelism,
		SaltLength:       cfg.Password.SaltLength,
		KeyLength:        cfg.Password.KeyLength,
		MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:     cfg,
		store:      store,
		codeHasher: internal.NewCodeHasher(cfg.OneTimeCode.Pepper),
		passwords:  password.NewChain(primary, b.legacy...),
		policy: password.Policy{
			MinLength:      cfg.Password.MinLength,
			MaxLength:      cfg.Password.MaxLength,
			MinEntropyBits: cfg.Password.MinEntropyBits,
			Estimator:      b.estimator,
		},
		now:    b.clock,
		random: b.random,
	}
	if engine.now == nil {
		engine.now = time.Now
	}
	if engine.random == nil {
		engine.random = rand.Reader
	}

	// Verified against when the identity has no password so a miss costs
	// the same as a mismatch.
	filler, err := internal.NewLongCode(rand.Reader)
	if err != nil {
		return nil, err
	}
	engine.dummyHash, err = engine.passwords.Hash(filler)
	if err != nil {
		return nil, err
	}

	if cfg.SendLimit.Enabled {
		engine.sendLimiter = rate.New(b.redis, rate.Config{
			MaxSends: cfg.SendLimit.MaxSends,
			Window:   cfg.SendLimit.Window,
			Prefix:   cfg.SendLimit.RedisPrefix,
		})
	}
	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	b.built = true

	return engine, nil
}
