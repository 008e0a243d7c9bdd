package fileconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names accepted in store.backend.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// File mirrors the YAML layout. Durations use Go syntax ("10m", "1h30m").
type File struct {
	OneTimeCode OneTimeCodeSection `yaml:"one_time_code"`
	Password    PasswordSection    `yaml:"password"`
	Lockout     LockoutSection     `yaml:"lockout"`
	SendLimit   SendLimitSection   `yaml:"send_limit"`
	Store       StoreSection       `yaml:"store"`
	Audit       AuditSection       `yaml:"audit"`
	Metrics     MetricsSection     `yaml:"metrics"`
	SMTP        SMTPSection        `yaml:"smtp"`
	HTTP        HTTPSection        `yaml:"http"`
	Sweeper     SweeperSection     `yaml:"sweeper"`
}

type OneTimeCodeSection struct {
	ShortCodeDigits      int           `yaml:"short_code_digits"`
	MaxShortCodeAttempts int           `yaml:"max_short_code_attempts"`
	DefaultValidity      time.Duration `yaml:"default_validity"`
	ResendCooldown       time.Duration `yaml:"resend_cooldown"`
	Pepper               string        `yaml:"pepper"`
}

type PasswordSection struct {
	Memory           uint32  `yaml:"memory_kib"`
	Time             uint32  `yaml:"time"`
	Parallelism      uint8   `yaml:"parallelism"`
	SaltLength       uint32  `yaml:"salt_length"`
	KeyLength        uint32  `yaml:"key_length"`
	MaxPasswordBytes int     `yaml:"max_password_bytes"`
	MinLength        int     `yaml:"min_length"`
	MaxLength        int     `yaml:"max_length"`
	MinEntropyBits   float64 `yaml:"min_entropy_bits"`
	RehashOnVerify   bool    `yaml:"rehash_on_verify"`
}

type LockoutSection struct {
	Threshold int           `yaml:"threshold"`
	Duration  time.Duration `yaml:"duration"`
}

type SendLimitSection struct {
	Enabled     bool          `yaml:"enabled"`
	MaxSends    int           `yaml:"max_sends"`
	Window      time.Duration `yaml:"window"`
	RedisPrefix string        `yaml:"redis_prefix"`
}

type StoreSection struct {
	Backend            string        `yaml:"backend"`
	RedisAddr          string        `yaml:"redis_addr"`
	RedisPassword      string        `yaml:"redis_password"`
	RedisDB            int           `yaml:"redis_db"`
	RedisPrefix        string        `yaml:"redis_prefix"`
	PostgresDSN        string        `yaml:"postgres_dsn"`
	Migrate            bool          `yaml:"migrate"`
	ExpiredRetention   time.Duration `yaml:"expired_retention"`
	MaxConflictRetries int           `yaml:"max_conflict_retries"`
}

type AuditSection struct {
	Enabled      bool   `yaml:"enabled"`
	BufferSize   int    `yaml:"buffer_size"`
	DropIfFull   bool   `yaml:"drop_if_full"`
	HashSubjects bool   `yaml:"hash_subjects"`
	Path         string `yaml:"path"`
}

type MetricsSection struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"latency_histograms"`
}

type SMTPSection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type HTTPSection struct {
	Addr        string `yaml:"addr"`
	LinkBaseURL string `yaml:"link_base_url"`
}

type SweeperSection struct {
	Interval time.Duration `yaml:"interval"`
}

// Defaults returns goOTC.DefaultConfig expressed as a File, with an
// in-memory store.
func Defaults() File {
	d := goOTC.DefaultConfig()
	return File{
		OneTimeCode: OneTimeCodeSection{
			ShortCodeDigits:      d.OneTimeCode.ShortCodeDigits,
			MaxShortCodeAttempts: d.OneTimeCode.MaxShortCodeAttempts,
			DefaultValidity:      d.OneTimeCode.DefaultValidity,
			ResendCooldown:       d.OneTimeCode.ResendCooldown,
		},
		Password: PasswordSection{
			Memory:           d.Password.Memory,
			Time:             d.Password.Time,
			Parallelism:      d.Password.Parallelism,
			SaltLength:       d.Password.SaltLength,
			KeyLength:        d.Password.KeyLength,
			MaxPasswordBytes: d.Password.MaxPasswordBytes,
			MinLength:        d.Password.MinLength,
			MaxLength:        d.Password.MaxLength,
			MinEntropyBits:   d.Password.MinEntropyBits,
			RehashOnVerify:   d.Password.RehashOnVerify,
		},
		Lockout: LockoutSection{
			Threshold: d.Lockout.Threshold,
			Duration:  d.Lockout.Duration,
		},
		SendLimit: SendLimitSection{
			Enabled:     d.SendLimit.Enabled,
			MaxSends:    d.SendLimit.MaxSends,
			Window:      d.SendLimit.Window,
			RedisPrefix: d.SendLimit.RedisPrefix,
		},
		Store: StoreSection{
			Backend:            BackendMemory,
			RedisAddr:          "127.0.0.1:6379",
			RedisPrefix:        d.Store.RedisPrefix,
			ExpiredRetention:   d.Store.ExpiredRetention,
			MaxConflictRetries: d.Store.MaxConflictRetries,
		},
		Audit: AuditSection{
			Enabled:      d.Audit.Enabled,
			BufferSize:   d.Audit.BufferSize,
			DropIfFull:   d.Audit.DropIfFull,
			HashSubjects: d.Audit.HashSubjects,
		},
		Metrics: MetricsSection{
			Enabled:                 d.Metrics.Enabled,
			EnableLatencyHistograms: d.Metrics.EnableLatencyHistograms,
		},
		SMTP: SMTPSection{Port: 587},
		HTTP: HTTPSection{
			Addr:        ":8080",
			LinkBaseURL: "http://localhost:8080/redeem",
		},
		Sweeper: SweeperSection{Interval: 5 * time.Minute},
	}
}

// Load reads path (skipped when empty) over Defaults, then applies OTC_*
// environment overrides. envFiles are loaded with godotenv first; missing
// files are ignored and variables already set in the process win.
func Load(path string, envFiles ...string) (File, error) {
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return File{}, fmt.Errorf("fileconfig: load %s: %w", name, err)
		}
	}

	f := Defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return File{}, fmt.Errorf("fileconfig: read %s: %w", path, err)
		}
		if err := decode(raw, &f); err != nil {
			return File{}, fmt.Errorf("fileconfig: parse %s: %w", path, err)
		}
	}

	if err := applyEnv(&f, os.LookupEnv); err != nil {
		return File{}, err
	}
	return f, nil
}

func decode(raw []byte, f *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

func applyEnv(f *File, lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("OTC_CODE_PEPPER", &f.OneTimeCode.Pepper)
	integer("OTC_SHORT_CODE_DIGITS", &f.OneTimeCode.ShortCodeDigits)
	integer("OTC_MAX_SHORT_CODE_ATTEMPTS", &f.OneTimeCode.MaxShortCodeAttempts)
	duration("OTC_CODE_VALIDITY", &f.OneTimeCode.DefaultValidity)
	duration("OTC_RESEND_COOLDOWN", &f.OneTimeCode.ResendCooldown)

	integer("OTC_LOCKOUT_THRESHOLD", &f.Lockout.Threshold)
	duration("OTC_LOCKOUT_DURATION", &f.Lockout.Duration)

	boolean("OTC_SEND_LIMIT_ENABLED", &f.SendLimit.Enabled)
	integer("OTC_SEND_LIMIT_MAX", &f.SendLimit.MaxSends)
	duration("OTC_SEND_LIMIT_WINDOW", &f.SendLimit.Window)

	str("OTC_STORE_BACKEND", &f.Store.Backend)
	str("OTC_REDIS_ADDR", &f.Store.RedisAddr)
	str("OTC_REDIS_PASSWORD", &f.Store.RedisPassword)
	integer("OTC_REDIS_DB", &f.Store.RedisDB)
	str("OTC_POSTGRES_DSN", &f.Store.PostgresDSN)
	boolean("OTC_POSTGRES_MIGRATE", &f.Store.Migrate)

	boolean("OTC_AUDIT_ENABLED", &f.Audit.Enabled)
	str("OTC_AUDIT_PATH", &f.Audit.Path)
	boolean("OTC_METRICS_ENABLED", &f.Metrics.Enabled)

	str("OTC_SMTP_HOST", &f.SMTP.Host)
	integer("OTC_SMTP_PORT", &f.SMTP.Port)
	str("OTC_SMTP_USERNAME", &f.SMTP.Username)
	str("OTC_SMTP_PASSWORD", &f.SMTP.Password)
	str("OTC_SMTP_FROM", &f.SMTP.From)

	str("OTC_HTTP_ADDR", &f.HTTP.Addr)
	str("OTC_LINK_BASE_URL", &f.HTTP.LinkBaseURL)
	duration("OTC_SWEEP_INTERVAL", &f.Sweeper.Interval)

	f.Store.Backend = strings.ToLower(strings.TrimSpace(f.Store.Backend))
	if len(errs) > 0 {
		return fmt.Errorf("fileconfig: environment: %w", errors.Join(errs...))
	}
	return nil
}

// EngineConfig converts the file into the engine's configuration.
func (f File) EngineConfig() goOTC.Config {
	cfg := goOTC.DefaultConfig()

	cfg.OneTimeCode.ShortCodeDigits = f.OneTimeCode.ShortCodeDigits
	cfg.OneTimeCode.MaxShortCodeAttempts = f.OneTimeCode.MaxShortCodeAttempts
	cfg.OneTimeCode.DefaultValidity = f.OneTimeCode.DefaultValidity
	cfg.OneTimeCode.ResendCooldown = f.OneTimeCode.ResendCooldown
	if f.OneTimeCode.Pepper != "" {
		cfg.OneTimeCode.Pepper = []byte(f.OneTimeCode.Pepper)
	}

	cfg.Password = goOTC.PasswordConfig{
		Memory:           f.Password.Memory,
		Time:             f.Password.Time,
		Parallelism:      f.Password.Parallelism,
		SaltLength:       f.Password.SaltLength,
		KeyLength:        f.Password.KeyLength,
		MaxPasswordBytes: f.Password.MaxPasswordBytes,
		MinLength:        f.Password.MinLength,
		MaxLength:        f.Password.MaxLength,
		MinEntropyBits:   f.Password.MinEntropyBits,
		RehashOnVerify:   f.Password.RehashOnVerify,
	}
	cfg.Lockout = goOTC.LockoutConfig{
		Threshold: f.Lockout.Threshold,
		Duration:  f.Lockout.Duration,
	}
	cfg.SendLimit = goOTC.SendLimitConfig{
		Enabled:     f.SendLimit.Enabled,
		MaxSends:    f.SendLimit.MaxSends,
		Window:      f.SendLimit.Window,
		RedisPrefix: f.SendLimit.RedisPrefix,
	}
	cfg.Store = goOTC.StoreConfig{
		RedisPrefix:        f.Store.RedisPrefix,
		ExpiredRetention:   f.Store.ExpiredRetention,
		MaxConflictRetries: f.Store.MaxConflictRetries,
	}
	cfg.Audit = goOTC.AuditConfig{
		Enabled:      f.Audit.Enabled,
		BufferSize:   f.Audit.BufferSize,
		DropIfFull:   f.Audit.DropIfFull,
		HashSubjects: f.Audit.HashSubjects,
	}
	cfg.Metrics = goOTC.MetricsConfig{
		Enabled:                 f.Metrics.Enabled,
		EnableLatencyHistograms: f.Metrics.EnableLatencyHistograms,
	}
	return cfg
}
