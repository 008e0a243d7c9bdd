package goOTC

import (
	"testing"
	"time"
)

func hardenedConfig() Config {
	cfg := DefaultConfig()
	cfg.OneTimeCode.Pepper = []byte("0123456789abcdef0123456789abcdef")
	cfg.SendLimit.Enabled = true
	cfg.Audit.Enabled = true
	return cfg
}

func containsCode(ws LintWarnings, code string) bool {
	for _, c := range ws.Codes() {
		if c == code {
			return true
		}
	}
	return false
}

func TestLint_HardenedConfigNoWarnings(t *testing.T) {
	cfg := hardenedConfig()
	if ws := cfg.Lint(); len(ws) != 0 {
		t.Fatalf("expected no warnings, got %v", ws.Codes())
	}
}

func TestLint_DefaultConfigWarnings(t *testing.T) {
	ws := DefaultConfig().Lint()
	for _, code := range []string{"code_pepper_missing", "audit_disabled"} {
		if !containsCode(ws, code) {
			t.Fatalf("expected %s in %v", code, ws.Codes())
		}
	}
}

func TestLint_Cases(t *testing.T) {
	tests := []struct {
		code   string
		mutate func(*Config)
	}{
		{"short_code_attempts_high", func(c *Config) { c.OneTimeCode.MaxShortCodeAttempts = 11 }},
		{"validity_long", func(c *Config) { c.OneTimeCode.DefaultValidity = 2 * time.Hour }},
		{"lockout_short", func(c *Config) { c.Lockout.Duration = 30 * time.Second }},
		{"lockout_threshold_high", func(c *Config) { c.Lockout.Threshold = 50 }},
		{"password_entropy_unchecked", func(c *Config) { c.Password.MinEntropyBits = 0 }},
		{"resend_unbounded", func(c *Config) {
			c.SendLimit.Enabled = false
			c.OneTimeCode.ResendCooldown = time.Minute
		}},
		{"audit_disabled", func(c *Config) { c.Audit.Enabled = false }},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			cfg := hardenedConfig()
			tc.mutate(&cfg)
			ws := cfg.Lint()
			if !containsCode(ws, tc.code) {
				t.Fatalf("expected %s, got %v", tc.code, ws.Codes())
			}
			if len(ws) != 1 {
				t.Fatalf("expected exactly one warning, got %v", ws.Codes())
			}
		})
	}
}

func TestLint_NeverFails(t *testing.T) {
	cfg := Config{}
	_ = cfg.Lint()
}
