package fileconfig

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/credstore/redisstore"
	"github.com/alicebob/miniredis/v2"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestDefaultsMatchEngineDefaults(t *testing.T) {
	cfg := Defaults().EngineConfig()
	want := goOTC.DefaultConfig()

	if cfg.OneTimeCode.DefaultValidity != want.OneTimeCode.DefaultValidity ||
		cfg.Lockout != want.Lockout ||
		cfg.Password != want.Password ||
		cfg.Store != want.Store {
		t.Fatalf("defaults drifted:\n got %+v\nwant %+v", cfg, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default file config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "otc.yaml", `
one_time_code:
  short_code_digits: 8
  default_validity: 15m
  pepper: file-pepper
lockout:
  threshold: 7
  duration: 1h
store:
  backend: Redis
  redis_addr: redis:6379
http:
  link_base_url: https://app.example.com/redeem
`)

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.OneTimeCode.ShortCodeDigits != 8 || f.OneTimeCode.DefaultValidity != 15*time.Minute {
		t.Fatalf("one_time_code not applied: %+v", f.OneTimeCode)
	}
	if f.OneTimeCode.MaxShortCodeAttempts != 5 {
		t.Fatalf("expected unset fields to keep defaults, got %d", f.OneTimeCode.MaxShortCodeAttempts)
	}
	if f.Store.Backend != BackendRedis || f.Store.RedisAddr != "redis:6379" {
		t.Fatalf("store not applied: %+v", f.Store)
	}

	cfg := f.EngineConfig()
	if string(cfg.OneTimeCode.Pepper) != "file-pepper" || cfg.Lockout.Threshold != 7 || cfg.Lockout.Duration != time.Hour {
		t.Fatalf("engine config not mapped: %+v", cfg)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeFile(t, "otc.yaml", "lockout:\n  treshold: 3\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected unknown key to fail")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	path := writeFile(t, "otc.yaml", "")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Store.Backend != BackendMemory {
		t.Fatalf("expected defaults, got %+v", f.Store)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "otc.yaml", "lockout:\n  threshold: 7\n")
	t.Setenv("OTC_LOCKOUT_THRESHOLD", "9")
	t.Setenv("OTC_CODE_VALIDITY", "2m")
	t.Setenv("OTC_SEND_LIMIT_ENABLED", "true")

	f, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.Lockout.Threshold != 9 || f.OneTimeCode.DefaultValidity != 2*time.Minute || !f.SendLimit.Enabled {
		t.Fatalf("env overrides not applied: %+v", f)
	}
}

func TestEnvFileLoaded(t *testing.T) {
	env := writeFile(t, ".env", "OTC_SMTP_HOST=smtp.example.com\nOTC_SMTP_PORT=2525\n")
	// Registers restoration, then clears so the .env values apply.
	t.Setenv("OTC_SMTP_HOST", "")
	t.Setenv("OTC_SMTP_PORT", "")
	os.Unsetenv("OTC_SMTP_HOST")
	os.Unsetenv("OTC_SMTP_PORT")

	f, err := Load("", env, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if f.SMTP.Host != "smtp.example.com" || f.SMTP.Port != 2525 {
		t.Fatalf("expected .env values, got %+v", f.SMTP)
	}
}

func TestEnvParseErrors(t *testing.T) {
	f := Defaults()
	env := map[string]string{
		"OTC_LOCKOUT_THRESHOLD":  "many",
		"OTC_LOCKOUT_DURATION":   "forever",
		"OTC_SEND_LIMIT_ENABLED": "maybe",
	}
	err := applyEnv(&f, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil {
		t.Fatal("expected parse errors")
	}
	for key := range env {
		if !strings.Contains(err.Error(), key) {
			t.Fatalf("expected %s in error %v", key, err)
		}
	}
}

func TestOpenMemoryBackend(t *testing.T) {
	f := Defaults()
	f.Password.Memory = 8 * 1024
	f.Password.Time = 1
	f.Password.Parallelism = 1

	b, err := f.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer b.Close()

	if _, ok := b.Store.(*credstore.Memory); !ok {
		t.Fatalf("expected memory store, got %T", b.Store)
	}
	if b.Redis != nil {
		t.Fatal("memory backend should not connect to redis")
	}

	builder, err := b.Builder(f)
	if err != nil {
		t.Fatalf("Builder failed: %v", err)
	}
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	engine.Close()
}

func TestOpenRedisBackendWithAuditFile(t *testing.T) {
	mr := miniredis.RunT(t)
	f := Defaults()
	f.Store.Backend = BackendRedis
	f.Store.RedisAddr = mr.Addr()
	f.SendLimit.Enabled = true
	f.Audit.Enabled = true
	f.Audit.Path = filepath.Join(t.TempDir(), "audit.jsonl")
	f.Password.Memory = 8 * 1024
	f.Password.Time = 1
	f.Password.Parallelism = 1

	b, err := f.Open(context.Background())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, ok := b.Store.(*redisstore.Store); !ok {
		t.Fatalf("expected redis store, got %T", b.Store)
	}

	builder, err := b.Builder(f)
	if err != nil {
		t.Fatalf("Builder failed: %v", err)
	}
	engine, err := builder.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := engine.RequestCode(context.Background(), "a@b.com", ""); err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	engine.Close()
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(f.Audit.Path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(raw), `"event_type":"code_issued"`) {
		t.Fatalf("expected code_issued in audit log, got %q", raw)
	}
}

func TestOpenRejectsBadBackends(t *testing.T) {
	f := Defaults()
	f.Store.Backend = "cassandra"
	if _, err := f.Open(context.Background()); err == nil {
		t.Fatal("expected unknown backend to fail")
	}

	f.Store.Backend = BackendPostgres
	f.Store.PostgresDSN = ""
	if _, err := f.Open(context.Background()); err == nil {
		t.Fatal("expected postgres without DSN to fail")
	}
}
