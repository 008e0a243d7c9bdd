package goOTC

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// testConfig keeps Argon2 at the package floor so tests stay fast.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinEntropyBits = 0
	cfg.Lockout.Threshold = 3
	cfg.Lockout.Duration = 10 * time.Minute
	cfg.OneTimeCode.MaxShortCodeAttempts = 3
	return cfg
}

func newTestEngine(t testing.TB, mutate func(*Config), opts ...func(*Builder)) (*Engine, *fakeClock, *credstore.Memory) {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	clock := newFakeClock()
	store := credstore.NewMemory()

	b := New().WithConfig(cfg).WithStore(store).WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, clock, store
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func mustIssue(t *testing.T, e *Engine, recipient string, validity time.Duration) IssuedCode {
	t.Helper()

	res, err := e.IssueCode(context.Background(), recipient, validity, "https://app.example.com/welcome")
	if err != nil {
		t.Fatalf("IssueCode failed: %v", err)
	}
	if res.Status != IssueIssued {
		t.Fatalf("expected issued, got %s", res.Status)
	}
	return res.Code
}

func mustSetPassword(t *testing.T, e *Engine, id, pw string) {
	t.Helper()

	res, err := e.SetPassword(context.Background(), id, pw)
	if err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	if res.Status != PasswordSetSuccess {
		t.Fatalf("expected success, got %s (%v)", res.Status, res.Violation)
	}
}

func wrongShortCode(code string) string {
	b := []byte(code)
	if b[0] == '9' {
		b[0] = '0'
	} else {
		b[0]++
	}
	return string(b)
}

var errStoreDown = errors.New("dial tcp 10.0.0.7:5432: connection refused")

// failingStore fails every call whose method name is in fail.
type failingStore struct {
	credstore.Store
	fail map[string]bool
}

func (s *failingStore) GetCode(ctx context.Context, r string) (credstore.OneTimeCode, error) {
	if s.fail["GetCode"] {
		return credstore.OneTimeCode{}, errStoreDown
	}
	return s.Store.GetCode(ctx, r)
}

func (s *failingStore) GetCodeByLongHash(ctx context.Context, h [32]byte) (credstore.OneTimeCode, error) {
	if s.fail["GetCodeByLongHash"] {
		return credstore.OneTimeCode{}, errStoreDown
	}
	return s.Store.GetCodeByLongHash(ctx, h)
}

func (s *failingStore) PutCode(ctx context.Context, c credstore.OneTimeCode) (credstore.OneTimeCode, error) {
	if s.fail["PutCode"] {
		return credstore.OneTimeCode{}, errStoreDown
	}
	return s.Store.PutCode(ctx, c)
}

func (s *failingStore) UpdateCode(ctx context.Context, c credstore.OneTimeCode, v uuid.UUID) (credstore.OneTimeCode, error) {
	if s.fail["UpdateCode"] {
		return credstore.OneTimeCode{}, errStoreDown
	}
	return s.Store.UpdateCode(ctx, c, v)
}

func (s *failingStore) GetPassword(ctx context.Context, id string) (credstore.PasswordCredential, error) {
	if s.fail["GetPassword"] {
		return credstore.PasswordCredential{}, errStoreDown
	}
	return s.Store.GetPassword(ctx, id)
}

func (s *failingStore) PutPassword(ctx context.Context, c credstore.PasswordCredential) (credstore.PasswordCredential, error) {
	if s.fail["PutPassword"] {
		return credstore.PasswordCredential{}, errStoreDown
	}
	return s.Store.PutPassword(ctx, c)
}

// conflictingStore reports a version conflict on every conditional write.
type conflictingStore struct {
	credstore.Store
}

func (conflictingStore) UpdateCode(context.Context, credstore.OneTimeCode, uuid.UUID) (credstore.OneTimeCode, error) {
	return credstore.OneTimeCode{}, credstore.ErrConflict
}

func (conflictingStore) DeleteCode(context.Context, string, uuid.UUID) error {
	return credstore.ErrConflict
}
