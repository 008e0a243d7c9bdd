package goOTC

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestIssueAndRedeemShortCodeExample(t *testing.T) {
	// 482913 as a big-endian uint64, then 32 bytes for the long code.
	random := append([]byte{0, 0, 0, 0, 0, 0x07, 0x5E, 0x61}, bytes.Repeat([]byte{0xAB}, 32)...)
	engine, _, _ := newTestEngine(t, nil, func(b *Builder) {
		b.WithRandom(bytes.NewReader(random))
	})
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	if code.ShortCode != "482913" {
		t.Fatalf("expected short code 482913, got %q", code.ShortCode)
	}

	res, err := engine.RedeemByShortCode(ctx, "a@b.com", "482913")
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeVerified {
		t.Fatalf("expected verified, got %s", res.Status)
	}
	if res.RedirectURL != "https://app.example.com/welcome" {
		t.Fatalf("unexpected redirect %q", res.RedirectURL)
	}

	res, err = engine.RedeemByShortCode(ctx, "a@b.com", "482913")
	if err != nil {
		t.Fatalf("second RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeNotFound {
		t.Fatalf("expected not_found on reuse, got %s", res.Status)
	}
}

func TestShortCodeZeroPadded(t *testing.T) {
	random := append(make([]byte, 7), 42)
	random = append(random, bytes.Repeat([]byte{1}, 32)...)
	engine, _, _ := newTestEngine(t, nil, func(b *Builder) {
		b.WithRandom(bytes.NewReader(random))
	})

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	if code.ShortCode != "000042" {
		t.Fatalf("expected 000042, got %q", code.ShortCode)
	}
}

func TestShortAndLongCodesAreIndependent(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	if len(code.LongCode) != 43 {
		t.Fatalf("expected 43-char long code, got %d", len(code.LongCode))
	}
	if strings.Contains(code.LongCode, code.ShortCode) {
		t.Fatal("long code must not embed the short code")
	}
}

func TestIssueSupersedesPreviousCode(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	first := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	second := mustIssue(t, engine, "a@b.com", 10*time.Minute)

	long, err := engine.RedeemByLongCode(ctx, first.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if long.Status != LongCodeNotFound {
		t.Fatalf("expected superseded long code not_found, got %s", long.Status)
	}

	if first.ShortCode != second.ShortCode {
		short, err := engine.RedeemByShortCode(ctx, "a@b.com", first.ShortCode)
		if err != nil {
			t.Fatalf("RedeemByShortCode failed: %v", err)
		}
		if short.Status != ShortCodeIncorrect {
			t.Fatalf("expected superseded short code incorrect, got %s", short.Status)
		}
	}

	long, err = engine.RedeemByLongCode(ctx, second.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if long.Status != LongCodeRedeemed || long.Recipient != "a@b.com" {
		t.Fatalf("expected second code redeemed for a@b.com, got %+v", long)
	}
}

func TestRedeemByLongCodeSingleUse(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)

	res, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if res.Status != LongCodeRedeemed {
		t.Fatalf("expected redeemed, got %s", res.Status)
	}
	if res.RedirectURL != "https://app.example.com/welcome" {
		t.Fatalf("unexpected redirect %q", res.RedirectURL)
	}

	res, err = engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil {
		t.Fatalf("second RedeemByLongCode failed: %v", err)
	}
	if res.Status != LongCodeNotFound {
		t.Fatalf("expected not_found on reuse, got %s", res.Status)
	}

	short, err := engine.RedeemByShortCode(ctx, "a@b.com", code.ShortCode)
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if short.Status != ShortCodeNotFound {
		t.Fatalf("expected short code consumed with the long code, got %s", short.Status)
	}
}

func TestRedeemByLongCodeMalformedInput(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	mustIssue(t, engine, "a@b.com", time.Minute)

	for _, in := range []string{"", "short", strings.Repeat("x", 4096), "%%%"} {
		res, err := engine.RedeemByLongCode(context.Background(), in)
		if err != nil {
			t.Fatalf("RedeemByLongCode(%q) failed: %v", in, err)
		}
		if res.Status != LongCodeNotFound {
			t.Fatalf("expected not_found for %q, got %s", in, res.Status)
		}
	}
}

func TestExpiredShortCodeRemovesRecord(t *testing.T) {
	engine, clock, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	clock.Advance(10*time.Minute + time.Second)

	res, err := engine.RedeemByShortCode(ctx, "a@b.com", "000000")
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeExpired {
		t.Fatalf("expected expired regardless of code, got %s", res.Status)
	}

	long, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if long.Status != LongCodeNotFound {
		t.Fatalf("expected record purged by expiry check, got %s", long.Status)
	}
}

func TestExpiryBoundaryIsInclusive(t *testing.T) {
	engine, clock, _ := newTestEngine(t, nil)

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	clock.Advance(time.Minute)

	res, err := engine.RedeemByShortCode(context.Background(), "a@b.com", code.ShortCode)
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeVerified {
		t.Fatalf("expected a code to still work at exactly its expiry, got %s", res.Status)
	}
}

func TestExpiredLongCode(t *testing.T) {
	engine, clock, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	clock.Advance(2 * time.Minute)

	res, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if res.Status != LongCodeExpired {
		t.Fatalf("expected expired, got %s", res.Status)
	}

	short, err := engine.RedeemByShortCode(ctx, "a@b.com", code.ShortCode)
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if short.Status != ShortCodeNotFound {
		t.Fatalf("expected not_found after expiry purge, got %s", short.Status)
	}
}

func TestShortCodeLockoutLeavesLongCodeUsable(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	wrong := wrongShortCode(code.ShortCode)

	for want := 2; want >= 0; want-- {
		res, err := engine.RedeemByShortCode(ctx, "a@b.com", wrong)
		if err != nil {
			t.Fatalf("RedeemByShortCode failed: %v", err)
		}
		if res.Status != ShortCodeIncorrect {
			t.Fatalf("expected incorrect, got %s", res.Status)
		}
		if res.AttemptsRemaining != want {
			t.Fatalf("expected %d attempts remaining, got %d", want, res.AttemptsRemaining)
		}
	}

	res, err := engine.RedeemByShortCode(ctx, "a@b.com", code.ShortCode)
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeLocked {
		t.Fatalf("expected locked even with the correct code, got %s", res.Status)
	}

	long, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil {
		t.Fatalf("RedeemByLongCode failed: %v", err)
	}
	if long.Status != LongCodeRedeemed {
		t.Fatalf("expected long code to bypass short-code lockout, got %s", long.Status)
	}
}

func TestShortCodeIgnoresSeparators(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	typed := code.ShortCode[:3] + " - " + code.ShortCode[3:]

	res, err := engine.RedeemByShortCode(context.Background(), "a@b.com", typed)
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeVerified {
		t.Fatalf("expected verified for %q, got %s", typed, res.Status)
	}
}

func TestRedeemShortCodeUnknownRecipient(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	res, err := engine.RedeemByShortCode(context.Background(), "nobody@b.com", "123456")
	if err != nil {
		t.Fatalf("RedeemByShortCode failed: %v", err)
	}
	if res.Status != ShortCodeNotFound {
		t.Fatalf("expected not_found, got %s", res.Status)
	}
	if res.Public() != PublicInvalid {
		t.Fatalf("expected public invalid, got %s", res.Public())
	}
}

func TestIssueCodeValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	if _, err := engine.IssueCode(ctx, "a@b.com", 0, ""); !errors.Is(err, ErrInvalidValidity) {
		t.Fatalf("expected ErrInvalidValidity, got %v", err)
	}
	if _, err := engine.IssueCode(ctx, "a@b.com", -time.Second, ""); !errors.Is(err, ErrInvalidValidity) {
		t.Fatalf("expected ErrInvalidValidity, got %v", err)
	}
	if _, err := engine.IssueCode(ctx, "  ", time.Minute, ""); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}
	if _, err := engine.RedeemByShortCode(ctx, "", "123456"); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("expected ErrInvalidRecipient, got %v", err)
	}

	var nilEngine *Engine
	if _, err := nilEngine.IssueCode(ctx, "a@b.com", time.Minute, ""); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}

func TestCodesStoredAsDigests(t *testing.T) {
	engine, _, store := newTestEngine(t, nil)

	code := mustIssue(t, engine, "a@b.com", time.Minute)
	record, err := store.GetCode(context.Background(), "a@b.com")
	if err != nil {
		t.Fatalf("GetCode failed: %v", err)
	}
	if record.ShortCodeHash == sha256.Sum256([]byte(code.ShortCode)) {
		t.Fatal("short code digest must be domain-separated")
	}
	if record.ShortCodeHash == ([32]byte{}) || record.LongCodeHash == ([32]byte{}) {
		t.Fatal("expected both digests populated")
	}
}

func TestPepperChangesDigests(t *testing.T) {
	random := func() *bytes.Reader {
		return bytes.NewReader(bytes.Repeat([]byte{7}, 40))
	}
	plain, _, plainStore := newTestEngine(t, nil, func(b *Builder) { b.WithRandom(random()) })
	peppered, _, pepperedStore := newTestEngine(t, func(c *Config) {
		c.OneTimeCode.Pepper = []byte("0123456789abcdef0123456789abcdef")
	}, func(b *Builder) { b.WithRandom(random()) })

	mustIssue(t, plain, "a@b.com", time.Minute)
	mustIssue(t, peppered, "a@b.com", time.Minute)

	a, _ := plainStore.GetCode(context.Background(), "a@b.com")
	b, _ := pepperedStore.GetCode(context.Background(), "a@b.com")
	if a.ShortCodeHash == b.ShortCodeHash {
		t.Fatal("expected pepper to change the short code digest")
	}
}

func TestCheckSendThrottle(t *testing.T) {
	engine, clock, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleAllowed {
		t.Fatalf("expected allowed without a code, got %s", res.Status)
	}

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	clock.Advance(time.Minute)

	res, err = engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleTooManyRequests {
		t.Fatalf("expected too_many_requests with a live code, got %s", res.Status)
	}
	if res.RetryAfter != 9*time.Minute {
		t.Fatalf("expected retry after 9m, got %v", res.RetryAfter)
	}

	// The check must not consume the code.
	short, err := engine.RedeemByShortCode(ctx, "a@b.com", wrongShortCode(code.ShortCode))
	if err != nil || short.Status != ShortCodeIncorrect {
		t.Fatalf("expected code intact after throttle check, got %s / %v", short.Status, err)
	}

	clock.Advance(10 * time.Minute)
	res, err = engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleAllowed {
		t.Fatalf("expected allowed once expired, got %s", res.Status)
	}
}

func TestCheckSendThrottleAllowsAfterAttemptsExhausted(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 10*time.Minute)
	for i := 0; i < 3; i++ {
		if _, err := engine.RedeemByShortCode(ctx, "a@b.com", wrongShortCode(code.ShortCode)); err != nil {
			t.Fatalf("RedeemByShortCode failed: %v", err)
		}
	}

	res, err := engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleAllowed {
		t.Fatalf("expected allowed for an exhausted code, got %s", res.Status)
	}
}

func TestResendCooldown(t *testing.T) {
	engine, clock, _ := newTestEngine(t, func(c *Config) {
		c.OneTimeCode.ResendCooldown = time.Minute
	})
	ctx := context.Background()

	mustIssue(t, engine, "a@b.com", 10*time.Minute)
	clock.Advance(20 * time.Second)

	res, err := engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleTooManyRequests || res.RetryAfter != 40*time.Second {
		t.Fatalf("expected throttled for 40s, got %s / %v", res.Status, res.RetryAfter)
	}

	clock.Advance(40 * time.Second)
	res, err = engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleAllowed {
		t.Fatalf("expected allowed after cooldown, got %s", res.Status)
	}
}

func TestRequestCode(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	res, err := engine.RequestCode(ctx, "a@b.com", "")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if res.Status != IssueIssued {
		t.Fatalf("expected issued, got %s", res.Status)
	}
	if got := res.Code.ExpiresAt.Sub(engine.clock()); got != 10*time.Minute {
		t.Fatalf("expected default validity 10m, got %v", got)
	}

	again, err := engine.RequestCode(ctx, "a@b.com", "")
	if err != nil {
		t.Fatalf("RequestCode failed: %v", err)
	}
	if again.Status != IssueThrottled || again.RetryAfter <= 0 {
		t.Fatalf("expected throttled with retry-after, got %+v", again)
	}
	if again.Public() != PublicThrottled {
		t.Fatalf("expected public throttled, got %s", again.Public())
	}

	// The original code must survive the refused resend.
	short, err := engine.RedeemByShortCode(ctx, "a@b.com", res.Code.ShortCode)
	if err != nil || short.Status != ShortCodeVerified {
		t.Fatalf("expected original code verified, got %s / %v", short.Status, err)
	}
}

func TestInvalidateCode(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", time.Minute)

	ok, err := engine.InvalidateCode(ctx, "a@b.com")
	if err != nil || !ok {
		t.Fatalf("expected invalidation, got %v / %v", ok, err)
	}
	ok, err = engine.InvalidateCode(ctx, "a@b.com")
	if err != nil || ok {
		t.Fatalf("expected nothing to invalidate, got %v / %v", ok, err)
	}

	res, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil || res.Status != LongCodeNotFound {
		t.Fatalf("expected not_found after invalidation, got %s / %v", res.Status, err)
	}
}

func TestSendLimiterThrottlesAcrossReissues(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _, _ := newTestEngine(t, func(c *Config) {
		c.SendLimit.Enabled = true
		c.SendLimit.MaxSends = 2
		c.SendLimit.Window = time.Hour
	}, func(b *Builder) {
		b.WithRedis(rdb)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := engine.RequestCode(ctx, "a@b.com", "")
		if err != nil || res.Status != IssueIssued {
			t.Fatalf("send %d: expected issued, got %s / %v", i, res.Status, err)
		}
		if _, err := engine.InvalidateCode(ctx, "a@b.com"); err != nil {
			t.Fatalf("InvalidateCode failed: %v", err)
		}
	}

	res, err := engine.CheckSendThrottle(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("CheckSendThrottle failed: %v", err)
	}
	if res.Status != ThrottleTooManyRequests {
		t.Fatalf("expected send window exhausted, got %s", res.Status)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Hour {
		t.Fatalf("unexpected retry-after %v", res.RetryAfter)
	}
}

func TestRedemptionResetsSendWindow(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine, _, _ := newTestEngine(t, func(c *Config) {
		c.SendLimit.Enabled = true
		c.SendLimit.MaxSends = 1
		c.SendLimit.Window = time.Hour
	}, func(b *Builder) {
		b.WithRedis(rdb)
	})
	ctx := context.Background()

	res, err := engine.RequestCode(ctx, "a@b.com", "")
	if err != nil || res.Status != IssueIssued {
		t.Fatalf("expected issued, got %s / %v", res.Status, err)
	}
	if got, _ := engine.RedeemByShortCode(ctx, "a@b.com", res.Code.ShortCode); got.Status != ShortCodeVerified {
		t.Fatalf("expected verified, got %s", got.Status)
	}

	res, err = engine.RequestCode(ctx, "a@b.com", "")
	if err != nil || res.Status != IssueIssued {
		t.Fatalf("expected send window reset after redemption, got %s / %v", res.Status, err)
	}
	if got, _ := engine.RedeemByLongCode(ctx, res.Code.LongCode); got.Status != LongCodeRedeemed {
		t.Fatalf("expected redeemed, got %s", got.Status)
	}
	if th, _ := engine.CheckSendThrottle(ctx, "a@b.com"); th.Status != ThrottleAllowed {
		t.Fatalf("expected allowed after long-code redemption, got %s", th.Status)
	}
}

func TestStoreFailureIsServiceFailure(t *testing.T) {
	engine, _, mem := newTestEngine(t, nil)
	ctx := context.Background()

	store := &failingStore{Store: mem, fail: map[string]bool{}}
	engine.store = store

	store.fail["PutCode"] = true
	issue, err := engine.IssueCode(ctx, "a@b.com", time.Minute, "")
	if issue.Status != IssueServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure, got %s / %v", issue.Status, err)
	}
	if strings.Contains(err.Error(), "10.0.0.7") {
		t.Fatalf("raw store error leaked: %v", err)
	}

	store.fail["GetCode"] = true
	short, err := engine.RedeemByShortCode(ctx, "a@b.com", "123456")
	if short.Status != ShortCodeServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure, got %s / %v", short.Status, err)
	}
	if short.Public() != PublicUnavailable {
		t.Fatalf("expected public unavailable, got %s", short.Public())
	}

	store.fail["GetCodeByLongHash"] = true
	long, err := engine.RedeemByLongCode(ctx, "anything")
	if long.Status != LongCodeServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure, got %s / %v", long.Status, err)
	}

	throttle, err := engine.CheckSendThrottle(ctx, "a@b.com")
	if throttle.Status != ThrottleServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure, got %s / %v", throttle.Status, err)
	}

	req, err := engine.RequestCode(ctx, "a@b.com", "")
	if req.Status != IssueServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure, got %s / %v", req.Status, err)
	}
}

func TestConflictRetriesExhausted(t *testing.T) {
	engine, _, mem := newTestEngine(t, nil)
	code := mustIssue(t, engine, "a@b.com", time.Minute)
	engine.store = conflictingStore{Store: mem}

	res, err := engine.RedeemByShortCode(context.Background(), "a@b.com", code.ShortCode)
	if res.Status != ShortCodeServiceFailure || !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("expected service failure after retries, got %s / %v", res.Status, err)
	}
}

func TestCanceledContextIsMatchable(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := engine.IssueCode(ctx, "a@b.com", time.Minute, "")
	if res.Status != IssueServiceFailure {
		t.Fatalf("expected service failure, got %s", res.Status)
	}
	if !errors.Is(err, ErrServiceUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected both sentinel and context.Canceled, got %v", err)
	}
}

func TestSweepExpiredCodes(t *testing.T) {
	engine, clock, _ := newTestEngine(t, func(c *Config) {
		c.Store.ExpiredRetention = time.Hour
	}, func(b *Builder) {
		b.WithMetricsEnabled(true)
	})
	ctx := context.Background()

	mustIssue(t, engine, "old@b.com", time.Minute)
	clock.Advance(2 * time.Hour)
	fresh := mustIssue(t, engine, "new@b.com", time.Minute)

	n, err := engine.SweepExpiredCodes(ctx)
	if err != nil {
		t.Fatalf("SweepExpiredCodes failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept code, got %d", n)
	}
	if got := engine.MetricsSnapshot().Counters[MetricCodesSwept]; got != 1 {
		t.Fatalf("expected swept counter 1, got %d", got)
	}

	res, err := engine.RedeemByLongCode(ctx, fresh.LongCode)
	if err != nil || res.Status != LongCodeRedeemed {
		t.Fatalf("expected live code to survive sweep, got %s / %v", res.Status, err)
	}
}

func TestRedisBackedEngineRoundTrip(t *testing.T) {
	_, rdb := newTestRedis(t)
	clock := newFakeClock()
	clock.now = time.Now().UTC()

	engine, err := New().WithConfig(testConfig()).WithRedis(rdb).WithClock(clock.Now).Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()
	ctx := context.Background()

	code := mustIssue(t, engine, "a@b.com", 5*time.Minute)

	res, err := engine.RedeemByShortCode(ctx, "a@b.com", wrongShortCode(code.ShortCode))
	if err != nil || res.Status != ShortCodeIncorrect {
		t.Fatalf("expected incorrect, got %s / %v", res.Status, err)
	}

	long, err := engine.RedeemByLongCode(ctx, code.LongCode)
	if err != nil || long.Status != LongCodeRedeemed {
		t.Fatalf("expected redeemed, got %s / %v", long.Status, err)
	}

	n, err := engine.SweepExpiredCodes(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected no-op sweep on redis, got %d / %v", n, err)
	}
}
