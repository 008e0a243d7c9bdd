// Package storetest is the conformance suite for credstore implementations.
// Each implementation calls [Run] from its own tests with a factory that
// returns an empty store.
package storetest

import (
	"context"
	"crypto/sha256"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/google/uuid"
)

// Factory returns an empty store. Cleanup should be registered on t.
type Factory func(t *testing.T) credstore.Store

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("CodeNotFound", func(t *testing.T) { testCodeNotFound(t, newStore(t)) })
	t.Run("CodeRoundTrip", func(t *testing.T) { testCodeRoundTrip(t, newStore(t)) })
	t.Run("CodePutSupersedes", func(t *testing.T) { testCodePutSupersedes(t, newStore(t)) })
	t.Run("CodeUpdateVersionCheck", func(t *testing.T) { testCodeUpdateVersionCheck(t, newStore(t)) })
	t.Run("CodeDeleteVersionCheck", func(t *testing.T) { testCodeDeleteVersionCheck(t, newStore(t)) })
	t.Run("CodeExpiredRetained", func(t *testing.T) { testCodeExpiredRetained(t, newStore(t)) })
	t.Run("CodeConcurrentConsumeSingleWinner", func(t *testing.T) { testCodeConcurrentConsume(t, newStore(t)) })
	t.Run("CodeSweep", func(t *testing.T) { testCodeSweep(t, newStore(t)) })
	t.Run("PasswordNotFound", func(t *testing.T) { testPasswordNotFound(t, newStore(t)) })
	t.Run("PasswordRoundTrip", func(t *testing.T) { testPasswordRoundTrip(t, newStore(t)) })
	t.Run("PasswordUpdateVersionCheck", func(t *testing.T) { testPasswordUpdateVersionCheck(t, newStore(t)) })
	t.Run("PasswordDelete", func(t *testing.T) { testPasswordDelete(t, newStore(t)) })
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func digest(s string) [32]byte {
	return sha256.Sum256([]byte(s))
}

func sampleCode(recipient, long string, expiresIn time.Duration) credstore.OneTimeCode {
	issued := now()
	return credstore.OneTimeCode{
		Recipient:     recipient,
		ShortCodeHash: digest("short:" + recipient),
		LongCodeHash:  digest(long),
		IssuedAt:      issued,
		ExpiresAt:     issued.Add(expiresIn),
		RedirectURL:   "https://app.example.com/after",
	}
}

func testCodeNotFound(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	if _, err := s.GetCode(ctx, "nobody@example.com"); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("GetCode: expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetCodeByLongHash(ctx, digest("missing")); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("GetCodeByLongHash: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteCode(ctx, "nobody@example.com", uuid.Nil); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("DeleteCode: expected ErrNotFound, got %v", err)
	}
	code := sampleCode("nobody@example.com", "l", time.Minute)
	if _, err := s.UpdateCode(ctx, code, uuid.New()); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("UpdateCode: expected ErrNotFound, got %v", err)
	}
}

func testCodeRoundTrip(t *testing.T, s credstore.Store) {
	ctx := context.Background()
	in := sampleCode("a@b.com", "long-1", 10*time.Minute)

	stored, err := s.PutCode(ctx, in)
	if err != nil {
		t.Fatalf("PutCode failed: %v", err)
	}
	if stored.Version == uuid.Nil {
		t.Fatal("expected PutCode to assign a version")
	}

	got, err := s.GetCode(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("GetCode failed: %v", err)
	}
	assertCodeEqual(t, stored, got)

	byLong, err := s.GetCodeByLongHash(ctx, digest("long-1"))
	if err != nil {
		t.Fatalf("GetCodeByLongHash failed: %v", err)
	}
	assertCodeEqual(t, stored, byLong)
}

func testCodePutSupersedes(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	first, err := s.PutCode(ctx, sampleCode("a@b.com", "long-1", time.Minute))
	if err != nil {
		t.Fatalf("PutCode(first) failed: %v", err)
	}
	second, err := s.PutCode(ctx, sampleCode("a@b.com", "long-2", time.Minute))
	if err != nil {
		t.Fatalf("PutCode(second) failed: %v", err)
	}
	if first.Version == second.Version {
		t.Fatal("expected a new version on every put")
	}

	if _, err := s.GetCodeByLongHash(ctx, digest("long-1")); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected superseded long code to be unindexed, got %v", err)
	}
	got, err := s.GetCodeByLongHash(ctx, digest("long-2"))
	if err != nil {
		t.Fatalf("GetCodeByLongHash(second) failed: %v", err)
	}
	if got.Version != second.Version {
		t.Fatal("expected the second record to be current")
	}
	if err := s.DeleteCode(ctx, "a@b.com", first.Version); !errors.Is(err, credstore.ErrConflict) {
		t.Fatalf("expected stale delete to conflict, got %v", err)
	}
}

func testCodeUpdateVersionCheck(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	stored, err := s.PutCode(ctx, sampleCode("a@b.com", "long-1", time.Minute))
	if err != nil {
		t.Fatalf("PutCode failed: %v", err)
	}

	next := stored
	next.FailedAttempts = 1
	updated, err := s.UpdateCode(ctx, next, stored.Version)
	if err != nil {
		t.Fatalf("UpdateCode failed: %v", err)
	}
	if updated.Version == stored.Version {
		t.Fatal("expected update to rotate version")
	}

	next.FailedAttempts = 2
	if _, err := s.UpdateCode(ctx, next, stored.Version); !errors.Is(err, credstore.ErrConflict) {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}

	got, err := s.GetCode(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("GetCode failed: %v", err)
	}
	if got.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", got.FailedAttempts)
	}
	if _, err := s.GetCodeByLongHash(ctx, digest("long-1")); err != nil {
		t.Fatalf("expected long index to survive update, got %v", err)
	}
}

func testCodeDeleteVersionCheck(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	stored, err := s.PutCode(ctx, sampleCode("a@b.com", "long-1", time.Minute))
	if err != nil {
		t.Fatalf("PutCode failed: %v", err)
	}

	if err := s.DeleteCode(ctx, "a@b.com", uuid.New()); !errors.Is(err, credstore.ErrConflict) {
		t.Fatalf("expected conflict for wrong version, got %v", err)
	}
	if _, err := s.GetCode(ctx, "a@b.com"); err != nil {
		t.Fatalf("record must survive a conflicting delete, got %v", err)
	}

	if err := s.DeleteCode(ctx, "a@b.com", stored.Version); err != nil {
		t.Fatalf("DeleteCode failed: %v", err)
	}
	if err := s.DeleteCode(ctx, "a@b.com", stored.Version); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected second delete to be ErrNotFound, got %v", err)
	}
	if _, err := s.GetCodeByLongHash(ctx, digest("long-1")); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected long index removed, got %v", err)
	}
}

func testCodeExpiredRetained(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	if _, err := s.PutCode(ctx, sampleCode("a@b.com", "long-1", -time.Minute)); err != nil {
		t.Fatalf("PutCode failed: %v", err)
	}
	got, err := s.GetCode(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("expired record must stay readable until collected, got %v", err)
	}
	if !got.Expired(now()) {
		t.Fatal("expected record to report expired")
	}
}

func testCodeConcurrentConsume(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	if _, err := s.PutCode(ctx, sampleCode("race@b.com", "long-race", time.Minute)); err != nil {
		t.Fatalf("PutCode failed: %v", err)
	}

	const workers = 16
	var (
		wins  atomic.Int32
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			code, err := s.GetCode(ctx, "race@b.com")
			if err != nil {
				return
			}
			if err := s.DeleteCode(ctx, "race@b.com", code.Version); err == nil {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one consumer to win, got %d", wins.Load())
	}
}

func testCodeSweep(t *testing.T, s credstore.Store) {
	sweeper, ok := s.(credstore.CodeSweeper)
	if !ok {
		t.Skip("store relies on native expiry")
	}
	ctx := context.Background()

	if _, err := s.PutCode(ctx, sampleCode("old@b.com", "long-old", -time.Hour)); err != nil {
		t.Fatalf("PutCode(old) failed: %v", err)
	}
	if _, err := s.PutCode(ctx, sampleCode("new@b.com", "long-new", time.Hour)); err != nil {
		t.Fatalf("PutCode(new) failed: %v", err)
	}

	n, err := sweeper.SweepExpiredCodes(ctx, now())
	if err != nil {
		t.Fatalf("SweepExpiredCodes failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 swept record, got %d", n)
	}
	if _, err := s.GetCodeByLongHash(ctx, digest("long-old")); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected swept record unindexed, got %v", err)
	}
	if _, err := s.GetCode(ctx, "new@b.com"); err != nil {
		t.Fatalf("live record must survive sweep, got %v", err)
	}
}

func samplePassword(id string) credstore.PasswordCredential {
	return credstore.PasswordCredential{
		IdentityID:    id,
		Hash:          "$argon2id$v=19$m=65536,t=3,p=2$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		LastChangedAt: now(),
	}
}

func testPasswordNotFound(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	if _, err := s.GetPassword(ctx, "u-missing"); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("GetPassword: expected ErrNotFound, got %v", err)
	}
	if err := s.DeletePassword(ctx, "u-missing", uuid.Nil); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("DeletePassword: expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdatePassword(ctx, samplePassword("u-missing"), uuid.New()); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("UpdatePassword: expected ErrNotFound, got %v", err)
	}
}

func testPasswordRoundTrip(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	in := samplePassword("u1")
	in.FailedAttempts = 2
	in.LockedUntil = now().Add(5 * time.Minute)

	stored, err := s.PutPassword(ctx, in)
	if err != nil {
		t.Fatalf("PutPassword failed: %v", err)
	}
	got, err := s.GetPassword(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPassword failed: %v", err)
	}
	if got.Hash != in.Hash || got.FailedAttempts != 2 || got.Version != stored.Version {
		t.Fatalf("unexpected credential: %+v", got)
	}
	if !got.LockedUntil.Equal(in.LockedUntil) || !got.LastChangedAt.Equal(in.LastChangedAt) {
		t.Fatalf("timestamps not preserved: %+v", got)
	}

	cleared := got
	cleared.LockedUntil = time.Time{}
	if _, err := s.PutPassword(ctx, cleared); err != nil {
		t.Fatalf("PutPassword(overwrite) failed: %v", err)
	}
	got, err = s.GetPassword(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPassword failed: %v", err)
	}
	if !got.LockedUntil.IsZero() {
		t.Fatalf("expected zero lock after overwrite, got %v", got.LockedUntil)
	}
}

func testPasswordUpdateVersionCheck(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	stored, err := s.PutPassword(ctx, samplePassword("u1"))
	if err != nil {
		t.Fatalf("PutPassword failed: %v", err)
	}

	next := stored
	next.FailedAttempts = 1
	if _, err := s.UpdatePassword(ctx, next, stored.Version); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}
	next.FailedAttempts = 5
	if _, err := s.UpdatePassword(ctx, next, stored.Version); !errors.Is(err, credstore.ErrConflict) {
		t.Fatalf("expected stale update to conflict, got %v", err)
	}

	got, err := s.GetPassword(ctx, "u1")
	if err != nil {
		t.Fatalf("GetPassword failed: %v", err)
	}
	if got.FailedAttempts != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", got.FailedAttempts)
	}
}

func testPasswordDelete(t *testing.T, s credstore.Store) {
	ctx := context.Background()

	if _, err := s.PutPassword(ctx, samplePassword("u1")); err != nil {
		t.Fatalf("PutPassword failed: %v", err)
	}
	if err := s.DeletePassword(ctx, "u1", uuid.Nil); err != nil {
		t.Fatalf("DeletePassword failed: %v", err)
	}
	if _, err := s.GetPassword(ctx, "u1"); !errors.Is(err, credstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func assertCodeEqual(t *testing.T, want, got credstore.OneTimeCode) {
	t.Helper()

	if got.Recipient != want.Recipient ||
		got.ShortCodeHash != want.ShortCodeHash ||
		got.LongCodeHash != want.LongCodeHash ||
		got.FailedAttempts != want.FailedAttempts ||
		got.RedirectURL != want.RedirectURL ||
		got.Version != want.Version {
		t.Fatalf("record mismatch:\nwant %+v\ngot  %+v", want, got)
	}
	if !got.ExpiresAt.Equal(want.ExpiresAt) || !got.IssuedAt.Equal(want.IssuedAt) {
		t.Fatalf("timestamp mismatch:\nwant %v / %v\ngot  %v / %v", want.IssuedAt, want.ExpiresAt, got.IssuedAt, got.ExpiresAt)
	}
}
