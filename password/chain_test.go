package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHashAndVerify(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}

	hash, err := b.Hash("legacy-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if !b.Recognizes(hash) {
		t.Fatalf("expected bcrypt hash to be recognized: %s", hash)
	}

	ok, rehash, err := b.Verify("legacy-password", hash)
	if err != nil || !ok || rehash {
		t.Fatalf("unexpected verify result ok=%v rehash=%v err=%v", ok, rehash, err)
	}

	ok, _, err = b.Verify("other-password", hash)
	if err != nil || ok {
		t.Fatalf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestBcryptRejectsOverlongInput(t *testing.T) {
	b, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	long := make([]byte, 73)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := b.Hash(string(long)); !errors.Is(err, ErrPasswordTooLong) {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}
}

func TestChainMigratesLegacyHashes(t *testing.T) {
	argon, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	legacy, err := NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewBcrypt error: %v", err)
	}
	chain := NewChain(argon, legacy)

	legacyHash, err := legacy.Hash("imported-password")
	if err != nil {
		t.Fatalf("legacy Hash error: %v", err)
	}

	ok, rehash, err := chain.Verify("imported-password", legacyHash)
	if err != nil || !ok || !rehash {
		t.Fatalf("expected legacy match needing rehash, got ok=%v rehash=%v err=%v", ok, rehash, err)
	}

	ok, rehash, err = chain.Verify("wrong-password", legacyHash)
	if err != nil || ok || rehash {
		t.Fatalf("expected legacy mismatch, got ok=%v rehash=%v err=%v", ok, rehash, err)
	}

	fresh, err := chain.Hash("imported-password")
	if err != nil {
		t.Fatalf("chain Hash error: %v", err)
	}
	if !argon.Recognizes(fresh) {
		t.Fatalf("expected chain to hash with argon2id, got %s", fresh)
	}
	ok, rehash, err = chain.Verify("imported-password", fresh)
	if err != nil || !ok || rehash {
		t.Fatalf("expected primary match, got ok=%v rehash=%v err=%v", ok, rehash, err)
	}
}

func TestChainRejectsUnknownEncoding(t *testing.T) {
	argon, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}
	chain := NewChain(argon)

	if _, _, err := chain.Verify("x", "$md5$abc"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}
