package password

import (
	"errors"
	"testing"
)

func TestPolicyLengthBounds(t *testing.T) {
	p := Policy{MinLength: 10, MaxLength: 20}

	if err := p.Check("short"); !errors.Is(err, ErrPolicyTooShort) {
		t.Fatalf("expected ErrPolicyTooShort, got %v", err)
	}
	if err := p.Check("this-password-is-far-too-long"); !errors.Is(err, ErrPolicyTooLong) {
		t.Fatalf("expected ErrPolicyTooLong, got %v", err)
	}
	if err := p.Check("just-right-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPolicyCountsRunesNotBytes(t *testing.T) {
	p := Policy{MinLength: 4}
	// Four runes, twelve bytes.
	if err := p.Check("日本語字"); err != nil {
		t.Fatalf("expected four runes to pass, got %v", err)
	}
}

func TestPolicyEntropy(t *testing.T) {
	p := Policy{MinLength: 1, MinEntropyBits: 50}

	if err := p.Check("aaaaaaaaaaaa"); !errors.Is(err, ErrPolicyTooWeak) {
		t.Fatalf("expected repeated characters to be too weak, got %v", err)
	}
	if err := p.Check("Tr0ub4dor&3-horse"); err != nil {
		t.Fatalf("expected mixed password to pass, got %v", err)
	}
}

func TestPolicyCustomEstimator(t *testing.T) {
	p := Policy{
		MinEntropyBits: 10,
		Estimator:      StrengthEstimatorFunc(func(string) float64 { return 0 }),
	}
	if err := p.Check("anything-at-all"); !errors.Is(err, ErrPolicyTooWeak) {
		t.Fatalf("expected custom estimator to reject, got %v", err)
	}
}

func TestCharsetEstimatorMonotonicInPool(t *testing.T) {
	var est CharsetEstimator
	lower := est.EstimateBits("abcdefgh")
	mixed := est.EstimateBits("abcdEFG1")
	if mixed <= lower {
		t.Fatalf("expected larger pool to score higher: lower=%v mixed=%v", lower, mixed)
	}
	if est.EstimateBits("") != 0 {
		t.Fatal("expected zero bits for empty password")
	}
}
