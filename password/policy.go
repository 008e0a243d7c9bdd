package password

import (
	"errors"
	"math"
	"unicode"
	"unicode/utf8"
)

var (
	ErrPolicyTooShort = errors.New("password shorter than policy minimum")
	ErrPolicyTooLong  = errors.New("password longer than policy maximum")
	ErrPolicyTooWeak  = errors.New("password entropy below policy minimum")
)

// StrengthEstimator returns an estimate of a password's entropy in bits.
// Implementations backed by dictionary-aware estimators can be plugged in
// through [Policy.Estimator].
type StrengthEstimator interface {
	EstimateBits(password string) float64
}

// StrengthEstimatorFunc adapts a function to [StrengthEstimator].
type StrengthEstimatorFunc func(string) float64

func (f StrengthEstimatorFunc) EstimateBits(password string) float64 { return f(password) }

// Policy is checked before a password is hashed. Lengths count runes.
type Policy struct {
	MinLength      int
	MaxLength      int
	MinEntropyBits float64
	Estimator      StrengthEstimator
}

// Check returns nil when password satisfies every configured bound.
func (p Policy) Check(password string) error {
	n := utf8.RuneCountInString(password)
	if n < p.MinLength {
		return ErrPolicyTooShort
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return ErrPolicyTooLong
	}
	if p.MinEntropyBits > 0 {
		est := p.Estimator
		if est == nil {
			est = CharsetEstimator{}
		}
		if est.EstimateBits(password) < p.MinEntropyBits {
			return ErrPolicyTooWeak
		}
	}
	return nil
}

// CharsetEstimator is a coarse estimator: rune count times log2 of the
// character pool, where repeated runes only count once per pool position.
// It overestimates dictionary words; use a dictionary-aware estimator where
// that matters.
type CharsetEstimator struct{}

func (CharsetEstimator) EstimateBits(password string) float64 {
	if password == "" {
		return 0
	}

	var lower, upper, digit, symbol, other bool
	seen := make(map[rune]struct{}, len(password))
	for _, r := range password {
		seen[r] = struct{}{}
		switch {
		case r < unicode.MaxASCII && unicode.IsLower(r):
			lower = true
		case r < unicode.MaxASCII && unicode.IsUpper(r):
			upper = true
		case r < unicode.MaxASCII && unicode.IsDigit(r):
			digit = true
		case r < unicode.MaxASCII:
			symbol = true
		default:
			other = true
		}
	}

	pool := 0
	if lower {
		pool += 26
	}
	if upper {
		pool += 26
	}
	if digit {
		pool += 10
	}
	if symbol {
		pool += 33
	}
	if other {
		pool += 100
	}

	// Runs of one character ("aaaaaaaa") are scored by their distinct runes
	// plus a small bonus for length.
	length := float64(utf8.RuneCountInString(password))
	distinct := float64(len(seen))
	effective := distinct + (length-distinct)*0.25

	return effective * math.Log2(float64(pool))
}
