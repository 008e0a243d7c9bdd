package internal

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"strconv"
	"strings"
)

const (
	// MinShortCodeDigits and MaxShortCodeDigits bound the short code width.
	MinShortCodeDigits = 6
	MaxShortCodeDigits = 10

	longCodeSize = 32
)

// Hash purposes keep a short code and a long code with the same text from
// ever producing the same digest.
const (
	PurposeShortCode byte = 's'
	PurposeLongCode  byte = 'l'
)

var pow10 = [...]uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000,
	100_000_000, 1_000_000_000, 10_000_000_000,
}

// NewShortCode draws a uniformly random 64-bit value and reduces it modulo
// 10^digits. The reduction is slightly biased toward low values (at most
// 10^digits/2^64, below 1e-9 for ten digits); the short code is protected by
// the attempt cap, not by its distribution, so the bias is accepted.
func NewShortCode(r io.Reader, digits int) (string, error) {
	if digits < MinShortCodeDigits || digits > MaxShortCodeDigits {
		return "", errors.New("invalid short code digits")
	}
	if r == nil {
		r = rand.Reader
	}

	var raw [8]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", err
	}

	n := binary.BigEndian.Uint64(raw[:]) % pow10[digits]
	s := strconv.FormatUint(n, 10)
	if len(s) < digits {
		s = strings.Repeat("0", digits-len(s)) + s
	}
	return s, nil
}

// NewLongCode returns 256 bits of fresh randomness as unpadded base64url.
// It never shares a draw with the short code.
func NewLongCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}

	var raw [longCodeSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// NormalizeShortCode strips the separators people type when copying a code
// ("482 913", "482-913").
func NormalizeShortCode(code string) string {
	if !strings.ContainsAny(code, " -\t") {
		return code
	}
	var b strings.Builder
	b.Grow(len(code))
	for i := 0; i < len(code); i++ {
		switch code[i] {
		case ' ', '-', '\t':
			continue
		}
		b.WriteByte(code[i])
	}
	return b.String()
}

// CodeHasher produces the at-rest digest of a code. With a pepper it is
// HMAC-SHA-256, which keeps a leaked table from being brute-forced offline
// for the small short-code space; without one it is plain SHA-256.
type CodeHasher struct {
	pepper []byte
}

// NewCodeHasher returns a hasher keyed by pepper; an empty pepper means plain SHA-256.
func NewCodeHasher(pepper []byte) CodeHasher {
	if len(pepper) == 0 {
		return CodeHasher{}
	}
	p := make([]byte, len(pepper))
	copy(p, pepper)
	return CodeHasher{pepper: p}
}

func (h CodeHasher) Hash(purpose byte, code string) [32]byte {
	var out [32]byte
	if len(h.pepper) == 0 {
		d := sha256.New()
		d.Write([]byte{purpose})
		d.Write([]byte(code))
		copy(out[:], d.Sum(nil))
		return out
	}

	mac := hmac.New(sha256.New, h.pepper)
	mac.Write([]byte{purpose})
	mac.Write([]byte(code))
	copy(out[:], mac.Sum(nil))
	return out
}

// EqualHash compares two digests in constant time.
func EqualHash(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
