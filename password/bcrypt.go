package password

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt verifies (and, if used as primary, produces) bcrypt hashes. It is
// mainly carried so credentials imported from older systems keep working
// until they are rehashed with Argon2id through [Chain].
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher with the given cost (0 selects
// bcrypt.DefaultCost).
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

func (b *Bcrypt) Hash(password string) (string, error) {
	if len(password) == 0 {
		return "", ErrEmptyPassword
	}
	// bcrypt silently ignores input past 72 bytes on some implementations.
	if len(password) > 72 {
		return "", ErrPasswordTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (b *Bcrypt) Verify(password string, encodedHash string) (bool, bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, false, nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return false, false, ErrPasswordTooLong
	default:
		return false, false, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}

	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return true, true, nil
	}
	return true, cost < b.cost, nil
}

func (b *Bcrypt) Recognizes(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
