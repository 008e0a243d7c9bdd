package password

// Hasher is the contract the engine relies on. Verify must compare in
// constant time and reports needsRehash only alongside a match.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (matches bool, needsRehash bool, err error)
}

// Algorithm is a Hasher that can tell its own encodings apart.
type Algorithm interface {
	Hasher
	Recognizes(encodedHash string) bool
}

// Chain hashes with a primary algorithm and verifies against the primary or
// any legacy algorithm. A match on a legacy hash always needs a rehash.
type Chain struct {
	primary Algorithm
	legacy  []Algorithm
}

// NewChain builds a migration hasher. A nil primary is a programming error
// and panics at construction.
func NewChain(primary Algorithm, legacy ...Algorithm) *Chain {
	if primary == nil {
		panic("password: nil primary algorithm")
	}
	return &Chain{primary: primary, legacy: legacy}
}

func (c *Chain) Hash(password string) (string, error) {
	return c.primary.Hash(password)
}

func (c *Chain) Verify(password, encodedHash string) (bool, bool, error) {
	if c.primary.Recognizes(encodedHash) {
		return c.primary.Verify(password, encodedHash)
	}
	for _, alg := range c.legacy {
		if !alg.Recognizes(encodedHash) {
			continue
		}
		ok, _, err := alg.Verify(password, encodedHash)
		if err != nil || !ok {
			return false, false, err
		}
		return true, true, nil
	}
	return false, false, ErrInvalidHash
}
