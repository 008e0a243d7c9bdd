package redisstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultPrefix namespaces every key written by the store.
	DefaultPrefix = "otc"
	// DefaultRetention keeps an expired code readable long enough for a late
	// redemption to be reported as expired instead of not found.
	DefaultRetention = time.Hour

	maxRetries = 4
	minTTL     = time.Second
)

// Options configures a Store. Now is the clock record TTLs are measured
// against; it must match the clock that stamps ExpiresAt.
type Options struct {
	Prefix    string
	Retention time.Duration
	Now       func() time.Time
}

// Store is a Redis-backed credstore.Store.
type Store struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ credstore.Store = (*Store)(nil)

// New returns a Store using client. Zero option fields take defaults.
func New(client redis.UniversalClient, opts Options) *Store {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		redis:     client,
		prefix:    opts.Prefix,
		retention: opts.Retention,
		now:       opts.Now,
	}
}

func (s *Store) codeKey(recipient string) string {
	return s.prefix + ":c:" + recipient
}

func (s *Store) longKey(hash [32]byte) string {
	return s.prefix + ":lc:" + hex.EncodeToString(hash[:])
}

func (s *Store) passwordKey(identityID string) string {
	return s.prefix + ":p:" + identityID
}

func (s *Store) codeTTL(c credstore.OneTimeCode) time.Duration {
	ttl := c.ExpiresAt.Sub(s.now()) + s.retention
	if ttl < minTTL {
		return minTTL
	}
	return ttl
}

// GetCode returns the current code for recipient.
func (s *Store) GetCode(ctx context.Context, recipient string) (credstore.OneTimeCode, error) {
	data, err := s.redis.Get(ctx, s.codeKey(recipient)).Bytes()
	if err != nil {
		return credstore.OneTimeCode{}, mapErr(err)
	}
	return decodeCode(data)
}

// GetCodeByLongHash resolves the long-code index. A dangling index entry
// left by a superseded record reads as not found.
func (s *Store) GetCodeByLongHash(ctx context.Context, hash [32]byte) (credstore.OneTimeCode, error) {
	recipient, err := s.redis.Get(ctx, s.longKey(hash)).Result()
	if err != nil {
		return credstore.OneTimeCode{}, mapErr(err)
	}
	code, err := s.GetCode(ctx, recipient)
	if err != nil {
		return credstore.OneTimeCode{}, err
	}
	if code.LongCodeHash != hash {
		return credstore.OneTimeCode{}, credstore.ErrNotFound
	}
	return code, nil
}

// PutCode replaces any record for the recipient and moves the long-code
// index to the new hash.
func (s *Store) PutCode(ctx context.Context, code credstore.OneTimeCode) (credstore.OneTimeCode, error) {
	key := s.codeKey(code.Recipient)
	code.Version = uuid.New()

	encoded, err := encodeCode(code)
	if err != nil {
		return credstore.OneTimeCode{}, err
	}
	ttl := s.codeTTL(code)

	err = s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := readCode(ctx, tx, key)
		if err != nil && !errors.Is(err, credstore.ErrNotFound) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev != nil && prev.LongCodeHash != code.LongCodeHash {
				pipe.Del(ctx, s.longKey(prev.LongCodeHash))
			}
			pipe.Set(ctx, key, encoded, ttl)
			pipe.Set(ctx, s.longKey(code.LongCodeHash), code.Recipient, ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return credstore.OneTimeCode{}, err
	}

	return code, nil
}

// UpdateCode rewrites the record if its version still matches expected.
func (s *Store) UpdateCode(ctx context.Context, code credstore.OneTimeCode, expected uuid.UUID) (credstore.OneTimeCode, error) {
	key := s.codeKey(code.Recipient)
	code.Version = uuid.New()

	encoded, err := encodeCode(code)
	if err != nil {
		return credstore.OneTimeCode{}, err
	}
	ttl := s.codeTTL(code)

	err = s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := readCode(ctx, tx, key)
		if err != nil {
			return err
		}
		if expected != uuid.Nil && prev.Version != expected {
			return credstore.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if prev.LongCodeHash != code.LongCodeHash {
				pipe.Del(ctx, s.longKey(prev.LongCodeHash))
			}
			pipe.Set(ctx, key, encoded, ttl)
			pipe.Set(ctx, s.longKey(code.LongCodeHash), code.Recipient, ttl)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return credstore.OneTimeCode{}, err
	}

	return code, nil
}

// DeleteCode removes the record and its index entry if the version matches.
func (s *Store) DeleteCode(ctx context.Context, recipient string, expected uuid.UUID) error {
	key := s.codeKey(recipient)

	return s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := readCode(ctx, tx, key)
		if err != nil {
			return err
		}
		if expected != uuid.Nil && prev.Version != expected {
			return credstore.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.Del(ctx, s.longKey(prev.LongCodeHash))
			return nil
		})
		return err
	}, key)
}

// GetPassword returns the credential for identityID.
func (s *Store) GetPassword(ctx context.Context, identityID string) (credstore.PasswordCredential, error) {
	data, err := s.redis.Get(ctx, s.passwordKey(identityID)).Bytes()
	if err != nil {
		return credstore.PasswordCredential{}, mapErr(err)
	}
	return decodePassword(data)
}

// PutPassword stores cred unconditionally.
func (s *Store) PutPassword(ctx context.Context, cred credstore.PasswordCredential) (credstore.PasswordCredential, error) {
	cred.Version = uuid.New()
	encoded, err := encodePassword(cred)
	if err != nil {
		return credstore.PasswordCredential{}, err
	}
	if err := s.redis.Set(ctx, s.passwordKey(cred.IdentityID), encoded, 0).Err(); err != nil {
		return credstore.PasswordCredential{}, mapErr(err)
	}
	return cred, nil
}

// UpdatePassword rewrites the credential if its version matches expected.
func (s *Store) UpdatePassword(ctx context.Context, cred credstore.PasswordCredential, expected uuid.UUID) (credstore.PasswordCredential, error) {
	key := s.passwordKey(cred.IdentityID)
	cred.Version = uuid.New()

	encoded, err := encodePassword(cred)
	if err != nil {
		return credstore.PasswordCredential{}, err
	}

	err = s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := readPassword(ctx, tx, key)
		if err != nil {
			return err
		}
		if expected != uuid.Nil && prev.Version != expected {
			return credstore.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, 0)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return credstore.PasswordCredential{}, err
	}

	return cred, nil
}

// DeletePassword removes the credential if its version matches expected.
func (s *Store) DeletePassword(ctx context.Context, identityID string, expected uuid.UUID) error {
	key := s.passwordKey(identityID)

	return s.watch(ctx, func(tx *redis.Tx) error {
		prev, err := readPassword(ctx, tx, key)
		if err != nil {
			return err
		}
		if expected != uuid.Nil && prev.Version != expected {
			return credstore.ErrConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
}

// watch runs fn under WATCH on keys, retrying when another client touched
// them between the read and EXEC. Exhausted retries surface as a conflict.
func (s *Store) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for i := 0; i < maxRetries; i++ {
		err := s.redis.Watch(ctx, fn, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return mapErr(err)
		}
		return nil
	}
	return credstore.ErrConflict
}

func readCode(ctx context.Context, tx *redis.Tx, key string) (*credstore.OneTimeCode, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	code, err := decodeCode(data)
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func readPassword(ctx context.Context, tx *redis.Tx, key string) (*credstore.PasswordCredential, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		return nil, mapErr(err)
	}
	cred, err := decodePassword(data)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return credstore.ErrNotFound
	case errors.Is(err, credstore.ErrNotFound),
		errors.Is(err, credstore.ErrConflict),
		errors.Is(err, credstore.ErrUnavailable),
		errors.Is(err, errCorruptRecord),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", credstore.ErrUnavailable, err)
	}
}
