package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "os"

// Config holds send limiter tuning parameters.
type Config struct {
	MaxSends int
	Window   time.Duration
	Prefix   string
}

// Limiter counts code sends per recipient in fixed windows.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) key(recipient string) string {
	return l.config.Prefix + ":" + recipient
}

// Check reports whether another send fits in the current window. When the
// budget is spent it returns ErrRateLimited and the time until the window
// resets.
func (l *Limiter) Check(ctx context.Context, recipient string) (time.Duration, error) {
	key := l.key(recipient)

	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count < int64(l.config.MaxSends) {
		return 0, nil
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if ttl == -2 {
		// Window ended between GET and PTTL.
		return 0, nil
	}
	if ttl < 0 {
		// Counter without expiry; start the window now.
		if err := l.redis.ExpireNX(ctx, key, l.config.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = l.config.Window
	}
	return ttl, ErrRateLimited
}

// Record counts one send against the recipient's window.
func (l *Limiter) Record(ctx context.Context, recipient string) error {
	_, err := l.incrementWithTTL(ctx, l.key(recipient), l.config.Window)
	return err
}

// Reset clears the recipient's counter.
func (l *Limiter) Reset(ctx context.Context, recipient string) error {
	if err := l.redis.Del(ctx, l.key(recipient)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// Fixed window: NX keeps the expiry set by the first hit.
		pipe.ExpireNX(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return incr.Val(), nil
}
