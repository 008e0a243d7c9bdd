package fileconfig

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/credstore/pgstore"
	"github.com/MrEthical07/goOTC/credstore/redisstore"
	"github.com/redis/go-redis/v9"
)

// Backend holds the connections a File describes.
type Backend struct {
	Store credstore.Store
	// Redis is set for the redis backend and whenever the send limiter is
	// enabled.
	Redis redis.UniversalClient

	closers []io.Closer
}

// Open connects the configured store. The caller owns the result and must
// Close it.
func (f File) Open(ctx context.Context) (*Backend, error) {
	b := &Backend{}

	needRedis := f.Store.Backend == BackendRedis || f.SendLimit.Enabled
	if needRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     f.Store.RedisAddr,
			Password: f.Store.RedisPassword,
			DB:       f.Store.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("fileconfig: redis ping %s: %w", f.Store.RedisAddr, err)
		}
		b.Redis = client
		b.closers = append(b.closers, client)
	}

	switch f.Store.Backend {
	case BackendMemory, "":
		b.Store = credstore.NewMemory()
	case BackendRedis:
		b.Store = redisstore.New(b.Redis, redisstore.Options{
			Prefix:    f.Store.RedisPrefix,
			Retention: f.Store.ExpiredRetention,
		})
	case BackendPostgres:
		if f.Store.PostgresDSN == "" {
			_ = b.Close()
			return nil, errors.New("fileconfig: postgres backend needs store.postgres_dsn")
		}
		pg, err := pgstore.Open(ctx, f.Store.PostgresDSN)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		b.closers = append(b.closers, pg)
		if f.Store.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				_ = b.Close()
				return nil, err
			}
		}
		b.Store = pg
	default:
		_ = b.Close()
		return nil, fmt.Errorf("fileconfig: unknown store backend %q", f.Store.Backend)
	}

	return b, nil
}

// Builder returns an engine builder wired to the backend. An audit path in
// the file adds a JSON-lines sink whose file the Backend closes.
func (b *Backend) Builder(f File) (*goOTC.Builder, error) {
	builder := goOTC.New().WithConfig(f.EngineConfig()).WithStore(b.Store)
	if b.Redis != nil {
		builder.WithRedis(b.Redis)
	}
	if f.Audit.Enabled && f.Audit.Path != "" {
		out, err := os.OpenFile(f.Audit.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("fileconfig: open audit log: %w", err)
		}
		b.closers = append(b.closers, out)
		builder.WithAuditSink(goOTC.NewJSONWriterSink(out))
	}
	return builder, nil
}

// Close releases every connection in reverse order of opening.
func (b *Backend) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
