// Command otc-sweeper periodically deletes expired one-time codes from a
// store without native expiry (Postgres, or memory for local runs).
//
// Configuration comes from -config (YAML) plus OTC_* environment variables
// and an optional .env file; see internal/fileconfig.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/MrEthical07/goOTC/internal/fileconfig"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config")
		envFile    = flag.String("env-file", ".env", "optional .env file")
		once       = flag.Bool("once", false, "sweep once and exit")
	)
	flag.Parse()

	f, err := fileconfig.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("otc-sweeper: %v", err)
	}
	if f.Store.Backend == fileconfig.BackendRedis {
		log.Printf("otc-sweeper: redis expires codes natively; nothing to sweep")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := f.Open(ctx)
	if err != nil {
		log.Fatalf("otc-sweeper: %v", err)
	}
	defer backend.Close()

	builder, err := backend.Builder(f)
	if err != nil {
		log.Fatalf("otc-sweeper: %v", err)
	}
	engine, err := builder.Build()
	if err != nil {
		log.Fatalf("otc-sweeper: engine build: %v", err)
	}
	defer engine.Close()

	interval := f.Sweeper.Interval
	if *once {
		interval = 0
	}
	if err := sweepLoop(ctx, engine, interval); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("otc-sweeper: %v", err)
		os.Exit(1)
	}
}

type sweeper interface {
	SweepExpiredCodes(ctx context.Context) (int, error)
}

var _ sweeper = (*goOTC.Engine)(nil)

// sweepLoop sweeps immediately, then every interval until ctx ends. A zero
// interval sweeps once. Failed sweeps are logged and retried on the next
// tick.
func sweepLoop(ctx context.Context, s sweeper, interval time.Duration) error {
	sweep := func() error {
		n, err := s.SweepExpiredCodes(ctx)
		if err != nil {
			log.Printf("otc-sweeper: sweep failed: %v", err)
			return err
		}
		if n > 0 {
			log.Printf("otc-sweeper: removed %d expired codes", n)
		}
		return nil
	}

	if interval <= 0 {
		return sweep()
	}

	_ = sweep()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = sweep()
		}
	}
}
