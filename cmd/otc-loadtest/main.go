// Command otc-loadtest races redemptions of the same codes against a Redis
// backed engine and fails if any code is consumed twice.
//
// With no -redis-addr (and no REDIS_ADDR) it runs against miniredis.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	goOTC "github.com/MrEthical07/goOTC"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type options struct {
	codes       int
	contenders  int
	concurrency int
	redisAddr   string
	prefix      string
}

func main() {
	var opts options
	flag.IntVar(&opts.codes, "codes", 2000, "number of codes to issue")
	flag.IntVar(&opts.contenders, "contenders", 8, "concurrent redemptions per code")
	flag.IntVar(&opts.concurrency, "concurrency", 256, "number of concurrent workers")
	flag.StringVar(&opts.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	flag.StringVar(&opts.prefix, "prefix", "otc-load", "redis key prefix")
	flag.Parse()

	if opts.codes <= 0 || opts.contenders <= 1 || opts.concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "codes and concurrency must be > 0, contenders > 1")
		os.Exit(2)
	}
	if opts.redisAddr == "" {
		opts.redisAddr = os.Getenv("REDIS_ADDR")
	}

	rep, err := run(context.Background(), opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loadtest failed: %v\n", err)
		os.Exit(1)
	}
	if rep.doubleSpends > 0 || rep.unredeemed > 0 {
		fmt.Fprintf(os.Stderr, "invariant violated: double_spends=%d unredeemed=%d\n", rep.doubleSpends, rep.unredeemed)
		os.Exit(1)
	}
}

type report struct {
	issue        phaseStats
	redeem       phaseStats
	doubleSpends int
	unredeemed   int
}

func run(ctx context.Context, opts options, out io.Writer) (report, error) {
	client, cleanup, err := connect(opts.redisAddr, out)
	if err != nil {
		return report{}, err
	}
	defer cleanup()

	cfg := goOTC.DefaultConfig()
	cfg.Store.RedisPrefix = opts.prefix
	// Contenders all hit the same record; give the retry loop room.
	cfg.Store.MaxConflictRetries = opts.contenders * 4
	// Hashing is irrelevant here; keep Build fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	engine, err := goOTC.New().WithConfig(cfg).WithRedis(client).Build()
	if err != nil {
		return report{}, fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	fmt.Fprintf(out, "issuing %d codes...\n", opts.codes)
	codes := make([]goOTC.IssuedCode, opts.codes)
	issue := runPhase(opts.codes, opts.concurrency, func(i int) error {
		res, err := engine.IssueCode(ctx, fmt.Sprintf("load-%d@example.com", i), 10*time.Minute, "")
		if err != nil {
			return err
		}
		codes[i] = res.Code
		return nil
	})

	wins := make([]int32, opts.codes)
	redeem := runPhase(opts.codes*opts.contenders, opts.concurrency, func(i int) error {
		idx := i / opts.contenders
		code := codes[idx]
		if code.Recipient == "" {
			return nil
		}
		if i%2 == 0 {
			res, err := engine.RedeemByShortCode(ctx, code.Recipient, code.ShortCode)
			if err != nil {
				return err
			}
			if res.Status == goOTC.ShortCodeVerified {
				atomic.AddInt32(&wins[idx], 1)
			}
			return nil
		}
		res, err := engine.RedeemByLongCode(ctx, code.LongCode)
		if err != nil {
			return err
		}
		if res.Status == goOTC.LongCodeRedeemed {
			atomic.AddInt32(&wins[idx], 1)
		}
		return nil
	})

	rep := report{issue: issue, redeem: redeem}
	for i, n := range wins {
		switch {
		case codes[i].Recipient == "":
		case n > 1:
			rep.doubleSpends++
		case n == 0:
			rep.unredeemed++
		}
	}

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "issue", issue)
	printStats(out, "redeem", redeem)
	fmt.Fprintf(out, "double_spends=%d unredeemed=%d conflicts=%d\n",
		rep.doubleSpends, rep.unredeemed, engine.MetricsSnapshot().Counters[goOTC.MetricStoreConflict])
	return rep, nil
}

func connect(addr string, out io.Writer) (redis.UniversalClient, func(), error) {
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		fmt.Fprintf(out, "using miniredis at %s\n", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	fmt.Fprintf(out, "using redis at %s\n", addr)
	return client, func() { _ = client.Close() }, nil
}

// runPhase runs op for 0..ops-1 across concurrency workers.
func runPhase(ops, concurrency int, op func(i int) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(i)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}
