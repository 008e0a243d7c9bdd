package goOTC

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/MrEthical07/goOTC/credstore"
	"github.com/MrEthical07/goOTC/internal"
	"github.com/MrEthical07/goOTC/internal/rate"
	"github.com/MrEthical07/goOTC/password"
)

const maxKeyLength = 512

// Engine runs the one-time-code and password lockout flows. Build one with
// [New]; all methods are safe for concurrent use.
type Engine struct {
	config      Config
	store       credstore.Store
	codeHasher  internal.CodeHasher
	passwords   password.Hasher
	policy      password.Policy
	dummyHash   string
	sendLimiter *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	now         func() time.Time
	random      io.Reader
}

// Close flushes and stops the audit dispatcher. It does not close the store.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the engine's current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.passwords != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// serviceFailure logs the raw cause and returns an error that callers can
// match with errors.Is(err, ErrServiceUnavailable). Context errors stay
// matchable; store details do not leak.
func (e *Engine) serviceFailure(op string, cause error) error {
	log.Printf("goOTC: %s: %v", op, cause)
	e.metricInc(MetricServiceFailure)

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %w", ErrServiceUnavailable, op, cause)
	}
	return fmt.Errorf("%w: %s", ErrServiceUnavailable, op)
}

func normalizeKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > maxKeyLength {
		return "", false
	}
	return key, true
}
