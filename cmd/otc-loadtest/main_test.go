package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestRunAgainstMiniredisHasNoDoubleSpend(t *testing.T) {
	var out bytes.Buffer
	rep, err := run(context.Background(), options{
		codes:       40,
		contenders:  6,
		concurrency: 16,
		prefix:      "otc-test",
	}, &out)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if rep.doubleSpends != 0 || rep.unredeemed != 0 {
		t.Fatalf("expected every code redeemed once, got %+v\n%s", rep, out.String())
	}
	if rep.issue.failures != 0 || rep.redeem.failures != 0 {
		t.Fatalf("unexpected failures: %+v", rep)
	}
	if rep.redeem.ops != 240 {
		t.Fatalf("expected 240 redemptions, got %d", rep.redeem.ops)
	}
	if !strings.Contains(out.String(), "double_spends=0") {
		t.Fatalf("missing summary line:\n%s", out.String())
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50: expected 5, got %d", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100: expected 10, got %d", got)
	}
	if got := percentile(nil, 99); got != 0 {
		t.Fatalf("empty: expected 0, got %d", got)
	}
}
