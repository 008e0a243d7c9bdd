package internaldefs

import (
	goOTC "github.com/MrEthical07/goOTC"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   goOTC.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   goOTC.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed from Engine.AuditDropped.
const (
	AuditDroppedName = "gootc_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: goOTC.MetricCodeIssued, Name: "gootc_code_issued_total", Help: "One-time codes issued."},
	{ID: goOTC.MetricCodeSendThrottled, Name: "gootc_code_send_throttled_total", Help: "Code sends refused by the send throttle."},
	{ID: goOTC.MetricCodeInvalidated, Name: "gootc_code_invalidated_total", Help: "Codes invalidated explicitly."},
	{ID: goOTC.MetricCodesSwept, Name: "gootc_codes_swept_total", Help: "Expired codes removed by sweeping."},
	{ID: goOTC.MetricLongCodeRedeemed, Name: "gootc_long_code_redeemed_total", Help: "Codes redeemed through the link code."},
	{ID: goOTC.MetricShortCodeVerified, Name: "gootc_short_code_verified_total", Help: "Codes redeemed through the short code."},
	{ID: goOTC.MetricShortCodeIncorrect, Name: "gootc_short_code_incorrect_total", Help: "Incorrect short-code attempts."},
	{ID: goOTC.MetricShortCodeLocked, Name: "gootc_short_code_locked_total", Help: "Short-code attempts refused after the attempt cap."},
	{ID: goOTC.MetricCodeExpired, Name: "gootc_code_expired_total", Help: "Redemptions of expired codes."},
	{ID: goOTC.MetricCodeNotFound, Name: "gootc_code_not_found_total", Help: "Redemptions with no matching code."},
	{ID: goOTC.MetricPasswordSet, Name: "gootc_password_set_total", Help: "Passwords set or replaced."},
	{ID: goOTC.MetricPasswordPolicyRejected, Name: "gootc_password_policy_rejected_total", Help: "Passwords rejected by the strength policy."},
	{ID: goOTC.MetricPasswordRemoved, Name: "gootc_password_removed_total", Help: "Passwords removed."},
	{ID: goOTC.MetricPasswordMatched, Name: "gootc_password_matched_total", Help: "Successful password verifications."},
	{ID: goOTC.MetricPasswordMismatched, Name: "gootc_password_mismatched_total", Help: "Failed password verifications."},
	{ID: goOTC.MetricPasswordLockedRejected, Name: "gootc_password_locked_rejected_total", Help: "Password attempts refused while locked."},
	{ID: goOTC.MetricPasswordLockoutTriggered, Name: "gootc_password_lockout_triggered_total", Help: "Temporary password locks applied."},
	{ID: goOTC.MetricPasswordRehashed, Name: "gootc_password_rehashed_total", Help: "Password hashes upgraded on verify."},
	{ID: goOTC.MetricStoreConflict, Name: "gootc_store_conflict_total", Help: "Optimistic version conflicts retried."},
	{ID: goOTC.MetricServiceFailure, Name: "gootc_service_failure_total", Help: "Operations failed by a store or limiter error."},
}

var HistogramDefs = []HistogramDef{
	{ID: goOTC.MetricRedeemLatency, Name: "gootc_redeem_latency_seconds", Help: "Code redemption latency."},
	{ID: goOTC.MetricVerifyLatency, Name: "gootc_verify_latency_seconds", Help: "Password verification latency."},
}

// HistogramBounds are the upper bounds of the engine's eight buckets, in
// seconds.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix renders HistogramBounds as instrument-name suffixes.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
