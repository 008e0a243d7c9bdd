package goOTC

import "time"

// LintWarning is an advisory finding about a valid but questionable config.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns advisory warnings. It never fails; run Validate for hard
// errors.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code, msg string) {
		ws = append(ws, LintWarning{Code: code, Message: msg})
	}

	if len(c.OneTimeCode.Pepper) == 0 {
		add("code_pepper_missing", "code digests are unkeyed SHA-256; a leaked store lets short codes be brute-forced offline")
	}
	if c.OneTimeCode.MaxShortCodeAttempts > 10 {
		add("short_code_attempts_high", "more than 10 short-code guesses per code weakens the attempt cap")
	}
	if c.OneTimeCode.DefaultValidity > time.Hour {
		add("validity_long", "codes valid for more than an hour widen the interception window")
	}
	if c.Lockout.Duration < time.Minute {
		add("lockout_short", "a lockout under one minute barely slows online guessing")
	}
	if c.Lockout.Threshold > 20 {
		add("lockout_threshold_high", "more than 20 failures before lockout allows sustained guessing")
	}
	if c.Password.MinEntropyBits == 0 {
		add("password_entropy_unchecked", "no minimum estimated entropy is enforced")
	}
	if !c.SendLimit.Enabled && c.OneTimeCode.ResendCooldown > 0 {
		add("resend_unbounded", "ResendCooldown without SendLimit lets a recipient be sent codes indefinitely")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", "security events are not recorded")
	}

	return ws
}
