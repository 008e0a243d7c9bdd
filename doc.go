// Package goOTC implements the stateful core of passwordless sign-in: the
// one-time-code lifecycle (issue, redeem by short code or link code, expire,
// throttle) and a password verification state machine with time-boxed
// lockout.
//
// The [Engine] holds no per-identity state between calls. Every operation is
// a fresh read-modify-write against a [credstore.Store], guarded by the
// store's version check, so several processes can share one store safely.
// Expiry and lockout are evaluated lazily when a record is next touched;
// there are no timers.
//
// # Architecture boundaries
//
// goOTC is the public surface. It exposes [Engine], [Builder], [Config] and
// the closed result types ([IssueStatus], [ShortCodeStatus], ...). Storage
// lives in credstore and its subpackages; delivery of codes lives in
// delivery. Randomness, code hashing and the send limiter live under
// internal/.
//
// # What this package must NOT do
//
//   - Return raw store errors to callers. Faults come back as a
//     ServiceFailure status plus an error wrapping [ErrServiceUnavailable].
//   - Persist or log plaintext codes or passwords.
//   - Send email or SMS itself; callers hand the plaintext codes returned by
//     [Engine.IssueCode] to a delivery.Sender.
//   - Read request-scoped ambient state. Everything an operation needs is a
//     parameter.
package goOTC
