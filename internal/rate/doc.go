// Package rate provides the Redis-backed send limiter used to throttle code
// delivery per recipient.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - os: — code sends per recipient
//
// Check is read-only; only Record consumes budget, so a throttle probe never
// counts as a send.
//
// # What this package must NOT do
//
//   - Decide whether a code is still active (that is the engine's job).
//   - Be imported outside the goOTC module.
package rate
