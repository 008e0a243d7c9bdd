// Package internal contains helpers that are intentionally private to goOTC:
// secure code generation and code hashing.
//
// # Sub-packages
//
//   - rate — Redis-backed fixed-window counters used by the send limiter
//   - fileconfig — YAML and environment loading for the bundled commands
//
// # What this package must NOT do
//
//   - Export types that appear in the public goOTC API.
//   - Log or persist plaintext codes.
//   - Be imported by any package outside the goOTC module.
package internal
