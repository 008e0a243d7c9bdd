// Package credstore defines the credential store contract used by the goOTC
// engine, the record types it persists, and an in-memory implementation.
//
// # Concurrency contract
//
// Records carry a Version row token. Conditional updates and deletes compare
// the stored version with the caller's expected version atomically per key,
// so a redemption racing another redemption, or racing a superseding
// issuance, loses deterministically with [ErrConflict] or [ErrNotFound].
//
// # Implementations
//
//   - [Memory] — process-local, for tests and single-instance tools.
//   - redisstore — Redis with WATCH/MULTI transactions and native TTL.
//   - pgstore — PostgreSQL tables with version-checked statements.
//
// The storetest sub-package holds the conformance suite every implementation
// runs.
//
// # What this package must NOT do
//
//   - Import goOTC (no upward imports).
//   - Store plaintext codes or passwords.
package credstore
