// Package pgstore implements credstore.Store on PostgreSQL through sqlx and
// the pgx stdlib driver.
//
// Version checks are part of each UPDATE/DELETE predicate, so a row changes
// only if it still carries the version the caller read. Expired codes are
// not removed automatically; run SweepExpiredCodes periodically (see
// cmd/otc-sweeper).
package pgstore
