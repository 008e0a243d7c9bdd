// Package redisstore implements credstore.Store on Redis.
//
// Records are versioned binary blobs. Conditional writes use WATCH/MULTI
// with a bounded retry loop, so a version check and the write it guards
// commit atomically. Code keys carry a TTL of the remaining validity plus a
// retention window; the engine still decides expiry from ExpiresAt, Redis
// only garbage-collects.
//
// Key layout, with the default prefix:
//
//	otc:c:<recipient>      one-time code record
//	otc:lc:<hex sha256>    long-code index -> recipient
//	otc:p:<identity>       password credential
package redisstore
