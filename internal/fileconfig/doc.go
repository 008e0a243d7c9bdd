// Package fileconfig loads deployment settings for the goOTC commands and
// example server: a YAML document for the engine and backends, with
// OTC_* environment variables (optionally from a .env file) taking
// precedence.
//
// # What this package must NOT do
//
//   - Validate engine semantics. goOTC.Config.Validate runs at Build.
//   - Hold open connections. [File.Open] hands ownership to the caller.
package fileconfig
