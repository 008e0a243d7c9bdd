// Package password implements password hashing, verification and strength
// policy.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Argon2.Verify] reports needsRehash when a matching hash was produced with
// weaker parameters than the current [Config]. [Chain] additionally accepts
// legacy bcrypt hashes and always flags them for rehash, which lets imported
// credentials migrate on their next successful sign-in.
//
// # Architecture boundaries
//
// This package owns hashing, verification and the [Policy] check. Lockout,
// failure counting and persistence belong to the engine and the credential
// store.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other goOTC package.
//   - Log plaintext passwords.
package password
