// Package password implements salted password hashing behind the [Hasher]
// interface.
//
// [Argon2] is the primary algorithm and encodes hashes in PHC format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Bcrypt] verifies hashes carried over from older deployments. A [Verifier]
// routes each stored hash to the hasher that understands it and reports when
// a hash should be upgraded.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords.
//   - Enforce password policy (length rules live in the engine).
//   - Log plaintext passwords.
package password
