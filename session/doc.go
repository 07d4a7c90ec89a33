// Package session provides the Redis-backed record store behind access and
// refresh tokens.
//
// # Key schema
//
//	access:{subject}:{session}   -> access token   (TTL = access lifetime)
//	access-extra:{session}       -> JSON metadata  (TTL = access lifetime)
//	refresh:{subject}:{token}    -> refresh token  (TTL = refresh lifetime)
//
// Every prefix is configurable through [Keyspace], and an optional namespace is
// prepended to all of them.
//
// # Atomicity
//
// Each single get, set or delete is atomic. Multi-key writes are independent
// unless [WithAtomicWrites] is enabled.
//
// # What this package must NOT do
//
//   - Parse or sign tokens.
//   - Decide whether a token is valid beyond returning what is stored.
//   - Import authsession or jwt (no upward imports).
package session
