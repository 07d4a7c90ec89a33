// Package authsession issues and verifies session-bound JWT access tokens
// backed by Redis records, with long-lived refresh tokens that mint new
// access tokens without a password.
//
// Every access token names a session id. Verification checks the signature
// and expiry and then requires that Redis still holds the exact token under
// access:{subject}:{session}, so deleting that key revokes the token before
// its exp claim. Refresh tokens live under refresh:{subject}:{token} and are
// not rotated on use.
//
// # Architecture boundaries
//
// authsession is the public surface: [Engine], [Builder], [Config] and the
// value types. Flow orchestration, rate limiting, audit dispatch and logging
// live under internal/. The jwt, password and session packages are usable on
// their own. Account persistence is an [AccountStore] supplied by the caller;
// the account package ships memory and Postgres implementations.
//
// # Concurrency
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. The engine keeps no package-level state.
package authsession
