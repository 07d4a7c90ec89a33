// Package jwt signs and parses the compact tokens used for sessions.
//
// Access tokens carry sub, exp and session claims. Refresh tokens carry only
// sub and exp. Signature and expiry are checked here; whether a token is still
// live is decided by the session store, not by this package.
package jwt
