// Package middleware puts the authentication gate in front of HTTP handlers
// and gRPC methods.
//
// # Gates
//
//   - [Gate] verifies a bearer token when one is present and attaches the
//     resulting principal to the request context. Excluded paths, requests
//     without an Authorization header and non-Bearer schemes pass through
//     unauthenticated.
//   - [Require] rejects requests that reached it without a principal.
//   - [UnaryServerInterceptor] applies the same rules to gRPC metadata.
//
// # Architecture boundaries
//
// This package translates transport semantics into Engine.Verify calls. It
// does not parse tokens or touch Redis itself.
package middleware
