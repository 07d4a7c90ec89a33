// Package internal contains helpers that are private to authsession, such as
// session id generation.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher plus Sink implementations, including Kafka)
//   - flows: pure-function orchestrators for issue, verify, reissue and revoke
//   - httpapi: JSON handlers for the reference HTTP surface
//   - observability: slog logger, Sentry wiring, request id and recovery middleware
//   - rate: Redis-backed fixed-window limiters for login and refresh
//
// # What this package must NOT do
//
//   - Export types that appear in the public authsession API.
//   - Be imported by any package outside the authsession module.
package internal
