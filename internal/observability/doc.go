// Package observability holds the ambient runtime plumbing of the server:
// a slog-backed logger, Sentry setup and the outermost HTTP middleware
// (panic recovery, request ids and access logging).
package observability
