// Package audit implements async event dispatching for session lifecycle
// operations (login, refresh, logout, rejected verification).
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, Kafka, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, subject, session, IP and metadata.
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the engine does.
//
// # What this package must NOT do
//
//   - Put token strings or password material into events.
//   - Import authsession or any sibling internal package.
package audit
