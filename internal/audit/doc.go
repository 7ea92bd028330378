// Package audit relays account and contact events to a sink without
// blocking request handling.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, logger, no-op).
//   - [BatchSink]: a sink that writes several queued events at once.
//   - [Dispatcher]: buffered async relay; drops or blocks when full and
//     hands batching sinks everything queued since its last write.
//   - [Event]: one record with type, user, client IP and request id.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The engine does that.
//   - Import goContacts.
package audit
