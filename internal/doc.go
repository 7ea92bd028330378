// Package internal holds the infrastructure behind the goContacts engine and
// the contactsd binary.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - avatar: S3 avatar storage and Gravatar fallbacks
//   - confloader: layered YAML/env configuration via koanf
//   - dbx: database handle abstraction shared by the stores
//   - httpapi: gorilla/mux routes, handlers and HTTP middleware
//   - logging: slog-backed structured logger with redaction
//   - mail: SMTP and log-only confirmation mailers
//   - rate: Redis-backed fixed-window limiters
//   - stores: Postgres repositories, migrations and in-memory stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public goContacts API.
package internal
