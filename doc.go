// Package goContacts is a per-user contacts service: account signup and
// login with JWT access and refresh tokens, email confirmation, avatar
// upload and contact CRUD, all scoped by the authenticated caller.
//
// The [Engine] is built once through [Builder.Build] and is safe to call
// from multiple goroutines afterwards.
//
// # Architecture boundaries
//
// goContacts is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy and value types ([Contact], [TokenPair]). Persistence,
// object storage and outbound mail are adapters behind [UserStore],
// [ContactStore], [AvatarStore] and [Mailer]; token handling lives in jwt
// and principal resolution in session.
//
// # What this package must NOT do
//
//   - Know about HTTP status codes (internal/httpapi maps errors).
//   - Import concrete adapters (internal/stores, internal/avatar, internal/mail).
//   - Return refresh tokens or password hashes from read paths.
package goContacts
