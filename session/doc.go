// Package session resolves a bearer access token into the [Principal] it
// names, with a Redis read-through cache in front of the persistent user
// store.
//
// # Binary encoding
//
// Cached principals use a compact versioned binary format (see [Encode]).
// Entries that fail to decode are treated as misses and evicted.
//
// # Architecture boundaries
//
// This package owns the [Principal] model, the [Cache] abstraction and the
// [Resolver]. Token validation is delegated to a [TokenValidator] and user
// lookup to a [PrincipalFinder]; neither is implemented here.
//
// # What this package must NOT do
//
//   - Import goContacts or jwt (no upward imports).
//   - Tell callers why a token was rejected.
//   - Cache refresh tokens.
package session
