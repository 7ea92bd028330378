// Package jwt issues and validates the three token kinds used by goContacts:
// access, refresh and email-confirmation tokens.
//
// Every token is a compact signed JWT carrying {sub, iat, exp, jti, scope}. Each
// validator checks signature and expiry first, then the scope claim, so a
// token minted for one purpose is never accepted by a validator expecting
// another.
//
// # Architecture boundaries
//
// This package knows nothing about users, caches or HTTP. Callers map the
// sentinel errors ([ErrInvalidSignatureOrFormat], [ErrInvalidScope],
// [ErrInvalidCredentials], [ErrUnprocessableToken]) to their own taxonomy.
//
// # What this package must NOT do
//
//   - Perform I/O or keep server-side token state.
//   - Import goContacts or session.
package jwt
