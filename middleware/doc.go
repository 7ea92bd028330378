// Package middleware holds the net/http adapters that sit in front of the
// goContacts engine.
//
// # Guards
//
//   - [RequireUser] resolves the bearer token to a principal and stores it
//     in the request context.
//   - [RateLimit] applies a shared fixed-window budget, typically the
//     engine's Redis-backed contact limiter.
//   - [IPThrottle] is an in-process token bucket per client IP for the
//     unauthenticated auth routes.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. Token parsing,
// caching and counting all happen behind the interfaces it accepts.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis or the user store.
package middleware
