// Package rate implements Redis fixed-window counters for login attempts and
// per-user request budgets.
//
// # Window semantics
//
// INCR, then EXPIRE on the first hit of a window. Key prefixes:
//   - rl:login:    failed logins per email
//   - rl:login-ip: failed logins per client IP
//   - rl:req:      request budget per caller (see [Limiter.Allow])
//
// # What this package must NOT do
//
//   - Decide which routes are limited; callers choose buckets and budgets.
//   - Be imported outside the goContacts module.
package rate
