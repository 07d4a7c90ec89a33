// Package rate provides Redis-backed fixed-window limiters for login and
// refresh.
//
// # Window semantics
//
// Fixed-window counters: INCR plus EXPIRE on the first hit. Keys live under a
// configurable prefix (default "limiter") so they share the session store's
// Redis connection without colliding with session keys:
//   - {prefix}:login:{email}      failed logins per email
//   - {prefix}:login-ip:{ip}      failed logins per client IP
//   - {prefix}:refresh:{subject}  refreshes per subject
//
// # What this package must NOT do
//
//   - Decide which errors count as a failed login (the engine does).
//   - Be imported outside the authsession module.
package rate
