// Package middleware provides the HTTP middleware for the loopback API.
//
// CORS:
//   - Loopback origins (localhost, 127.0.0.1, [::1]) on any port
//   - Extra origins from CORSConfig.AllowOrigins
//
// Rate Limiting:
//   - Per-client token bucket
//   - Idle limiters are dropped after IdleTTL
package middleware
