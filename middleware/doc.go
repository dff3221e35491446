// Package middleware adapts tripAuth.Engine to net/http: an explicit
// [Chain] of [Stage] values, the [DeletionGate] and [Authenticator] stages,
// the [RequireRole] guard, token cookies and the RsData response envelope.
//
// # Ordering
//
// The request pipeline is NewChain(DeletionGate, Authenticator). The gate
// runs first and may halt with 403; the authenticator always runs after a
// gate that continued, so a gate lookup failure never bypasses token checks.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Every decision
// about a token is made by the Engine; [Describe] maps the resulting error
// to a status, a stable code and a message.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly.
//   - Access Redis.
//   - Leak token-parsing details into response bodies.
package middleware
