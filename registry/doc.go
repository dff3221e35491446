// Package registry holds the shared, TTL-bounded token state every service
// instance consults: the single active access token per username, the
// per-username refresh slot, and the blacklist of revoked tokens.
//
// # Architecture boundaries
//
// State lives behind the [KV] interface. [RedisKV] is the production backend;
// [MemoryKV] serves tests and single-process development. [Registry] maps the
// token operations onto single-key KV calls, so no cross-key transaction is
// ever needed.
//
// # What this package must NOT do
//
//   - Import tripAuth or jwt (no upward imports).
//   - Interpret token contents. Tokens are opaque strings here.
//   - Hide backend failures: every KV error wraps [ErrUnavailable].
package registry
