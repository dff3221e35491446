// Package tripAuth is the authentication and session-lifecycle core of the
// tripfriend service: it issues access and refresh tokens, keeps the single
// active access token per member in a shared registry, revokes tokens on
// logout, and resolves the caller identity for every request.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build].
//
// # Architecture boundaries
//
// tripAuth is the public surface. It exposes [Engine], [Builder], [Config]
// and value types (Member, Identity, LoginResult, MetricsSnapshot). Flow
// orchestration, the login throttle and audit dispatch live under internal/.
// Token encoding lives in jwt/ and the registry in registry/.
//
// # Cache failure policy
//
// Every registry round-trip is bounded by Registry.OperationTimeout. When the
// registry cannot be reached, Authenticate, Login, Refresh and Logout fail
// with ErrRegistryUnavailable; a request is never authenticated by default.
// The deletion check is the only fail-open path, and the authenticator
// always runs after it.
//
// # What this package must NOT do
//
//   - Own member storage. Members are read through MemberProvider.
//   - Expose Redis clients or registry key layout in its API.
//   - Import any sub-package that re-imports tripAuth.
package tripAuth
