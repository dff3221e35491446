// Package permission decides whether the caller attached to a request
// context holds a required role.
//
// # Architecture boundaries
//
// The identity is read with tripAuth.IdentityFromContext; this package never
// parses tokens or touches the registry. [Check] returns a typed [Result]
// that HTTP adapters (middleware.RequireRole) and domain services both use.
//
// # What this package must NOT do
//
//   - Perform I/O.
//   - Grant a role implicitly. ADMIN does not satisfy a USER requirement.
package permission
