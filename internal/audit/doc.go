// Package audit provides the asynchronous audit event dispatcher behind the
// engine's login, refresh, logout and rejection events. Events lost to
// backpressure are counted per event type.
//
// # What this package must NOT do
//
//   - Block the request path on a slow sink beyond the configured policy.
//   - Be imported outside the tripAuth module.
package audit
