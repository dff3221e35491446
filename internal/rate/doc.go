// Package rate implements the failed-login throttle on top of the shared
// key-value store.
//
// # Window semantics
//
// Fixed-window counters: the first failure starts the window, later failures
// only increment. Key prefixes:
//   - al:  login per-user
//   - ali: login per-IP
//
// # What this package must NOT do
//
//   - Decide what counts as a failure (the login flow does).
//   - Be imported outside the tripAuth module.
package rate
