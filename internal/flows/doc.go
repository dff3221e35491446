// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunRefresh, RunAuthenticate, ...) accepts a
// typed dependency struct and returns results without side effects beyond
// those dependencies. The Engine type stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the token registry, the token codec,
// the login throttle, audit and metrics. They do NOT own any of these
// resources; ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tripAuth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency funcs.
package flows
