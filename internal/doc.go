// Package internal holds helpers private to tripAuth, such as random
// nonce generation for federated login.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink)
//   - flows: pure-function orchestrators for every Engine operation
//   - rate: registry-backed failed-login throttle
//   - config: environment configuration for the tripauthd process
//   - logging: logrus setup
//   - memberstore: member persistence (memory, Postgres)
//   - purge: scheduled purge of members past the restore window
//   - server: chi router and HTTP handlers
//
// # What this package must NOT do
//
//   - Export types that appear in the public tripAuth API.
//   - Be imported by any package outside the tripAuth module.
package internal
