// Package prometheus exposes engine metrics as a client_golang Collector.
//
// Counter names are prefixed tripauth_*_total; the single histogram is
// tripauth_authenticate_latency_seconds. Dropped audit events are labelled
// by event type.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry. Callers register the
//     Collector or mount Handler.
//   - Mutate engine state.
package prometheus
