// Package otel exports engine metrics through OpenTelemetry.
//
// [NewExporter] folds the login, refresh and authenticate counters into one
// instrument each, labelled by outcome, and publishes the latency histogram
// as a bucket gauge labelled by le. Audit drops are labelled by event type.
// A single callback reads the engine snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
