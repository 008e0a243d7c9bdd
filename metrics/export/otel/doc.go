// Package otel publishes goOTC engine metrics through an OpenTelemetry
// meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter
// and one Int64ObservableGauge per histogram bucket, all observed from a
// single callback that reads [goOTC.Engine.MetricsSnapshot].
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
