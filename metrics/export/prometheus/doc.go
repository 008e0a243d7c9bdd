// Package prometheus renders goOTC engine metrics in the Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an [goOTC.Engine] and exposes an
// [http.Handler]. Counters are named gootc_*_total; the redemption and
// password verification latencies are gootc_*_latency_seconds histograms.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
