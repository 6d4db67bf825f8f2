// Package prometheus exposes accountflow engine metrics as a Prometheus
// collector.
//
// [Exporter] implements prometheus.Collector over Engine.MetricsSnapshot.
// Counters are named accountflow_*_total; the two latency histograms are
// accountflow_account_creation_latency_seconds and
// accountflow_sign_in_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry. Callers register the
//     Exporter or mount Handler.
//   - Mutate engine state.
package prometheus
