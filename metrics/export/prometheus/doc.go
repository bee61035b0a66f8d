// Package prometheus renders engine metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [costscope.Engine] and exposes an
// [http.Handler]. Counter names are prefixed costscope_*_total; the single
// histogram is costscope_renew_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate engine state.
package prometheus
