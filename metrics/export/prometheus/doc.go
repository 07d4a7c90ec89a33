// Package prometheus exposes engine metrics as a prometheus.Collector.
//
// Counters are published as authsession_*_total and verify latency as the
// authsession_verify_latency_seconds histogram. The exporter never touches the
// global registry; [Exporter.Handler] serves a private one.
package prometheus
