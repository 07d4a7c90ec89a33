// Package otel publishes engine metrics through an OpenTelemetry Meter.
//
// Each counter becomes an Int64ObservableCounter. Verify latency is published
// as one cumulative gauge per bucket plus a _count gauge, since the metric API
// has no observable histogram. One callback reads a single snapshot per
// collection. The caller owns the MeterProvider.
package otel
