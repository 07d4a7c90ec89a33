package otel

import (
	"context"
	"sync"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/swipewise/authsession"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[authsession.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authsession.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authsession.MetricsSnapshot{
		Counters:   make(map[authsession.MetricID]uint64, len(f.counters)),
		Histograms: map[authsession.MetricID][]uint64{authsession.MetricVerifyLatency: append([]uint64(nil), f.latency...)},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] = dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		counters: map[authsession.MetricID]uint64{authsession.MetricLoginSuccess: 3},
		latency:  []uint64{1, 1, 0, 0, 0, 0, 0, 2},
		dropped:  1,
	}

	exp, err := NewExporterFromSource(provider.Meter("authsession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
	}()

	got := collect(t, reader)
	checks := map[string]int64{
		"authsession_login_success_total":                    3,
		"authsession_logout_total":                           0,
		"authsession_verify_latency_seconds_bucket_le_0_005": 1,
		"authsession_verify_latency_seconds_bucket_le_0_01":  2,
		"authsession_verify_latency_seconds_bucket_le_inf":   4,
		"authsession_verify_latency_seconds_count":           4,
		"authsession_audit_dropped_total":                    1,
	}
	for name, want := range checks {
		if got[name] != want {
			t.Fatalf("%s: expected %d, got %d", name, want, got[name])
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporterFromSource(provider.Meter("authsession-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("authsession-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterStopsObservingAfterClose(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[authsession.MetricID]uint64{authsession.MetricLogout: 5}}

	exp, err := NewExporterFromSource(provider.Meter("authsession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	if err := exp.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := collect(t, reader); got["authsession_logout_total"] != 0 {
		t.Fatalf("expected no observation after close, got %d", got["authsession_logout_total"])
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{counters: map[authsession.MetricID]uint64{authsession.MetricLoginSuccess: 1}}

	exp, err := NewExporterFromSource(provider.Meter("authsession-test"), src)
	if err != nil {
		t.Fatalf("new exporter: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[authsession.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
