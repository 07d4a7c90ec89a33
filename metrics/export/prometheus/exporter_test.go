package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/swipewise/authsession"
)

type fakeSource struct {
	snapshot authsession.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() authsession.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDropped() uint64                         { return f.dropped }

func newSource() *fakeSource {
	return &fakeSource{
		snapshot: authsession.MetricsSnapshot{
			Counters: map[authsession.MetricID]uint64{
				authsession.MetricLoginSuccess:  3,
				authsession.MetricVerifyFailure: 2,
			},
			Histograms: map[authsession.MetricID][]uint64{
				authsession.MetricVerifyLatency: {1, 1, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: 4,
	}
}

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestHandlerRendersCountersAndHistogram(t *testing.T) {
	out := scrape(t, NewExporterFromSource(newSource()).Handler())

	for _, want := range []string{
		"authsession_login_success_total 3",
		"authsession_verify_failure_total 2",
		"authsession_logout_total 0",
		`authsession_verify_latency_seconds_bucket{le="0.005"} 1`,
		`authsession_verify_latency_seconds_bucket{le="0.01"} 2`,
		`authsession_verify_latency_seconds_bucket{le="+Inf"} 3`,
		"authsession_verify_latency_seconds_count 3",
		"authsession_audit_dropped_total 4",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestExporterRegistersWithoutConflicts(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := reg.Register(NewExporterFromSource(newSource())); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metric families")
	}
}

func TestExporterNilSourceCollectsNothing(t *testing.T) {
	out := scrape(t, NewExporterFromSource(nil).Handler())
	if strings.Contains(out, "authsession_login_success_total") {
		t.Fatalf("expected no samples, got:\n%s", out)
	}
}
