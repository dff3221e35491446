package prometheus

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	tripAuth "github.com/MrEthical07/tripAuth"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeSource struct {
	snapshot tripAuth.MetricsSnapshot
	dropped  map[string]uint64
}

func (f *fakeSource) MetricsSnapshot() tripAuth.MetricsSnapshot { return f.snapshot }
func (f *fakeSource) AuditDroppedByEvent() map[string]uint64    { return f.dropped }

func newSource() *fakeSource {
	return &fakeSource{
		snapshot: tripAuth.MetricsSnapshot{
			Counters: map[tripAuth.MetricID]uint64{
				tripAuth.MetricLoginSuccess:        3,
				tripAuth.MetricDeletionGateBlocked: 2,
			},
			Histograms: map[tripAuth.MetricID][]uint64{
				tripAuth.MetricAuthenticateLatency: {4, 1, 0, 0, 0, 0, 0, 1},
			},
		},
		dropped: map[string]uint64{"login_failure": 4, "logout": 1},
	}
}

func TestCollectorCounters(t *testing.T) {
	c := NewCollectorFromSource(newSource())

	expected := `
# HELP tripauth_login_success_total Successful logins.
# TYPE tripauth_login_success_total counter
tripauth_login_success_total 3
# HELP tripauth_deletion_gate_blocked_total Requests blocked for a soft-deleted account.
# TYPE tripauth_deletion_gate_blocked_total counter
tripauth_deletion_gate_blocked_total 2
# HELP tripauth_audit_dropped_total Audit events dropped due to dispatcher backpressure.
# TYPE tripauth_audit_dropped_total counter
tripauth_audit_dropped_total{event="login_failure"} 4
tripauth_audit_dropped_total{event="logout"} 1
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected),
		"tripauth_login_success_total",
		"tripauth_deletion_gate_blocked_total",
		"tripauth_audit_dropped_total",
	); err != nil {
		t.Fatalf("unexpected collection: %v", err)
	}
}

func TestCollectorHistogramIsCumulative(t *testing.T) {
	c := NewCollectorFromSource(newSource())

	expected := `
# HELP tripauth_authenticate_latency_seconds Request authentication latency.
# TYPE tripauth_authenticate_latency_seconds histogram
tripauth_authenticate_latency_seconds_bucket{le="0.005"} 4
tripauth_authenticate_latency_seconds_bucket{le="0.01"} 5
tripauth_authenticate_latency_seconds_bucket{le="0.025"} 5
tripauth_authenticate_latency_seconds_bucket{le="0.05"} 5
tripauth_authenticate_latency_seconds_bucket{le="0.1"} 5
tripauth_authenticate_latency_seconds_bucket{le="0.25"} 5
tripauth_authenticate_latency_seconds_bucket{le="0.5"} 5
tripauth_authenticate_latency_seconds_bucket{le="+Inf"} 6
tripauth_authenticate_latency_seconds_sum 0
tripauth_authenticate_latency_seconds_count 6
`
	if err := testutil.CollectAndCompare(c, strings.NewReader(expected), "tripauth_authenticate_latency_seconds"); err != nil {
		t.Fatalf("unexpected histogram: %v", err)
	}
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(newSource())
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(string(body), "tripauth_login_success_total 3") {
		t.Fatalf("expected login counter in body:\n%s", body)
	}
}
