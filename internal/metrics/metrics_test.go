package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHandoff(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordHandoff(DirectionInbound, "redirect")
	m.RecordHandoff(DirectionInbound, "redirect")
	m.RecordHandoff(DirectionInbound, "conflict")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Handoffs.WithLabelValues(DirectionInbound, "redirect")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Handoffs.WithLabelValues(DirectionInbound, "conflict")))
}

func TestRecordImpersonation(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordImpersonation("user", "success")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Impersonations.WithLabelValues("user", "success")))
}

func TestObserveUpstream(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ObserveUpstream("account_lists", http.StatusOK, time.Now())
	m.ObserveUpstream("account_lists", 0, time.Now())

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("account_lists", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("account_lists", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.UpstreamDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordHandoff(DirectionOutbound, "redirect")
		m.RecordImpersonation("organization", "failure")
		m.ObserveUpstream("impersonate_user", 500, time.Now())
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHandoff(DirectionUnwind, "redirect")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `handoff_redirects_total{direction="unwind",outcome="redirect"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
