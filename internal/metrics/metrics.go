// Package metrics exposes Prometheus counters for handoffs, impersonations
// and upstream API calls.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handoff directions.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
	DirectionUnwind   = "unwind"
	DirectionSession  = "session"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Handoffs         *prometheus.CounterVec
	Impersonations   *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamDuration *prometheus.HistogramVec
}

// New creates Metrics on a private registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Handoffs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_redirects_total",
				Help: "Handoff redirects by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		Impersonations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_impersonations_total",
				Help: "Impersonation attempts by scope and outcome",
			},
			[]string{"scope", "outcome"},
		),
		UpstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "handoff_upstream_requests_total",
				Help: "Upstream API requests by operation and status code",
			},
			[]string{"operation", "status_code"},
		),
		UpstreamDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "handoff_upstream_request_duration_seconds",
				Help:    "Upstream API request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordHandoff counts one handoff decision.
func (m *Metrics) RecordHandoff(direction, outcome string) {
	if m == nil {
		return
	}
	m.Handoffs.WithLabelValues(direction, outcome).Inc()
}

// RecordImpersonation counts one impersonation attempt.
func (m *Metrics) RecordImpersonation(scope, outcome string) {
	if m == nil {
		return
	}
	m.Impersonations.WithLabelValues(scope, outcome).Inc()
}

// ObserveUpstream records an upstream call. A zero status means the request
// never got a response.
func (m *Metrics) ObserveUpstream(operation string, statusCode int, start time.Time) {
	if m == nil {
		return
	}
	code := "error"
	if statusCode != 0 {
		code = strconv.Itoa(statusCode)
	}
	m.UpstreamRequests.WithLabelValues(operation, code).Inc()
	m.UpstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
