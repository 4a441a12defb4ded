// Package metrics exposes Prometheus instruments for weather lookups.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the app's instruments. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	stale       *prometheus.CounterVec
	searches    *prometheus.CounterVec
}

// New registers the instruments on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omniweather",
			Name:      "api_requests_total",
			Help:      "Weather API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "omniweather",
			Name:      "api_request_duration_seconds",
			Help:      "Weather API request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omniweather",
			Name:      "stale_responses_total",
			Help:      "Responses discarded because a newer request superseded them.",
		}, []string{"screen", "kind"}),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "omniweather",
			Name:      "searches_total",
			Help:      "Location searches issued after debouncing.",
		}, []string{"screen"}),
	}
	m.registry.MustRegister(m.apiRequests, m.apiLatency, m.stale, m.searches)
	return m
}

// ObserveRequest records one finished API request
func (m *Metrics) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(endpoint, outcome).Inc()
	m.apiLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// StaleResponse records a discarded response; kind is "search" or "snapshot"
func (m *Metrics) StaleResponse(screen, kind string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(screen, kind).Inc()
}

// SearchIssued records a search that survived debouncing
func (m *Metrics) SearchIssued(screen string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(screen).Inc()
}

// Registry returns the registry holding the instruments
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
