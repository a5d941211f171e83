// Package metrics renders a Prometheus text body for total databases,
// active sessions, uptime, queries by language/status, query duration,
// and HTTP requests by method/status.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sink wraps a dedicated prometheus.Registry so every collector here is
// self-contained and safe to construct more than once in tests.
type Sink struct {
	registry *prometheus.Registry
	started  time.Time

	databases      prometheus.Gauge
	activeSessions prometheus.Gauge

	queriesTotal   *prometheus.CounterVec
	queryDuration  *prometheus.HistogramVec
	httpRequests   *prometheus.CounterVec
}

// New constructs a Sink and registers its collectors.
func New() *Sink {
	registry := prometheus.NewRegistry()
	s := &Sink{
		registry: registry,
		started:  time.Now(),
		databases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grafeo_databases_total",
			Help: "Number of live database entries.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grafeo_active_sessions",
			Help: "Number of open explicit transaction sessions.",
		}),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grafeo_queries_total",
			Help: "Total queries dispatched, by language and outcome status.",
		}, []string{"language", "status"}),
		queryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grafeo_query_duration_seconds",
			Help:    "Query execution duration in seconds, by language.",
			Buckets: prometheus.DefBuckets,
		}, []string{"language"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grafeo_http_requests_total",
			Help: "Total HTTP requests, by method and status class.",
		}, []string{"method", "status"}),
	}
	registry.MustRegister(
		s.databases,
		s.activeSessions,
		s.queriesTotal,
		s.queryDuration,
		s.httpRequests,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "grafeo_uptime_seconds",
			Help: "Seconds since the server started.",
		}, func() float64 { return time.Since(s.started).Seconds() }),
	)
	return s
}

// SetDatabases records the current live database entry count.
func (s *Sink) SetDatabases(n int) { s.databases.Set(float64(n)) }

// SetActiveSessions records the current open session count.
func (s *Sink) SetActiveSessions(n int64) { s.activeSessions.Set(float64(n)) }

// ObserveQuery records one completed dispatch call: total queries by
// language and status, and the query duration histogram.
func (s *Sink) ObserveQuery(language, status string, d time.Duration) {
	s.queriesTotal.WithLabelValues(language, status).Inc()
	s.queryDuration.WithLabelValues(language).Observe(d.Seconds())
}

// ObserveHTTPRequest records one completed HTTP request by method and
// status class.
func (s *Sink) ObserveHTTPRequest(method string, statusClass string) {
	s.httpRequests.WithLabelValues(method, statusClass).Inc()
}

// Handler returns the http.Handler serving GET /metrics in the
// Prometheus text exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
