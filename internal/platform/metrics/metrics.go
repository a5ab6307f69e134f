package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the capture board.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	errorsTotal         prometheus.Counter
	capturesTotal       *prometheus.CounterVec
	adminActionsTotal   *prometheus.CounterVec
	persistFailures     prometheus.Counter
	broadcastsTotal     prometheus.Counter
	viewersDroppedTotal prometheus.Counter
	connectedViewers    prometheus.Gauge
	capturedEntities    prometheus.Gauge
}

// New creates and registers Prometheus metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokedex_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokedex_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		capturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_captures_total",
			Help: "Capture webhooks processed, by outcome (new, duplicate)",
		}, []string{"outcome"}),
		adminActionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pokedex_admin_actions_total",
			Help: "Admin requests, by action and result",
		}, []string{"action", "result"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokedex_persist_failures_total",
			Help: "Failed writes of the captured set to durable storage",
		}),
		broadcastsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokedex_broadcasts_total",
			Help: "Messages fanned out to viewers",
		}),
		viewersDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pokedex_viewers_dropped_total",
			Help: "Viewer sessions removed after a failed or lagging send",
		}),
		connectedViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pokedex_connected_viewers",
			Help: "Number of open viewer sessions",
		}),
		capturedEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pokedex_captured_entities",
			Help: "Size of the captured set",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.capturesTotal,
		m.adminActionsTotal,
		m.persistFailures,
		m.broadcastsTotal,
		m.viewersDroppedTotal,
		m.connectedViewers,
		m.capturedEntities,
	)

	return m
}

// All methods are nil-safe so that components can run without metrics in tests.

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncCaptures counts one processed capture with the given outcome label.
func (m *Metrics) IncCaptures(outcome string) {
	if m == nil {
		return
	}
	m.capturesTotal.WithLabelValues(outcome).Inc()
}

// IncAdminActions counts one admin request.
func (m *Metrics) IncAdminActions(action, result string) {
	if m == nil {
		return
	}
	m.adminActionsTotal.WithLabelValues(action, result).Inc()
}

// IncPersistFailures counts one failed save.
func (m *Metrics) IncPersistFailures() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}

// IncBroadcasts counts one fanned-out message.
func (m *Metrics) IncBroadcasts() {
	if m == nil {
		return
	}
	m.broadcastsTotal.Inc()
}

// IncViewersDropped counts one viewer removed by the broadcaster.
func (m *Metrics) IncViewersDropped() {
	if m == nil {
		return
	}
	m.viewersDroppedTotal.Inc()
}

// SetConnectedViewers sets the connected viewers gauge.
func (m *Metrics) SetConnectedViewers(n int) {
	if m == nil {
		return
	}
	m.connectedViewers.Set(float64(n))
}

// SetCapturedEntities sets the captured set size gauge.
func (m *Metrics) SetCapturedEntities(n int) {
	if m == nil {
		return
	}
	m.capturedEntities.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	promHandler := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promHandler.ServeHTTP(w, r)
	})
}
