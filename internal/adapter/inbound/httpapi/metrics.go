package httpapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the gateway's Prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	actionsTotal    *prometheus.CounterVec
	authFailures    prometheus.Counter
	activeStreams   prometheus.Gauge
}

// NewMetrics creates and registers the gateway instruments alongside the
// standard Go and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ignition_gateway",
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method, path and status.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ignition_gateway",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ignition_gateway",
			Name:      "actions_total",
			Help:      "Actions processed, by resource type, action type and status.",
		}, []string{"resource_type", "action_type", "status"}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ignition_gateway",
			Name:      "auth_failures_total",
			Help:      "Rejected authentication attempts.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ignition_gateway",
			Name:      "active_message_streams",
			Help:      "Conversation message streams currently open.",
		}),
	}
	registry.MustRegister(m.requestsTotal, m.requestDuration, m.actionsTotal, m.authFailures, m.activeStreams)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method, path string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// ObserveAction records one processed action.
func (m *Metrics) ObserveAction(resourceType, actionType, status string) {
	m.actionsTotal.WithLabelValues(resourceType, actionType, status).Inc()
}

// IncAuthFailure counts one rejected authentication attempt.
func (m *Metrics) IncAuthFailure() {
	m.authFailures.Inc()
}

// StreamOpened marks a message stream as open.
func (m *Metrics) StreamOpened() {
	m.activeStreams.Inc()
}

// StreamClosed marks a message stream as closed.
func (m *Metrics) StreamClosed() {
	m.activeStreams.Dec()
}
