package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest outcomes.
const (
	ResultAccepted        = "accepted"
	ResultDuplicate       = "duplicate"
	ResultRecentDuplicate = "recent_duplicate"
)

// Metrics groups the collectors of the live layer. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingested       *prometheus.CounterVec
	decodeFailures prometheus.Counter
	transitions    *prometheus.CounterVec
	reconnects     prometheus.Counter
	unread         prometheus.Gauge
}

// New registers all collectors on a private registry.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_ingested_total",
			Help:      "Server events offered to the notification store, by outcome.",
		}, []string{"result"}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frame_decode_failures_total",
			Help:      "Inbound frames dropped because the body could not be parsed.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_transitions_total",
			Help:      "Connection state transitions, by target state.",
		}, []string{"state"}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Automatic reconnect attempts.",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notifications_unread",
			Help:      "Unread notifications currently held by the store.",
		}),
	}

	m.registry.MustRegister(m.ingested, m.decodeFailures, m.transitions, m.reconnects, m.unread)
	return m
}

func (m *Metrics) ObserveIngest(result string) {
	if m == nil {
		return
	}
	m.ingested.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveDecodeFailure() {
	if m == nil {
		return
	}
	m.decodeFailures.Inc()
}

func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *Metrics) SetUnread(n int) {
	if m == nil {
		return
	}
	m.unread.Set(float64(n))
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
