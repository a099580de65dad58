package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Verifications     *prometheus.CounterVec
	GateEvents        *prometheus.CounterVec
	PresenceToggles   *prometheus.CounterVec
	CredentialsIssued prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_verifications_total",
			Help: "Total credential verification attempts by result.",
		}, []string{"result"}),
		GateEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_gate_events_total",
			Help: "Total gate ledger events appended, by type and status.",
		}, []string{"type", "status"}),
		PresenceToggles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "gatewarden_presence_toggles_total",
			Help: "Total day scholar presence toggles by resulting status.",
		}, []string{"status"}),
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gatewarden_credentials_issued_total",
			Help: "Total credentials issued (first issuance only).",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gatewarden_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// ObserveVerification records one verification outcome.
func (m *Metrics) ObserveVerification(result string) {
	m.Verifications.WithLabelValues(result).Inc()
}

// ObserveGateEvent records one appended ledger event.
func (m *Metrics) ObserveGateEvent(eventType, status string) {
	m.GateEvents.WithLabelValues(eventType, status).Inc()
}

// ObserveToggle records one presence transition.
func (m *Metrics) ObserveToggle(status string) {
	m.PresenceToggles.WithLabelValues(status).Inc()
}
