package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the daemon. A private registry
// keeps the /metrics endpoint free of default Go collectors from other
// libraries linked into the binary.
type Metrics struct {
	registry *prometheus.Registry

	ChatRequests     *prometheus.CounterVec
	ChatDuration     *prometheus.HistogramVec
	ProviderAttempts *prometheus.CounterVec
	RepairOutcomes   *prometheus.CounterVec
	RepairIterations prometheus.Histogram
	RepairDuration   *prometheus.HistogramVec
	ActiveSessions   *prometheus.GaugeVec
	TransportErrs    *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with all daemon collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	chatReqs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codemend_chat_requests_total",
		Help: "Chat requests by outcome",
	}, []string{"outcome"})

	chatDurs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codemend_chat_duration_seconds",
		Help:    "Chat request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codemend_provider_attempts_total",
		Help: "Provider attempts by provider and outcome (success, failed, skipped)",
	}, []string{"provider", "outcome"})

	repairOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codemend_repair_runs_total",
		Help: "Repair runs by terminal status",
	}, []string{"status"})

	repairIters := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "codemend_repair_iterations",
		Help:    "Iterations consumed per repair run",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
	})

	repairDurs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "codemend_repair_duration_seconds",
		Help:    "Repair run duration in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "codemend_transport_active_sessions",
		Help: "Active streaming repair sessions by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "codemend_transport_errors_total",
		Help: "Transport-level errors by transport and reason",
	}, []string{"transport", "reason"})

	reg.MustRegister(chatReqs, chatDurs, attempts, repairOutcomes, repairIters, repairDurs, active, trErrors)

	return &Metrics{
		registry:         reg,
		ChatRequests:     chatReqs,
		ChatDuration:     chatDurs,
		ProviderAttempts: attempts,
		RepairOutcomes:   repairOutcomes,
		RepairIterations: repairIters,
		RepairDuration:   repairDurs,
		ActiveSessions:   active,
		TransportErrs:    trErrors,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordProviderAttempt implements llm.ChainObserver.
func (m *Metrics) RecordProviderAttempt(provider, outcome string) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.ProviderAttempts.WithLabelValues(provider, outcome).Inc()
}

// RecordChat records a chat request with its duration.
func (m *Metrics) RecordChat(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.ChatDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRepair records a finished repair run.
func (m *Metrics) RecordRepair(status string, iterations int, duration time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.RepairOutcomes.WithLabelValues(status).Inc()
	m.RepairIterations.Observe(float64(iterations))
	m.RepairDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// IncActiveSessions increments the active session gauge.
func (m *Metrics) IncActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(transport).Inc()
}

// DecActiveSessions decrements the active session gauge.
func (m *Metrics) DecActiveSessions(transport string) {
	if m == nil {
		return
	}
	m.ActiveSessions.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}
