package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Transition outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// OrderMetrics counts lifecycle transitions and the best-effort side channels around them.
type OrderMetrics struct {
	transitions   *prometheus.CounterVec
	auditFailures *prometheus.CounterVec
	notifyFailure prometheus.Counter
}

// NewOrderMetrics registers the order metrics on the provided registerer.
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	if reg == nil {
		return &OrderMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_order_transitions_total",
		Help: "Order state transitions by event and outcome.",
	}, []string{"event", "outcome"})
	auditFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orderdesk_audit_failures_total",
		Help: "Audit log entries that could not be persisted.",
	}, []string{"reason"})
	notifyFailure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orderdesk_notification_failures_total",
		Help: "Notifications that could not be delivered.",
	})
	reg.MustRegister(transitions, auditFailures, notifyFailure)
	return &OrderMetrics{
		transitions:   transitions,
		auditFailures: auditFailures,
		notifyFailure: notifyFailure,
	}
}

// ObserveTransition records one attempted transition.
func (m *OrderMetrics) ObserveTransition(event, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(event), normalizeLabel(outcome)).Inc()
}

// IncAuditFailure records a dropped or failed audit entry.
func (m *OrderMetrics) IncAuditFailure(reason string) {
	if m == nil || m.auditFailures == nil {
		return
	}
	m.auditFailures.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncNotificationFailure records a failed notification delivery.
func (m *OrderMetrics) IncNotificationFailure() {
	if m == nil || m.notifyFailure == nil {
		return
	}
	m.notifyFailure.Inc()
}
