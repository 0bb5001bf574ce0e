package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics records transition outcomes for the status engine.
type FulfillmentMetrics struct {
	duration      *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	disbursements *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewFulfillmentMetrics registers the fulfillment metrics on the provided registerer.
func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fulfillment_transition_duration_seconds",
		Help:    "Duration of fulfillment transitions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_transitions_total",
		Help: "Applied fulfillment transitions by action and resulting status.",
	}, []string{"action", "status"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_rejections_total",
		Help: "Rejected fulfillment transitions by action and reason.",
	}, []string{"action", "reason"})
	disbursements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_disbursements_total",
		Help: "Disbursement legs by recipient role and outcome.",
	}, []string{"role", "outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_notifications_total",
		Help: "Dispatched notifications by recipient role and channel.",
	}, []string{"role", "channel"})
	reg.MustRegister(duration, transitions, rejections, disbursements, notifications)
	return &FulfillmentMetrics{
		duration:      duration,
		transitions:   transitions,
		rejections:    rejections,
		disbursements: disbursements,
		notifications: notifications,
	}
}

// ObserveTransitionDuration records how long a transition took for the action.
func (m *FulfillmentMetrics) ObserveTransitionDuration(action string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(action)).Observe(duration.Seconds())
}

// IncTransition increments the applied-transition counter.
func (m *FulfillmentMetrics) IncTransition(action, status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(action), normalizeLabel(status)).Inc()
}

// IncRejection increments the rejected-transition counter.
func (m *FulfillmentMetrics) IncRejection(action, reason string) {
	if m == nil || m.rejections == nil {
		return
	}
	m.rejections.WithLabelValues(normalizeLabel(action), normalizeLabel(reason)).Inc()
}

// IncDisbursement increments the disbursement counter for a payout leg.
func (m *FulfillmentMetrics) IncDisbursement(role, outcome string) {
	if m == nil || m.disbursements == nil {
		return
	}
	m.disbursements.WithLabelValues(normalizeLabel(role), normalizeLabel(outcome)).Inc()
}

// IncNotification increments the notification counter for a delivery channel.
func (m *FulfillmentMetrics) IncNotification(role, channel string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(role), normalizeLabel(channel)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
