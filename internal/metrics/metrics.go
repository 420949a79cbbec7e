package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	SessionsRequested = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mentor_sessions_requested_total",
			Help: "Number of requested mentor sessions",
		},
	)

	SessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentor_session_transitions_total",
			Help: "Number of session status transitions",
		},
		[]string{"to"},
	)

	PaymentFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "escrow_payment_failures_total",
			Help: "Number of failed payment provider calls on best-effort paths",
		},
	)

	PaymentTasksReconciled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_tasks_reconciled_total",
			Help: "Number of deferred payment operations completed by the reconciler",
		},
	)

	NotificationsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Number of notifications dispatched per channel",
		},
		[]string{"channel"},
	)
)

func Register() {
	prometheus.MustRegister(
		SessionsRequested,
		SessionTransitions,
		PaymentFailures,
		PaymentTasksReconciled,
		NotificationsDispatched,
	)
}
