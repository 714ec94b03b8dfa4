package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		initiationsTotal,
		reconcileOutcomesTotal,
		reconcileDuplicatesTotal,
		notificationsTotal,
	)
}

var (
	initiationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_initiations_total",
			Help: "Start-transaction attempts by submethod and result (ok/rejected/error).",
		},
		[]string{"submethod", "result"},
	)

	reconcileOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_outcomes_total",
			Help: "Reconciliation outcomes by submethod and translated status kind.",
		},
		[]string{"submethod", "outcome"},
	)

	reconcileDuplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_duplicates_total",
			Help: "Benign duplicate notifications swallowed after losing the atomic update race.",
		},
		[]string{"submethod"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_notifications_total",
			Help: "Payment-updated events published, by change tag.",
		},
		[]string{"change"},
	)
)

func IncInitiation(submethod, result string) {
	initiationsTotal.WithLabelValues(norm(submethod), norm(result)).Inc()
}

func IncReconcileOutcome(submethod, outcome string) {
	reconcileOutcomesTotal.WithLabelValues(norm(submethod), norm(outcome)).Inc()
}

func IncReconcileDuplicate(submethod string) {
	reconcileDuplicatesTotal.WithLabelValues(norm(submethod)).Inc()
}

func IncNotification(change string) {
	notificationsTotal.WithLabelValues(norm(change)).Inc()
}
