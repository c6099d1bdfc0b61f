package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sisko",
			Name:      "queue_actions",
			Help:      "Queued actions by status.",
		},
		[]string{"status"},
	)

	syncActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sisko",
			Name:      "sync_actions_total",
			Help:      "Actions dispatched during sync, by outcome.",
		},
		[]string{"outcome"},
	)

	syncPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sisko",
			Name:      "sync_passes_total",
			Help:      "Completed sync passes.",
		},
	)

	adminRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sisko",
			Name:      "admin_requests_total",
			Help:      "Admin API requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(queueDepth, syncActions, syncPasses, adminRequests)
	})
}

// SetQueueDepth records the current pending/failed/conflict gauge values.
func SetQueueDepth(pending, failed, conflict int) {
	queueDepth.WithLabelValues("pending").Set(float64(pending))
	queueDepth.WithLabelValues("failed").Set(float64(failed))
	queueDepth.WithLabelValues("conflict").Set(float64(conflict))
}

// IncSyncAction counts one dispatched action by outcome
// (completed, failed, conflict).
func IncSyncAction(outcome string) {
	syncActions.WithLabelValues(outcome).Inc()
}

// IncSyncPass counts one finished sync pass.
func IncSyncPass() {
	syncPasses.Inc()
}

// IncAdminRequest counts an admin API hit.
func IncAdminRequest(endpoint string) {
	adminRequests.WithLabelValues(endpoint).Inc()
}
