package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Queue metrics
	QueueJoins       *prometheus.CounterVec
	QueueTransitions *prometheus.CounterVec
	QueueWaiting     *prometheus.GaugeVec

	// Notification metrics
	NotificationsEmitted   *prometheus.CounterVec
	NotificationsFailed    prometheus.Counter
	NotificationDispatches prometheus.Histogram

	// Archive metrics
	MirrorWrites       *prometheus.CounterVec
	MirrorRepairs      prometheus.Counter
	ReconcileDuration  prometheus.Histogram
	ArchiveAccessTotal *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics
func NewMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		QueueJoins: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_joins_total",
			Help:      "Total number of accepted queue joins",
		}, []string{"department", "priority"}),
		QueueTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_transitions_total",
			Help:      "Total number of queue entry state transitions",
		}, []string{"to"}),
		QueueWaiting: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "queue_waiting",
			Help:      "Current number of waiting entries per department",
		}, []string{"department"}),

		NotificationsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_emitted_total",
			Help:      "Total number of notifications emitted",
		}, []string{"channel", "status"}),
		NotificationsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notifications_failed_total",
			Help:      "Total number of notifications that could not be handed to the transport",
		}),
		NotificationDispatches: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notification_dispatch_duration_seconds",
			Help:      "Time spent handing notifications to the transport",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),

		MirrorWrites: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_mirror_writes_total",
			Help:      "Total number of archive mirror file writes",
		}, []string{"mirror", "status"}),
		MirrorRepairs: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_mirror_repairs_total",
			Help:      "Total number of mirror files rewritten by reconciliation",
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_reconcile_duration_seconds",
			Help:      "Duration of archive reconciliation passes",
			Buckets:   []float64{.01, .05, .1, .5, 1, 5, 10, 30},
		}),
		ArchiveAccessTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "archive_access_total",
			Help:      "Total number of archive accesses by action and outcome",
		}, []string{"action", "outcome"}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}
