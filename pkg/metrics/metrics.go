package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RemindersDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Reminders delivered to the email transport",
		},
		[]string{"kind", "trigger"}, // kind: task, deadline; trigger: threshold, overdue, urgent, manual, bulk
	)

	ReminderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_dispatch_failures_total",
			Help: "Reminder dispatches that left the entity unmarked",
		},
		[]string{"kind", "error_type"},
	)

	NotificationsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_routed_total",
			Help: "Ingested notification events by dispatch path",
		},
		[]string{"category", "path"}, // path: instant, digest, suppressed
	)

	SchedulerRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_run_duration_seconds",
			Help:    "Duration of reminder scans and digest runs",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~16s
		},
		[]string{"job"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"command"},
	)

	SlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"command"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

func IncrementReminderDispatched(kind, trigger string) {
	RemindersDispatched.WithLabelValues(kind, trigger).Inc()
}

func IncrementReminderFailure(kind, errorType string) {
	ReminderFailures.WithLabelValues(kind, errorType).Inc()
}

func IncrementNotificationRouted(category, path string) {
	NotificationsRouted.WithLabelValues(category, path).Inc()
}

func RecordSchedulerRun(job string, duration time.Duration) {
	SchedulerRunDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func RecordDBQueryDuration(command string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(command).Observe(duration.Seconds())
}

func IncrementSlowQuery(command string) {
	SlowQueries.WithLabelValues(command).Inc()
}

func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
