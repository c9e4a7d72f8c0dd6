package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(notificationsTotal, jobsTotal) }

var (
	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Payment result DMs by delivery status.",
		},
		[]string{"status"}, // sent|error|dropped
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_jobs_total",
			Help: "Detached tasks and scheduled runs by name and status.",
		},
		[]string{"job", "status"}, // status: ok|error|dropped
	)
)

func IncNotification(status string) {
	notificationsTotal.WithLabelValues(norm(status)).Inc()
}

func IncJob(job, status string) {
	jobsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}
