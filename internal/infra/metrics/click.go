package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		clickWebhookRequests,
		clickWebhookDuration,
		signatureBypassTotal,
	)
}

var (
	// stage: prepare|complete, code: the Click reply code (0, -1, ...).
	clickWebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "click_webhook_requests_total",
			Help: "Click webhook calls by stage and reply code.",
		},
		[]string{"stage", "code"},
	)

	clickWebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "click_webhook_duration_seconds",
			Help:    "Duration of Click webhook handling in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"stage"},
	)

	signatureBypassTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signature_bypass_total",
			Help: "Signature mismatches let through because enforcement is disabled.",
		},
		[]string{"stage"},
	)
)

func ObserveClickWebhook(stage string, code string, seconds float64) {
	clickWebhookRequests.WithLabelValues(norm(stage), code).Inc()
	clickWebhookDuration.WithLabelValues(norm(stage)).Observe(seconds)
}

func IncSignatureBypass(stage string) {
	signatureBypassTotal.WithLabelValues(norm(stage)).Inc()
}
