package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		billingIntegrityIncidentsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment ledger transitions by resulting status (pending/prepared/confirmed/cancelled/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of confirmed payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// A confirmed payment that could not be persisted. Every increment needs an operator.
	billingIntegrityIncidentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_integrity_incidents_total",
			Help: "Critical billing writes that failed after all retries.",
		},
		[]string{"source"}, // click_complete|admin_override
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func IncBillingIntegrityIncident(source string) {
	billingIntegrityIncidentsTotal.WithLabelValues(norm(source)).Inc()
}
