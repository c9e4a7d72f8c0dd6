package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		tariffActivationsTotal,
		promoRedemptionsTotal,
		checkoutsTotal,
	)
}

var (
	tariffActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tariff_activations_total",
			Help: "Tariff activations by purchased plan and outcome.",
		},
		[]string{"plan", "result"}, // result: applied|kept_higher
	)

	promoRedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promo_redemptions_total",
			Help: "Promo redemption transitions by status.",
		},
		[]string{"status"}, // reserved|completed|cancelled
	)

	checkoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkouts_total",
			Help: "Checkout attempts by result.",
		},
		[]string{"result"}, // created|promo_rejected|rate_limited|invalid|error
	)
)

func IncTariffActivation(plan, result string) {
	tariffActivationsTotal.WithLabelValues(norm(plan), norm(result)).Inc()
}

func IncPromoRedemption(status string) {
	promoRedemptionsTotal.WithLabelValues(norm(status)).Inc()
}

func IncCheckout(result string) {
	checkoutsTotal.WithLabelValues(norm(result)).Inc()
}
