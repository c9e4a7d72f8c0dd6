package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(promoCacheLookups) }

// result: hit|miss
var promoCacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "promo_cache_lookups_total",
		Help: "Promo code lookups answered by redis versus postgres.",
	},
	[]string{"result"},
)

func IncPromoCacheLookup(result string) {
	promoCacheLookups.WithLabelValues(norm(result)).Inc()
}
