package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerPoolConns, ledgerPoolEmptyAcquires) }

var (
	// state: max|total|idle|acquired
	ledgerPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "billing_db_pool_connections",
			Help: "Postgres pool connections serving the payment ledger.",
		},
		[]string{"state"},
	)

	ledgerPoolEmptyAcquires = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "billing_db_pool_empty_acquires",
			Help: "Cumulative acquires that had to wait for a free ledger connection.",
		},
	)
)

// PoolStats is a snapshot of the ledger connection pool.
type PoolStats struct {
	Max, Total, Idle, Acquired int32
	EmptyAcquires              int64
}

func ObserveLedgerPool(s PoolStats) {
	ledgerPoolConns.WithLabelValues("max").Set(float64(s.Max))
	ledgerPoolConns.WithLabelValues("total").Set(float64(s.Total))
	ledgerPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	ledgerPoolConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	ledgerPoolEmptyAcquires.Set(float64(s.EmptyAcquires))
}
