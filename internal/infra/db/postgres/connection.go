package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/pkg/errors"

	"balans-ai/internal/config"
	"balans-ai/internal/infra/metrics"
)

// Connect opens the pool and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database url is required")
	}
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse database url")
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.ConnectConfig(ctx, pcfg)
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	return pool, nil
}

// ReportPoolStats publishes pool gauges every interval until ctx is done.
func ReportPoolStats(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s := pool.Stat()
		metrics.ObserveLedgerPool(metrics.PoolStats{
			Max:           s.MaxConns(),
			Total:         s.TotalConns(),
			Idle:          s.IdleConns(),
			Acquired:      s.AcquiredConns(),
			EmptyAcquires: s.EmptyAcquireCount(),
		})
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
