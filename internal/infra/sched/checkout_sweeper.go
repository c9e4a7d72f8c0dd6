package sched

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"balans-ai/internal/infra/metrics"
)

// Expirer cancels pending checkouts created before cutoff.
type Expirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

// CheckoutSweeper cancels checkouts the user abandoned before Click called
// prepare, releasing their promo reservations.
type CheckoutSweeper struct {
	expirer Expirer
	ttl     time.Duration
	batch   int
	spec    string
	log     *zerolog.Logger
	cron    *cron.Cron
	now     func() time.Time
}

func NewCheckoutSweeper(expirer Expirer, spec string, ttl time.Duration, batch int, logger *zerolog.Logger) *CheckoutSweeper {
	if spec == "" {
		spec = "@every 10m"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "checkout_sweeper").Logger()
	return &CheckoutSweeper{expirer: expirer, ttl: ttl, batch: batch, spec: spec, log: &l, now: time.Now}
}

// Start schedules the sweep and returns once it is registered. The schedule
// stops when ctx is done.
func (s *CheckoutSweeper) Start(ctx context.Context) error {
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := s.cron.AddFunc(s.spec, func() { _, _ = s.RunOnce(ctx) }); err != nil {
		return errors.Wrapf(err, "schedule checkout sweep %q", s.spec)
	}
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	s.log.Info().Str("spec", s.spec).Dur("ttl", s.ttl).Msg("checkout sweeper scheduled")
	return nil
}

// RunOnce performs a single sweep.
func (s *CheckoutSweeper) RunOnce(ctx context.Context) (int, error) {
	runCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := s.expirer.ExpireStale(runCtx, s.now().Add(-s.ttl), s.batch)
	if err != nil {
		metrics.IncJob("checkout_sweep", "error")
		s.log.Error().Err(err).Int("expired", n).Msg("checkout sweep failed")
		return n, err
	}
	metrics.IncJob("checkout_sweep", "ok")
	if n > 0 {
		s.log.Info().Int("expired", n).Msg("stale checkouts cancelled")
	}
	return n, nil
}
