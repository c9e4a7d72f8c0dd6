package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/infra/metrics"
	red "balans-ai/internal/infra/redis"
)

var _ repository.PromoRepository = (*promoRepoCacheDecorator)(nil)

// promoRepoCacheDecorator caches promo lookups made outside a transaction.
// Locked reads inside a transaction always go to the database. Promos with a
// usage limit are never cached: their usage_count is only live in Postgres.
type promoRepoCacheDecorator struct {
	inner repository.PromoRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewPromoRepoCacheDecorator(inner repository.PromoRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PromoRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	l := logger.With().Str("component", "promo_cache").Logger()
	return &promoRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: &l}
}

func promoKey(code string) string { return fmt.Sprintf("promo:%s", model.NormalizePromoCode(code)) }

func (d *promoRepoCacheDecorator) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	if _, inTx := tx.(pgx.Tx); inTx {
		return d.inner.FindByCode(ctx, tx, code)
	}
	key := promoKey(code)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var p model.PromoCode
		if json.Unmarshal([]byte(val), &p) == nil && p.UsageLimit == 0 {
			metrics.IncPromoCacheLookup("hit")
			return &p, nil
		}
	} else if err != redis.Nil {
		d.log.Warn().Err(err).Str("key", key).Msg("promo cache read failed")
	}

	metrics.IncPromoCacheLookup("miss")
	p, err := d.inner.FindByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if p == nil || p.UsageLimit > 0 {
		return p, nil
	}
	if b, err := json.Marshal(p); err == nil {
		_ = d.cache.Set(ctx, key, b, d.ttl)
	}
	return p, nil
}

func (d *promoRepoCacheDecorator) IncrementUsage(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	ok, err := d.inner.IncrementUsage(ctx, tx, code)
	d.invalidate(ctx, code)
	return ok, err
}

func (d *promoRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, p *model.PromoCode) error {
	d.invalidate(ctx, p.Code)
	err := d.inner.Upsert(ctx, tx, p)
	d.invalidate(ctx, p.Code)
	return err
}

func (d *promoRepoCacheDecorator) invalidate(ctx context.Context, code string) {
	if err := d.cache.Del(ctx, promoKey(code)); err != nil {
		d.log.Warn().Err(err).Str("promo", code).Msg("promo cache invalidation failed")
	}
}
