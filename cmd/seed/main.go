package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"balans-ai/internal/config"
	"balans-ai/internal/domain/model"
	pg "balans-ai/internal/infra/db/postgres"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/usecase"
)

// launchPromos are the codes handed out at launch.
var launchPromos = []model.PromoCode{
	{
		Code:            "50FRIEND50",
		DiscountPercent: 60,
		UsageLimit:      10,
		Plan:            model.PlanPlus,
		Description:     "Friends of Balans AI: 60% off PLUS",
		IsActive:        true,
	},
}

func main() {
	cfgPath, dev := config.ParseFlags()
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg.Database.MaxConns = 2
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	promoUC := usecase.NewPromoUseCase(pg.NewPromoRepo(pool), pg.NewRedemptionRepo(pool), logger)
	for i := range launchPromos {
		p := launchPromos[i]
		if err := promoUC.Upsert(ctx, &p); err != nil {
			logger.Fatal().Err(err).Str("code", p.Code).Msg("seed promo")
		}
		logger.Info().
			Str("code", p.Code).
			Int("percent", p.DiscountPercent).
			Int("usage_limit", p.UsageLimit).
			Str("plan", string(p.Plan)).
			Msg("promo seeded")
	}
}
