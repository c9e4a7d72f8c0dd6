package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"balans-ai/internal/config"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/infra/api"
	pg "balans-ai/internal/infra/db/postgres"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/infra/metrics"
	"balans-ai/internal/infra/payment"
	red "balans-ai/internal/infra/redis"
	"balans-ai/internal/infra/sched"
	"balans-ai/internal/infra/telegram"
	"balans-ai/internal/infra/worker"
	"balans-ai/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- Config & logging ----
	cfgPath, dev := config.ParseFlags()
	cfg, err := config.LoadConfig(cfgPath, dev)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)
	if cfg.Click.SkipSignatureCheck {
		logger.Warn().Msg("click signature check is DISABLED; mismatches are only logged")
	}

	// ---- Postgres ----
	pool, err := pg.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	payments := pg.NewPaymentRepo(pool)
	tariffs := pg.NewTariffRepo(pool)
	packages := pg.NewPackageRepo(pool)
	promos := pg.NewPromoRepoCacheDecorator(pg.NewPromoRepo(pool), redisClient, cfg.Billing.PromoCacheTTL, logger)
	redemptions := pg.NewRedemptionRepo(pool)

	// ---- Notifications ----
	var bot adapter.TelegramBotAdapter
	if cfg.Bot.Token != "" {
		if bot, err = telegram.NewNotifier(&cfg.Bot, logger); err != nil {
			logger.Fatal().Err(err).Msg("telegram")
		}
	} else {
		logger.Warn().Msg("bot.token not set; payment DMs are logged only")
		bot = telegram.NewNoopNotifier(logger)
	}
	dispatcher := worker.NewPool(cfg.Workers.Notifications, logger)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// ---- Use cases ----
	catalog := catalogFromConfig(cfg.Billing)
	promoUC := usecase.NewPromoUseCase(promos, redemptions, logger)
	tariffUC := usecase.NewTariffUseCase(tariffs, packages, payments, logger)
	settlementUC := usecase.NewSettlementUseCase(tm, payments, tariffUC, promoUC, catalog, usecase.RetryPolicy{
		Attempts: cfg.Billing.CriticalRetries,
		Backoff:  cfg.Billing.CriticalBackoff,
	}, logger)
	notifyUC := usecase.NewNotificationUseCase(bot, dispatcher, logger)
	clickUC := usecase.NewClickUseCase(usecase.ClickSettings{
		ServiceID:  cfg.Click.ServiceID,
		MerchantID: cfg.Click.MerchantID,
		MinAmount:  cfg.Click.MinAmount,
	}, payment.NewClickSignature(cfg.Click.SecretKey, cfg.Click.SkipSignatureCheck, logger), payments, settlementUC, notifyUC, logger)
	checkoutUC := usecase.NewCheckoutUseCase(tm, payments, promoUC, settlementUC, catalog,
		payment.NewClickPayURL(cfg.Click.PayURL, cfg.Click.ServiceID, cfg.Click.MerchantID, cfg.Click.ReturnURL),
		red.NewRateLimiter(redisClient),
		usecase.CheckoutLimit{Max: cfg.Billing.CheckoutRateLimit, Window: cfg.Billing.CheckoutRateWindow},
		logger)

	// ---- Stale checkout sweeper ----
	sweeper := sched.NewCheckoutSweeper(checkoutUC, cfg.Billing.SweepCron, cfg.Billing.PendingTTL, cfg.Billing.SweepBatch, logger)
	if err := sweeper.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("sweeper")
	}

	// ---- HTTP ----
	srv := api.NewServer(api.Deps{
		Click:       clickUC,
		Checkout:    checkoutUC,
		Promo:       promoUC,
		Tariff:      tariffUC,
		Settlement:  settlementUC,
		Notifier:    notifyUC,
		Catalog:     catalog,
		Auth:        api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
		AdminAPIKey: cfg.Admin.APIKey,
		Ready: func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return err
			}
			return redisClient.Ping(ctx)
		},
	}, logger)
	httpServer := api.NewHTTPServer(cfg.HTTP, srv.Router())
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("version", version).Msg("http listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}

func catalogFromConfig(b config.BillingConfig) model.Catalog {
	c := model.Catalog{
		MonthlyPrices: make(map[model.PlanCode]int64, len(b.MonthlyPrices)),
		AllowedMonths: b.AllowedMonths,
	}
	for plan, price := range b.MonthlyPrices {
		c.MonthlyPrices[model.PlanCode(strings.ToUpper(plan))] = price
	}
	for _, p := range b.Packages {
		c.Packages = append(c.Packages, model.UsagePackage{
			Code:       strings.ToUpper(p.Code),
			Title:      p.Title,
			TextLimit:  p.TextLimit,
			VoiceLimit: p.VoiceLimit,
			Price:      p.Price,
		})
	}
	return c
}
