// File: internal/infra/logging/logging.go
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"balans-ai/internal/config"

	"github.com/rs/zerolog"
)

// New creates a zerolog logger configured from config.
// Supports "trace" | "debug" | "info" | "warn" | "error" levels
// and "json" | "console" formats. Sampling can be enabled to reduce noise in prod.
func New(cfg config.LogConfig, dev bool) *zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var base zerolog.Logger
	if strings.ToLower(cfg.Format) == "console" || dev {
		out := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		base = zerolog.New(out).With().Timestamp().Logger()
	} else {
		base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	base = base.With().Str("service", "balans-billing").Logger()

	if cfg.Sampling && !dev {
		// Keep first 100, then 1 every 100. Warnings and errors are never sampled.
		sampled := base.Sample(zerolog.LevelSampler{
			TraceSampler: &zerolog.BasicSampler{N: 100},
			DebugSampler: &zerolog.BasicSampler{N: 100},
			InfoSampler:  &zerolog.BasicSampler{N: 100},
		})
		return &sampled
	}
	return &base
}

type ctxKey string

const (
	ctxTraceID    ctxKey = "trace_id"
	ctxUserID     ctxKey = "user_id"
	ctxMerchantID ctxKey = "merchant_trans_id"
	ctxClickID    ctxKey = "click_trans_id"
)

// With attaches the request-scoped ids found in ctx.
func With(ctx context.Context, base *zerolog.Logger) *zerolog.Logger {
	l := base.With()
	if v, ok := ctx.Value(ctxTraceID).(string); ok {
		l = l.Str("trace_id", v)
	}
	if v, ok := ctx.Value(ctxUserID).(int64); ok {
		l = l.Int64("user_id", v)
	}
	if v, ok := ctx.Value(ctxMerchantID).(string); ok {
		l = l.Str("merchant_trans_id", v)
	}
	if v, ok := ctx.Value(ctxClickID).(string); ok {
		l = l.Str("click_trans_id", v)
	}
	logger := l.Logger()
	return &logger
}

// TraceDuration logs start and end with elapsed duration at TRACE level.
// Usage: defer logging.TraceDuration(logger, "ClickUC.Complete")()
func TraceDuration(logger *zerolog.Logger, name string) func() {
	start := time.Now()
	logger.Trace().Str("method", name).Msg("start")
	return func() {
		logger.Trace().Str("method", name).Dur("duration", time.Since(start)).Msg("finish")
	}
}

// Redact hides secrets and signatures when not in dev; keep short preview.
func Redact(s string, dev bool) string {
	if dev {
		return s
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-2:]
}

func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxTraceID, id)
}
func WithUserID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, ctxUserID, id)
}
func WithMerchantTransID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxMerchantID, id)
}
func WithClickTransID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxClickID, id)
}

// TraceID returns the trace id stored in ctx, if any.
func TraceID(ctx context.Context) string {
	v, _ := ctx.Value(ctxTraceID).(string)
	return v
}
