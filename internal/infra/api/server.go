package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"balans-ai/internal/config"
	"balans-ai/internal/usecase"
)

// Deps are the use cases served over HTTP.
type Deps struct {
	Click      usecase.ClickUseCase
	Checkout   usecase.CheckoutUseCase
	Promo      usecase.PromoUseCase
	Tariff     usecase.TariffUseCase
	Settlement usecase.SettlementUseCase
	Notifier   usecase.NotificationUseCase
	Catalog    CatalogPricer
	Auth       *AuthManager
	// AdminAPIKey is exchanged for a bearer token at /admin/session. Empty disables admin routes.
	AdminAPIKey string
	// Ready reports backing-store health for /healthz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	d   Deps
	log *zerolog.Logger
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "http_api").Logger()
	return &Server{d: d, log: &l}
}

// Router builds the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		// Click gives up after a few seconds; a late answer is as bad as none.
		r.Use(Timeout(8 * time.Second))
		r.Post("/click/prepare", s.handleClick(clickPrepare))
		r.Post("/click/complete", s.handleClick(clickComplete))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(Timeout(10 * time.Second))
		r.Post("/checkout", s.handleCheckout)
		r.Post("/promo/validate", s.handlePromoValidate)
		r.Get("/user/tariff/{userID}", s.handleTariffView)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(Timeout(10 * time.Second))
		r.Post("/session", s.handleAdminSession)
		r.With(s.requireAdmin).Post("/payments/{merchantTransID}/status", s.handleAdminStatus)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.d.Ready != nil {
		if err := s.d.Ready(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewHTTPServer applies the configured timeouts to h.
func NewHTTPServer(cfg config.HTTPConfig, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorBody{Error: msg})
}
