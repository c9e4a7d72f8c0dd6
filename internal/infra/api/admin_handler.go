package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/infra/metrics"
	"balans-ai/internal/usecase"
)

const headerAPIKey = "X-API-Key"

type sessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleAdminSession exchanges the configured API key for a short-lived bearer token.
func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	if s.d.AdminAPIKey == "" || s.d.Auth == nil {
		metrics.IncAdminCommand("session", "disabled")
		writeError(w, http.StatusForbidden, "admin access disabled")
		return
	}
	key := r.Header.Get(headerAPIKey)
	if key == "" {
		var body struct {
			APIKey string `json:"api_key"`
		}
		_ = json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&body)
		key = body.APIKey
	}
	if subtle.ConstantTimeCompare([]byte(key), []byte(s.d.AdminAPIKey)) != 1 {
		metrics.IncAdminCommand("session", "unauthorized")
		logging.With(r.Context(), s.log).Warn().Str("remote", r.RemoteAddr).Msg("admin session refused")
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tok, exp, err := s.d.Auth.Mint("admin")
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("mint admin token")
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}
	metrics.IncAdminCommand("session", "authorized")
	writeJSON(w, http.StatusOK, sessionResponse{Token: tok, ExpiresAt: exp})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.d.AdminAPIKey == "" || s.d.Auth == nil {
			metrics.IncAdminCommand("payment_status", "disabled")
			writeError(w, http.StatusForbidden, "admin access disabled")
			return
		}
		if _, err := s.d.Auth.ParseFromRequest(r); err != nil {
			metrics.IncAdminCommand("payment_status", "unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRequest struct {
	Status    string `json:"status"`
	ErrorCode int    `json:"error_code"`
	ErrorNote string `json:"error_note"`
}

type statusResponse struct {
	MerchantTransID string `json:"merchant_trans_id"`
	Status          string `json:"status"`
	Changed         bool   `json:"changed"`
}

// handleAdminStatus forces a terminal status through the same settlement Click complete uses.
func (s *Server) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "merchantTransID")
	ctx := logging.WithMerchantTransID(r.Context(), key)
	log := logging.With(ctx, s.log)

	id, err := model.ParseMerchantTransID(key)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid merchant transaction id")
		return
	}
	var req statusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	status := model.PaymentStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.IsTerminal() {
		writeError(w, http.StatusBadRequest, "status must be confirmed, cancelled or failed")
		return
	}
	note := req.ErrorNote
	if note == "" {
		note = "Manual " + string(status)
	}

	st, err := s.d.Settlement.Settle(logging.WithUserID(ctx, id.UserID), usecase.SettleRequest{
		ID:        id,
		Key:       key,
		Status:    status,
		ErrorCode: req.ErrorCode,
		ErrorNote: note,
	})
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "payment not found")
		return
	case errors.Is(err, domain.ErrStateConflict):
		writeError(w, http.StatusConflict, "payment already settled with another status")
		return
	case err != nil:
		if domain.IsStorage(err) {
			metrics.IncBillingIntegrityIncident("admin_override")
		}
		log.Error().Err(err).Msg("admin settlement failed")
		writeError(w, http.StatusInternalServerError, "settlement failed")
		return
	}

	metrics.IncAdminCommand("payment_status", "authorized")
	recordSettlement(st)
	if st.Changed {
		log.Info().Str("status", string(status)).Msg("payment status set by admin")
		if s.d.Notifier != nil {
			s.d.Notifier.PaymentSettled(ctx, st)
		}
	}
	writeJSON(w, http.StatusOK, statusResponse{MerchantTransID: key, Status: string(st.Payment.Status), Changed: st.Changed})
}
