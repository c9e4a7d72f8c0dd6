package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/infra/logging"
)

type packageBody struct {
	Code           string `json:"code"`
	TextLimit      int    `json:"text_limit"`
	VoiceLimit     int    `json:"voice_limit"`
	TextRemaining  int    `json:"text_remaining"`
	VoiceRemaining int    `json:"voice_remaining"`
}

type tariffResponse struct {
	UserID    int64        `json:"user_id"`
	Plan      string       `json:"plan"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
	DaysLeft  int          `json:"days_left"`
	Package   *packageBody `json:"package,omitempty"`
}

func (s *Server) handleTariffView(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	ctx := logging.WithUserID(r.Context(), userID)

	v, err := s.d.Tariff.View(ctx, userID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("tariff view failed")
		writeError(w, http.StatusInternalServerError, "tariff lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, toTariffResponse(v, time.Now()))
}

func toTariffResponse(v *model.TariffView, now time.Time) tariffResponse {
	out := tariffResponse{UserID: v.UserID, Plan: string(v.Plan), ExpiresAt: v.ExpiresAt}
	if v.ExpiresAt != nil && v.ExpiresAt.After(now) {
		out.DaysLeft = int(v.ExpiresAt.Sub(now).Hours() / 24)
	}
	if g := v.Package; g != nil {
		out.Package = &packageBody{
			Code:           g.PackageCode,
			TextLimit:      g.TextLimit,
			VoiceLimit:     g.VoiceLimit,
			TextRemaining:  g.TextRemaining(),
			VoiceRemaining: g.VoiceRemaining(),
		}
	}
	return out
}
