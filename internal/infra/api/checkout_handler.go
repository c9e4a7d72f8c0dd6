package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/infra/metrics"
	"balans-ai/internal/usecase"
)

// CatalogPricer prices a checkout selection.
type CatalogPricer interface {
	Price(id model.MerchantTransID) (int64, error)
}

type checkoutRequest struct {
	UserID      int64  `json:"user_id"`
	Plan        string `json:"plan"`
	Months      int    `json:"months"`
	PackageCode string `json:"package_code"`
	PromoCode   string `json:"promo_code"`
}

type discountBody struct {
	Code           string `json:"code"`
	Percent        int    `json:"percent"`
	OriginalAmount int64  `json:"original_amount"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalAmount    int64  `json:"final_amount"`
}

type checkoutResponse struct {
	MerchantTransID string        `json:"merchant_trans_id"`
	Amount          int64         `json:"amount"`
	OriginalAmount  int64         `json:"original_amount"`
	Plan            string        `json:"plan"`
	Months          int           `json:"months,omitempty"`
	PackageCode     string        `json:"package_code,omitempty"`
	Discount        *discountBody `json:"discount,omitempty"`
	PayURL          string        `json:"pay_url"`
}

func toDiscountBody(d *model.Discount) *discountBody {
	if d == nil {
		return nil
	}
	return &discountBody{
		Code:           d.Code,
		Percent:        d.Percent,
		OriginalAmount: d.OriginalAmount,
		DiscountAmount: d.DiscountAmount,
		FinalAmount:    d.FinalAmount,
	}
}

func decodeSelection(w http.ResponseWriter, r *http.Request) (checkoutRequest, model.PlanCode, error) {
	var req checkoutRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&req); err != nil {
		return req, "", domain.ErrInvalidArgument
	}
	plan, err := model.ParsePlanCode(req.Plan)
	if err != nil || !plan.IsPaid() {
		return req, "", domain.ErrInvalidArgument
	}
	return req, plan, nil
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	req, plan, err := decodeSelection(w, r)
	if err != nil {
		metrics.IncCheckout("invalid")
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	ctx := logging.WithUserID(r.Context(), req.UserID)

	res, err := s.d.Checkout.Checkout(ctx, usecase.CheckoutRequest{
		UserID:      req.UserID,
		Plan:        plan,
		Months:      req.Months,
		PackageCode: req.PackageCode,
		PromoCode:   req.PromoCode,
	})
	if err != nil {
		s.writeCheckoutError(w, r, err)
		return
	}

	p := res.Payment
	metrics.IncCheckout("created")
	if res.Discount != nil {
		metrics.IncPromoRedemption(string(model.RedemptionReserved))
	}
	body := checkoutResponse{
		MerchantTransID: p.MerchantTransID,
		Amount:          p.Amount,
		OriginalAmount:  p.OriginalAmount,
		Plan:            string(p.Plan),
		Discount:        toDiscountBody(res.Discount),
		PayURL:          res.PayURL,
	}
	if p.PackageCode != nil {
		body.PackageCode = *p.PackageCode
	} else {
		body.Months = p.Months
	}
	writeJSON(w, http.StatusCreated, body)
}

func (s *Server) writeCheckoutError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *domain.PromoError
	switch {
	case errors.As(err, &pe):
		metrics.IncCheckout("promo_rejected")
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: "promo rejected", Reason: string(pe.Kind)})
	case errors.Is(err, domain.ErrRateLimited):
		metrics.IncCheckout("rate_limited")
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many checkouts, try again later")
	case errors.Is(err, domain.ErrInvalidArgument):
		metrics.IncCheckout("invalid")
		writeError(w, http.StatusBadRequest, "invalid selection")
	case errors.Is(err, domain.ErrDuplicate):
		metrics.IncCheckout("duplicate")
		writeError(w, http.StatusConflict, "checkout already created")
	default:
		metrics.IncCheckout("error")
		logging.With(r.Context(), s.log).Error().Err(err).Msg("checkout failed")
		writeError(w, http.StatusInternalServerError, "checkout failed")
	}
}

type promoValidateResponse struct {
	Valid    bool          `json:"valid"`
	Reason   string        `json:"reason,omitempty"`
	Discount *discountBody `json:"discount,omitempty"`
}

// handlePromoValidate prices a selection with a promo applied, without reserving it.
func (s *Server) handlePromoValidate(w http.ResponseWriter, r *http.Request) {
	req, plan, err := decodeSelection(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id, err := model.NewMerchantTransID(req.UserID, plan, req.Months, req.PackageCode, time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selection")
		return
	}
	price, err := s.d.Catalog.Price(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid selection")
		return
	}

	d, err := s.d.Promo.Validate(r.Context(), req.PromoCode, plan, price)
	var pe *domain.PromoError
	switch {
	case errors.As(err, &pe):
		writeJSON(w, http.StatusOK, promoValidateResponse{Valid: false, Reason: string(pe.Kind)})
	case err != nil:
		logging.With(r.Context(), s.log).Error().Err(err).Msg("promo validation failed")
		writeError(w, http.StatusInternalServerError, "promo validation failed")
	default:
		writeJSON(w, http.StatusOK, promoValidateResponse{Valid: true, Discount: toDiscountBody(d)})
	}
}
