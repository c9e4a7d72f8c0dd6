package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"balans-ai/internal/domain/model"
	"balans-ai/internal/infra/logging"
	"balans-ai/internal/infra/metrics"
	"balans-ai/internal/usecase"
)

const (
	clickPrepare  = model.ClickPrepare
	clickComplete = model.ClickComplete

	maxClickBody = 64 << 10
)

// handleClick always answers 200 with a Click reply; Click only reads the error code.
func (s *Server) handleClick(stage model.ClickStage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r.Body = http.MaxBytesReader(w, r.Body, maxClickBody)

		fields, err := clickFields(r)
		if err != nil {
			logging.With(r.Context(), s.log).Warn().Err(err).Str("stage", string(stage)).Msg("unreadable click request")
			fields = map[string]string{}
		}

		var res *usecase.ClickResult
		if stage == clickPrepare {
			res = s.d.Click.Prepare(r.Context(), fields)
		} else {
			res = s.d.Click.Complete(r.Context(), fields)
		}

		metrics.ObserveClickWebhook(string(stage), strconv.Itoa(res.Response.Error), time.Since(start).Seconds())
		if res.Prepared {
			metrics.IncPayment(string(model.PaymentStatusPrepared))
		}
		if res.Integrity {
			metrics.IncBillingIntegrityIncident("click_" + string(stage))
		}
		recordSettlement(res.Settlement)

		writeJSON(w, http.StatusOK, res.Response)
	}
}

// clickFields flattens a form, query or JSON body into single string values.
func clickFields(r *http.Request) (map[string]string, error) {
	fields := map[string]string{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return fields, err
		}
		for k, v := range raw {
			switch t := v.(type) {
			case nil:
			case string:
				fields[k] = t
			case json.Number:
				fields[k] = t.String()
			default:
				fields[k] = fmt.Sprint(t)
			}
		}
		for k, v := range r.URL.Query() {
			if _, ok := fields[k]; !ok && len(v) > 0 {
				fields[k] = v[0]
			}
		}
		return fields, nil
	}
	if err := r.ParseForm(); err != nil {
		return fields, err
	}
	for k, v := range r.Form {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields, nil
}

// recordSettlement counts the side effects of a status change.
func recordSettlement(st *usecase.Settlement) {
	if st == nil || !st.Changed || st.Payment == nil {
		return
	}
	p := st.Payment
	metrics.IncPayment(string(p.Status))
	if p.Status == model.PaymentStatusConfirmed {
		metrics.AddPaymentRevenue("uzs", p.Amount)
	}
	if a := st.Activation; a != nil {
		result := "applied"
		if !a.Applied {
			result = "kept"
		}
		metrics.IncTariffActivation(string(a.Requested), result)
	}
	if st.Package {
		metrics.IncTariffActivation("package", "granted")
	}
	if st.Redemption != "" {
		metrics.IncPromoRedemption(string(st.Redemption))
	}
}
