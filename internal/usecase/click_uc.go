// File: internal/usecase/click_uc.go
package usecase

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/domain/ports/repository"
	"balans-ai/internal/infra/logging"
)

// Compile-time check
var _ ClickUseCase = (*clickUC)(nil)

// ClickUseCase runs the two-phase Click handshake. Both methods always produce
// a reply; the reply's error code is the only signal Click acts on.
type ClickUseCase interface {
	Prepare(ctx context.Context, fields map[string]string) *ClickResult
	Complete(ctx context.Context, fields map[string]string) *ClickResult
}

// ClickResult is the reply plus what happened to the ledger, for metrics.
type ClickResult struct {
	Response   *model.ClickResponse
	Prepared   bool
	Settlement *Settlement
	// Integrity is set when a critical write failed after all retries.
	Integrity bool
}

type ClickSettings struct {
	ServiceID  string
	MerchantID string
	MinAmount  int64
}

// Reply notes sent to Click.
const (
	noteSuccess         = "Success"
	noteMissingField    = "Error in request from click"
	noteSignFailed      = "SIGN CHECK FAILED!"
	noteServiceNotFound = "Service not found"
	noteMerchantMissing = "Merchant not found"
	noteBadAmount       = "Incorrect parameter amount"
	noteBadAction       = "Action not found"
	noteTxNotFound      = "Transaction not found"
	noteTxConflict      = "Transaction conflict"
	noteTxCancelled     = "Transaction cancelled"
	noteInternal        = "Internal error"
)

var clickActions = []int{model.ClickActionPrepare, model.ClickActionComplete}

type clickUC struct {
	settings   ClickSettings
	verifier   adapter.SignatureVerifier
	payments   repository.PaymentRepository
	settlement SettlementUseCase
	notifier   NotificationUseCase
	log        *zerolog.Logger
	ids        prepareIDs
}

func NewClickUseCase(
	settings ClickSettings,
	verifier adapter.SignatureVerifier,
	payments repository.PaymentRepository,
	settlement SettlementUseCase,
	notifier NotificationUseCase,
	logger *zerolog.Logger,
) *clickUC {
	l := logger.With().Str("component", "click_uc").Logger()
	return &clickUC{
		settings:   settings,
		verifier:   verifier,
		payments:   payments,
		settlement: settlement,
		notifier:   notifier,
		log:        &l,
	}
}

// clickCall is a request that passed the common checks.
type clickCall struct {
	stage        model.ClickStage
	clickTransID string
	merchantKey  string
	amount       decimal.Decimal
	action       int
	processorErr int
}

func (u *clickUC) Prepare(ctx context.Context, fields map[string]string) *ClickResult {
	defer logging.TraceDuration(u.log, "ClickUC.Prepare")()
	fields = NormalizeClickFields(fields)
	res := &ClickResult{}
	id := u.ids.next()
	resp := newClickResponse(model.ClickPrepare, fields, id)
	res.Response = resp

	call, code, note := u.check(model.ClickPrepare, fields)
	if code != model.ClickOK {
		return res.reject(code, note)
	}
	ctx = logging.WithClickTransID(logging.WithMerchantTransID(ctx, call.merchantKey), call.clickTransID)
	log := logging.With(ctx, u.log)

	if _, err := model.ParseMerchantTransID(call.merchantKey); err != nil {
		log.Warn().Err(err).Msg("prepare for malformed merchant id")
		return res.reject(model.ClickTransactionErr, noteTxNotFound)
	}

	p, err := u.payments.FindByMerchantTransID(ctx, repository.NoTX, call.merchantKey)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return res.reject(model.ClickTransactionErr, noteTxNotFound)
	case err != nil:
		log.Error().Err(err).Msg("ledger lookup failed on prepare; answering from checks")
		return res.ok()
	}
	if !call.amount.Equal(decimal.NewFromInt(p.Amount)) {
		log.Warn().Str("amount", call.amount.String()).Int64("expected", p.Amount).Msg("prepare amount mismatch")
		return res.reject(model.ClickAmountInvalid, noteBadAmount)
	}
	if p.Status == model.PaymentStatusCancelled || p.Status == model.PaymentStatusFailed {
		return res.reject(model.ClickTransactionErr, noteTxCancelled)
	}

	_, err = u.payments.MarkPrepared(ctx, repository.NoTX, call.merchantKey, call.clickTransID, time.Now())
	switch {
	case errors.Is(err, domain.ErrStateConflict):
		log.Warn().Str("stored_click_trans_id", lo.FromPtr(p.ClickTransID)).Msg("prepare with a different click id rejected")
		return res.reject(model.ClickTransactionErr, noteTxConflict)
	case errors.Is(err, domain.ErrNotFound):
		return res.reject(model.ClickTransactionErr, noteTxNotFound)
	case err != nil:
		// Nothing irreversible happened yet; complete will find the row by merchant id.
		log.Error().Err(err).Msg("mark prepared failed; answering from checks")
		return res.ok()
	}
	res.Prepared = true
	log.Info().Int64("merchant_prepare_id", id).Msg("payment prepared")
	return res.ok()
}

func (u *clickUC) Complete(ctx context.Context, fields map[string]string) *ClickResult {
	defer logging.TraceDuration(u.log, "ClickUC.Complete")()
	fields = NormalizeClickFields(fields)
	res := &ClickResult{}
	resp := newClickResponse(model.ClickComplete, fields, u.ids.next())
	res.Response = resp

	call, code, note := u.check(model.ClickComplete, fields)
	if code != model.ClickOK {
		return res.reject(code, note)
	}
	ctx = logging.WithClickTransID(ctx, call.clickTransID)

	if call.merchantKey == "" {
		p, err := u.payments.FindByClickTransID(ctx, repository.NoTX, call.clickTransID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return res.reject(model.ClickTransactionErr, noteTxNotFound)
		case err != nil:
			logging.With(ctx, u.log).Error().Err(err).Msg("recover merchant id by click id failed")
			return res.reject(model.ClickTransactionErr, noteInternal)
		}
		call.merchantKey = p.MerchantTransID
		resp.MerchantTransID = p.MerchantTransID
	}
	ctx = logging.WithMerchantTransID(ctx, call.merchantKey)
	log := logging.With(ctx, u.log)

	id, err := model.ParseMerchantTransID(call.merchantKey)
	if err != nil {
		log.Warn().Err(err).Msg("complete for malformed merchant id")
		return res.reject(model.ClickTransactionErr, noteTxNotFound)
	}
	ctx = logging.WithUserID(ctx, id.UserID)

	req := SettleRequest{ID: id, Key: call.merchantKey, ClickTransID: call.clickTransID}
	if call.processorErr != 0 {
		req.Status = model.PaymentStatusCancelled
		if call.processorErr < model.ClickProcessorFailureThreshold {
			req.Status = model.PaymentStatusFailed
		}
		req.ErrorCode, req.ErrorNote = call.processorErr, noteTxCancelled
	} else {
		req.Status, req.ErrorNote = model.PaymentStatusConfirmed, noteSuccess
		if call.amount.IsInteger() {
			amt := call.amount.IntPart()
			req.ExpectAmount = &amt
		} else {
			return res.reject(model.ClickAmountInvalid, noteBadAmount)
		}
	}

	s, err := u.settlement.Settle(ctx, req)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return res.reject(model.ClickTransactionErr, noteTxNotFound)
	case errors.Is(err, domain.ErrStateConflict):
		log.Warn().Str("requested", string(req.Status)).Msg("complete conflicts with the stored status or click id")
		return res.reject(model.ClickTransactionErr, noteTxConflict)
	case errors.Is(err, domain.ErrAmountMismatch):
		log.Warn().Str("amount", call.amount.String()).Msg("complete amount mismatch")
		return res.reject(model.ClickAmountInvalid, noteBadAmount)
	case err != nil:
		res.Integrity = domain.IsStorage(err)
		if !res.Integrity {
			log.Error().Err(err).Msg("settlement failed")
		}
		return res.reject(model.ClickTransactionErr, noteInternal)
	}
	res.Settlement = s

	if s.Changed {
		log.Info().
			Str("status", string(req.Status)).
			Int("click_error", call.processorErr).
			Msg("payment settled")
		u.notifier.PaymentSettled(ctx, s)
	}
	res.ok()
	if req.Status != model.PaymentStatusConfirmed {
		resp.ErrorNote = noteTxCancelled
	}
	return res
}

// check runs the checks shared by both stages, in the order Click expects
// them: fields, signature, service, merchant, amount, action.
func (u *clickUC) check(stage model.ClickStage, fields map[string]string) (*clickCall, int, string) {
	for _, f := range model.ClickRequiredFields[stage] {
		if strings.TrimSpace(fields[f]) == "" {
			return nil, model.ClickMissingField, noteMissingField
		}
	}
	if err := u.verifier.Verify(stage, fields); err != nil {
		if errors.Is(err, domain.ErrMissingField) {
			return nil, model.ClickMissingField, noteMissingField
		}
		u.log.Warn().
			Str("stage", string(stage)).
			Str("click_trans_id", fields[model.ClickFieldTransID]).
			Str("merchant_trans_id", fields[model.ClickFieldMerchantTransID]).
			Msg("signature check failed")
		return nil, model.ClickSignatureFailed, noteSignFailed
	}
	if strings.TrimSpace(fields[model.ClickFieldServiceID]) != u.settings.ServiceID {
		return nil, model.ClickNotFound, noteServiceNotFound
	}
	if m := strings.TrimSpace(fields[model.ClickFieldMerchantID]); m != "" && m != u.settings.MerchantID {
		return nil, model.ClickNotFound, noteMerchantMissing
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(fields[model.ClickFieldAmount]))
	if err != nil || !amount.GreaterThan(decimal.NewFromInt(u.settings.MinAmount)) || !amount.IsPositive() {
		return nil, model.ClickAmountInvalid, noteBadAmount
	}
	action, err := strconv.Atoi(strings.TrimSpace(fields[model.ClickFieldAction]))
	if err != nil || !lo.Contains(clickActions, action) {
		return nil, model.ClickActionNotFound, noteBadAction
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(fields[model.ClickFieldTransID]), 10, 64); err != nil {
		return nil, model.ClickMissingField, noteMissingField
	}

	call := &clickCall{
		stage:        stage,
		clickTransID: strings.TrimSpace(fields[model.ClickFieldTransID]),
		merchantKey:  strings.TrimSpace(fields[model.ClickFieldMerchantTransID]),
		amount:       amount,
		action:       action,
	}
	if stage == model.ClickComplete {
		if call.processorErr, err = strconv.Atoi(strings.TrimSpace(fields[model.ClickFieldError])); err != nil {
			return nil, model.ClickMissingField, noteMissingField
		}
	}
	return call, model.ClickOK, ""
}

// NormalizeClickFields folds the legacy transaction_param alias into
// merchant_trans_id. Signatures are computed over merchant_trans_id.
func NormalizeClickFields(fields map[string]string) map[string]string {
	if fields == nil {
		return map[string]string{}
	}
	if strings.TrimSpace(fields[model.ClickFieldMerchantTransID]) == "" {
		if v := strings.TrimSpace(fields[model.ClickFieldTransactionParam]); v != "" {
			fields[model.ClickFieldMerchantTransID] = v
		}
	}
	return fields
}

func newClickResponse(stage model.ClickStage, fields map[string]string, id int64) *model.ClickResponse {
	resp := &model.ClickResponse{
		MerchantTransID: strings.TrimSpace(fields[model.ClickFieldMerchantTransID]),
	}
	resp.ClickTransID, _ = strconv.ParseInt(strings.TrimSpace(fields[model.ClickFieldTransID]), 10, 64)
	if stage == model.ClickPrepare {
		resp.MerchantPrepareID = &id
	} else {
		resp.MerchantConfirmID = &id
	}
	return resp
}

func (r *ClickResult) ok() *ClickResult {
	r.Response.Error, r.Response.ErrorNote = model.ClickOK, noteSuccess
	return r
}

func (r *ClickResult) reject(code int, note string) *ClickResult {
	r.Response.Error, r.Response.ErrorNote = code, note
	zero := int64(0)
	if r.Response.MerchantPrepareID != nil {
		r.Response.MerchantPrepareID = &zero
	} else {
		r.Response.MerchantConfirmID = &zero
	}
	return r
}

// prepareIDs hands out ids unique per call: unix millis scaled by 1000 plus a
// rolling sequence.
type prepareIDs struct {
	seq atomic.Uint32
}

func (p *prepareIDs) next() int64 {
	return time.Now().UnixMilli()*1000 + int64(p.seq.Add(1)%1000)
}
