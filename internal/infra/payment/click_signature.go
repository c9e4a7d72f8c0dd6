package payment

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog"

	"balans-ai/internal/domain"
	"balans-ai/internal/domain/model"
	"balans-ai/internal/domain/ports/adapter"
	"balans-ai/internal/infra/metrics"
)

var _ adapter.SignatureVerifier = (*ClickSignature)(nil)

// ClickSignature verifies sign_string on Click webhooks:
//
//	md5(click_trans_id + service_id + secret + merchant_trans_id +
//	    [merchant_prepare_id] + amount + action + sign_time)
//
// merchant_prepare_id is folded in on complete only.
type ClickSignature struct {
	secret string
	skip   bool
	log    *zerolog.Logger
}

// NewClickSignature builds a verifier. skip turns digest mismatches into
// warnings and must only be enabled for diagnostics.
func NewClickSignature(secret string, skip bool, logger *zerolog.Logger) *ClickSignature {
	l := logger.With().Str("component", "click_signature").Logger()
	if skip {
		l.Warn().Msg("click signature enforcement is DISABLED")
	}
	return &ClickSignature{secret: secret, skip: skip, log: &l}
}

// Sign computes the expected digest for stage. Missing fields are treated as empty.
func (s *ClickSignature) Sign(stage model.ClickStage, fields map[string]string) string {
	var b strings.Builder
	b.WriteString(fields[model.ClickFieldTransID])
	b.WriteString(fields[model.ClickFieldServiceID])
	b.WriteString(s.secret)
	b.WriteString(fields[model.ClickFieldMerchantTransID])
	if stage == model.ClickComplete {
		b.WriteString(fields[model.ClickFieldMerchantPrepareID])
	}
	b.WriteString(fields[model.ClickFieldAmount])
	b.WriteString(fields[model.ClickFieldAction])
	b.WriteString(fields[model.ClickFieldSignTime])

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify fails closed: every signed field must be present and the digest must match.
func (s *ClickSignature) Verify(stage model.ClickStage, fields map[string]string) error {
	for _, f := range signedFields(stage) {
		if strings.TrimSpace(fields[f]) == "" {
			return &domain.ValidationError{Field: f}
		}
	}

	want := s.Sign(stage, fields)
	got := strings.ToLower(strings.TrimSpace(fields[model.ClickFieldSignString]))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1 {
		return nil
	}

	if s.skip {
		metrics.IncSignatureBypass(string(stage))
		s.log.Warn().
			Str("stage", string(stage)).
			Str("click_trans_id", fields[model.ClickFieldTransID]).
			Str("merchant_trans_id", fields[model.ClickFieldMerchantTransID]).
			Msg("signature mismatch ignored: bypass enabled")
		return nil
	}
	return domain.ErrSignatureInvalid
}

func signedFields(stage model.ClickStage) []string {
	fields := []string{
		model.ClickFieldTransID,
		model.ClickFieldServiceID,
		model.ClickFieldAmount,
		model.ClickFieldAction,
		model.ClickFieldSignTime,
		model.ClickFieldSignString,
	}
	switch stage {
	case model.ClickPrepare:
		fields = append(fields, model.ClickFieldMerchantTransID)
	case model.ClickComplete:
		fields = append(fields, model.ClickFieldMerchantPrepareID)
	}
	return fields
}
