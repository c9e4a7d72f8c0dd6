package adapter

import "balans-ai/internal/domain/model"

// SignatureVerifier checks the keyed digest Click attaches to each webhook.
// It returns a *domain.ValidationError for a missing signed field and
// domain.ErrSignatureInvalid for a mismatch.
type SignatureVerifier interface {
	Verify(stage model.ClickStage, fields map[string]string) error
}

// PayURLBuilder renders the hosted Click checkout link for a pending payment.
type PayURLBuilder interface {
	PayURL(merchantTransID string, amount int64) string
}
