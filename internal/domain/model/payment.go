package model

import (
	"time"

	"balans-ai/internal/domain"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // created at checkout, user redirected to Click
	PaymentStatusPrepared  PaymentStatus = "prepared"  // Click prepare accepted
	PaymentStatusConfirmed PaymentStatus = "confirmed" // Click complete with error=0
	PaymentStatusCancelled PaymentStatus = "cancelled" // cancelled by Click, admin or checkout expiry
	PaymentStatusFailed    PaymentStatus = "failed"    // processor-side failure
)

func (s PaymentStatus) IsTerminal() bool {
	switch s {
	case PaymentStatusConfirmed, PaymentStatusCancelled, PaymentStatusFailed:
		return true
	}
	return false
}

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusPrepared || s.IsTerminal()
}

// CheckTransition validates from -> to. A repeat of the same terminal status is
// allowed (idempotent retry); moving between two terminal statuses is not.
func CheckTransition(from, to PaymentStatus) error {
	switch {
	case from == to && (to.IsTerminal() || to == PaymentStatusPrepared):
		return nil
	case from.IsTerminal():
		return domain.ErrStateConflict
	case to == PaymentStatusPrepared:
		if from != PaymentStatusPending {
			return domain.ErrStateConflict
		}
		return nil
	case to.IsTerminal():
		return nil
	}
	return domain.ErrStateConflict
}

const PaymentMethodClick = "click"

// Payment is one checkout attempt, keyed by our merchant transaction id.
type Payment struct {
	ID              int64
	MerchantTransID string
	ClickTransID    *string // assigned by prepare; unique once set
	UserID          int64
	Amount          int64 // charged amount in UZS, after discount
	OriginalAmount  int64
	DiscountPercent int
	DiscountAmount  int64
	PromoCode       *string
	Plan            PlanCode
	PackageCode     *string
	Months          int
	PaymentMethod   string
	Status          PaymentStatus
	ErrorCode       int
	ErrorNote       string
	PrepareTime     *time.Time
	CompleteTime    *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EntitlementEnd is when the plan bought by a confirmed payment lapses.
func (p *Payment) EntitlementEnd() (time.Time, bool) {
	if p == nil || p.Status != PaymentStatusConfirmed || p.CompleteTime == nil {
		return time.Time{}, false
	}
	months := p.Months
	if months <= 0 {
		months = 1
	}
	return p.CompleteTime.AddDate(0, 0, ActivationDays*months), true
}

// NewPendingPayment builds the ledger row written at checkout.
func NewPendingPayment(id MerchantTransID, amount int64, d *Discount) (*Payment, error) {
	if id.UserID <= 0 || !id.Plan.IsPaid() || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	p := &Payment{
		MerchantTransID: id.String(),
		UserID:          id.UserID,
		Amount:          amount,
		OriginalAmount:  amount,
		Plan:            id.Plan,
		Months:          id.MonthsOrDefault(),
		PaymentMethod:   PaymentMethodClick,
		Status:          PaymentStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if id.PackageCode != "" {
		pkg := id.PackageCode
		p.PackageCode = &pkg
	}
	if d != nil {
		code := d.Code
		p.PromoCode = &code
		p.OriginalAmount = d.OriginalAmount
		p.Amount = d.FinalAmount
		p.DiscountPercent = d.Percent
		p.DiscountAmount = d.DiscountAmount
	}
	return p, nil
}
