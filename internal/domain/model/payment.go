package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
)

// CurrencyBHD is the only currency the society invoices in. Amounts carry
// three fraction digits (fils).
const CurrencyBHD = "BHD"

type PaymentType string

const (
	PaymentTypeRegistration      PaymentType = "registration"
	PaymentTypeAnnual            PaymentType = "annual"
	PaymentTypeRenewal           PaymentType = "renewal"
	PaymentTypeCombined          PaymentType = "combined"
	PaymentTypeEventRegistration PaymentType = "event_registration"
)

// ParsePaymentType accepts both the short names and the legacy
// "subscription_" prefixed ones stored by older rows.
func ParsePaymentType(s string) (PaymentType, error) {
	t := PaymentType(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "subscription_"))
	if !t.Valid() {
		return "", domain.E(domain.ErrInvalidArgument, "Invalid payment type: "+s)
	}
	return t, nil
}

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeRegistration, PaymentTypeAnnual, PaymentTypeRenewal, PaymentTypeCombined, PaymentTypeEventRegistration:
		return true
	}
	return false
}

// CoversRegistration reports whether a payment of this type settles the
// one-time registration fee.
func (t PaymentType) CoversRegistration() bool {
	return t == PaymentTypeRegistration || t == PaymentTypeCombined
}

// CoversAnnual reports whether a payment of this type settles the annual fee.
func (t PaymentType) CoversAnnual() bool {
	return t == PaymentTypeAnnual || t == PaymentTypeRenewal || t == PaymentTypeCombined
}

// PendingPayment is the local record of a charge the member was asked to pay.
// It flips to Paid exactly once and is never deleted.
type PendingPayment struct {
	ID             string
	UserID         string
	SubscriptionID *string
	EventID        *string // set for event_registration payments
	Amount         decimal.Decimal
	Currency       string
	PaymentType    PaymentType
	Paid           bool
	PaidAt         *time.Time
	InvoiceID      string // gateway invoice id stored at execute time
	Reference      string // gateway reference stamped on confirmation
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BelongsTo reports whether the payment is tied to subscriptionID.
func (p *PendingPayment) BelongsTo(subscriptionID string) bool {
	return p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID
}

// NewPendingPayment validates and constructs an unpaid payment row.
func NewPendingPayment(id, userID string, subscriptionID *string, amount decimal.Decimal, t PaymentType) (*PendingPayment, error) {
	if id == "" || userID == "" || !t.Valid() || amount.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	return &PendingPayment{
		ID:             id,
		UserID:         userID,
		SubscriptionID: subscriptionID,
		Amount:         amount,
		Currency:       CurrencyBHD,
		PaymentType:    t,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

type HistoryStatus string

const (
	HistoryStatusCompleted HistoryStatus = "completed"
	HistoryStatusFailed    HistoryStatus = "failed"
)

// PaymentHistoryRecord is an append-only audit entry written for every
// verified outcome, success or failure.
type PaymentHistoryRecord struct {
	ID           string
	UserID       string
	PaymentID    string
	InvoiceID    string
	Amount       decimal.Decimal
	Currency     string
	Status       HistoryStatus
	PaymentFor   string
	Details      map[string]any
	ErrorMessage string
	CreatedAt    time.Time
}

// ReconcileState is where a callback ended up after reconciliation.
type ReconcileState string

const (
	ReconcilePending          ReconcileState = "pending"
	ReconcileVerifying        ReconcileState = "verifying"
	ReconcileConfirmed        ReconcileState = "confirmed"
	ReconcileFailed           ReconcileState = "failed"
	ReconcileUnverifiable     ReconcileState = "unverifiable"
	ReconcileAlreadyProcessed ReconcileState = "already_processed"
)

// Succeeded reports whether the member should land on a success page.
func (s ReconcileState) Succeeded() bool {
	return s == ReconcileConfirmed || s == ReconcileAlreadyProcessed
}

// RoundBHD rounds an amount to fils.
func RoundBHD(d decimal.Decimal) decimal.Decimal { return d.Round(3) }
