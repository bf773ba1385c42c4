package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentConfirmation struct {
	Name        string
	PlanName    string
	Amount      decimal.Decimal
	Currency    string
	PaymentDate time.Time
	ExpiryDate  *time.Time
	InvoiceID   string
}

type Welcome struct {
	Name           string
	MembershipType string
	MemberID       string
}

type EventJoin struct {
	Name      string
	EventName string
	EventDate *time.Time
	EventCode string
	PricePaid decimal.Decimal
	Currency  string
}

// NotificationResult reports a delivery attempt. Senders never return an
// error from these calls; failures are reported here.
type NotificationResult struct {
	Success   bool
	MessageID string
	Error     string
}

// Notifier delivers member emails. Calls are best-effort.
type Notifier interface {
	SendPaymentConfirmation(ctx context.Context, to string, data PaymentConfirmation) NotificationResult
	SendWelcome(ctx context.Context, to string, data Welcome) NotificationResult
	SendEventJoin(ctx context.Context, to string, data EventJoin) NotificationResult
}
