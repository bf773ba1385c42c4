package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain/model"
)

// -----------------------------
// Pending payments
// -----------------------------

type PendingPaymentRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.PendingPayment, error)
	Save(ctx context.Context, tx Tx, p *model.PendingPayment) error
	// MarkPaid flips paid=false -> true. It reports false when the row was
	// already paid, leaving it untouched.
	MarkPaid(ctx context.Context, tx Tx, id string, amount decimal.Decimal, reference string, paidAt time.Time, note string) (bool, error)
	SetInvoiceID(ctx context.Context, tx Tx, id, invoiceID string) error
	AppendNote(ctx context.Context, tx Tx, id, note string) error
	ListUnpaidBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.PendingPayment, error)
	// ListStaleUnpaid returns invoiced unpaid rows created in [since, before),
	// oldest first.
	ListStaleUnpaid(ctx context.Context, tx Tx, since, before time.Time, limit int) ([]*model.PendingPayment, error)
}

// -----------------------------
// Payment history (append-only)
// -----------------------------

type PaymentHistoryRepository interface {
	Insert(ctx context.Context, tx Tx, r *model.PaymentHistoryRecord) error
	ListByUser(ctx context.Context, tx Tx, userID string, limit int) ([]*model.PaymentHistoryRecord, error)
}
