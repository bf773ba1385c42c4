package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

var _ repository.PendingPaymentRepository = (*pendingPaymentRepo)(nil)

type pendingPaymentRepo struct{ pool *pgxpool.Pool }

func NewPendingPaymentRepo(pool *pgxpool.Pool) *pendingPaymentRepo {
	return &pendingPaymentRepo{pool: pool}
}

const pendingPaymentCols = `id, user_id, subscription_id, event_id, amount, currency, payment_type, paid, paid_at, invoice_id, payment_reference, notes, created_at, updated_at`

func (r *pendingPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PendingPayment) error {
	const q = `
INSERT INTO membership_payments (
  id, user_id, subscription_id, event_id, amount, currency, payment_type, paid, paid_at, invoice_id, payment_reference, notes, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
  amount=$5, currency=$6, payment_type=$7, invoice_id=$10, notes=$12, updated_at=$14
  WHERE membership_payments.paid = FALSE;`

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.SubscriptionID, p.EventID, p.Amount, p.Currency, string(p.PaymentType), p.Paid, p.PaidAt, p.InvoiceID, p.Reference, p.Notes, p.CreatedAt, p.UpdatedAt)
	return opErr(err)
}

func (r *pendingPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PendingPayment, error) {
	q := forUpdate(`SELECT `+pendingPaymentCols+` FROM membership_payments WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPendingPayment(row)
}

// MarkPaid only touches unpaid rows, so a second confirmation is a no-op.
func (r *pendingPaymentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal, reference string, paidAt time.Time, note string) (bool, error) {
	const q = `
UPDATE membership_payments
   SET paid = TRUE,
       amount = $2,
       payment_reference = $3,
       paid_at = $4,
       notes = CASE WHEN $5 = '' THEN notes WHEN notes = '' THEN $5 ELSE notes || E'\n' || $5 END,
       updated_at = NOW()
 WHERE id = $1 AND paid = FALSE;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, amount, reference, paidAt, note)
	if err != nil {
		return false, opErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *pendingPaymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, id, invoiceID string) error {
	const q = `UPDATE membership_payments SET invoice_id=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, invoiceID)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pendingPaymentRepo) AppendNote(ctx context.Context, tx repository.Tx, id, note string) error {
	const q = `
UPDATE membership_payments
   SET notes = CASE WHEN notes = '' THEN $2 ELSE notes || E'\n' || $2 END,
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, note)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *pendingPaymentRepo) ListUnpaidBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.PendingPayment, error) {
	q := forUpdate(`SELECT `+pendingPaymentCols+` FROM membership_payments WHERE subscription_id=$1 AND paid=FALSE ORDER BY created_at ASC`, tx)
	return r.list(ctx, tx, q, subscriptionID)
}

// ListStaleUnpaid returns unpaid rows that reached the gateway (an invoice id
// was stored) but never came back, oldest first. Rows older than since are
// left to manual follow-up.
func (r *pendingPaymentRepo) ListStaleUnpaid(ctx context.Context, tx repository.Tx, since, before time.Time, limit int) ([]*model.PendingPayment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + pendingPaymentCols + ` FROM membership_payments WHERE paid=FALSE AND invoice_id <> '' AND created_at >= $1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3`
	return r.list(ctx, tx, q, since, before, limit)
}

func (r *pendingPaymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...any) ([]*model.PendingPayment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.PendingPayment
	for rows.Next() {
		p, err := scanPendingPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return out, nil
}

func scanPendingPayment(row pgx.Row) (*model.PendingPayment, error) {
	p := &model.PendingPayment{}
	var pt string
	if err := row.Scan(&p.ID, &p.UserID, &p.SubscriptionID, &p.EventID, &p.Amount, &p.Currency, &pt, &p.Paid, &p.PaidAt, &p.InvoiceID, &p.Reference, &p.Notes, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	// legacy rows may carry the "subscription_" prefix
	if t, err := model.ParsePaymentType(pt); err == nil {
		p.PaymentType = t
	} else {
		p.PaymentType = model.PaymentType(pt)
	}
	return p, nil
}
