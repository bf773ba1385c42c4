package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

var _ repository.PaymentHistoryRepository = (*paymentHistoryRepo)(nil)

type paymentHistoryRepo struct{ pool *pgxpool.Pool }

func NewPaymentHistoryRepo(pool *pgxpool.Pool) *paymentHistoryRepo {
	return &paymentHistoryRepo{pool: pool}
}

func (r *paymentHistoryRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.PaymentHistoryRecord) error {
	const q = `
INSERT INTO payment_history (id, user_id, payment_id, invoice_id, amount, currency, status, payment_for, details, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11);`

	details := []byte("{}")
	if len(rec.Details) > 0 {
		b, err := json.Marshal(rec.Details)
		if err != nil {
			return err
		}
		details = b
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, q, rec.ID, rec.UserID, rec.PaymentID, rec.InvoiceID, rec.Amount, rec.Currency, string(rec.Status), rec.PaymentFor, details, rec.ErrorMessage, rec.CreatedAt)
	return opErr(err)
}

func (r *paymentHistoryRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentHistoryRecord, error) {
	const q = `
SELECT id, user_id, payment_id, invoice_id, amount, currency, status, payment_for, details, error_message, created_at
  FROM payment_history
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentHistoryRecord
	for rows.Next() {
		rec := &model.PaymentHistoryRecord{}
		var status string
		var details []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.PaymentID, &rec.InvoiceID, &rec.Amount, &rec.Currency, &status, &rec.PaymentFor, &details, &rec.ErrorMessage, &rec.CreatedAt); err != nil {
			return nil, scanErr(err)
		}
		rec.Status = model.HistoryStatus(status)
		if len(details) > 0 {
			_ = json.Unmarshal(details, &rec.Details)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return out, nil
}
