package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, subscription_plan_id, subscription_plan_name, status, registration_paid, annual_paid,
       registration_payment_id, annual_payment_id, started_at, expires_at, created_at, updated_at`

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := forUpdate(`SELECT `+subscriptionCols+` FROM user_subscriptions WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanSub(row)
}

func (r *subscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
UPDATE user_subscriptions
   SET status=$2, registration_paid=$3, annual_paid=$4, registration_payment_id=$5, annual_payment_id=$6,
       started_at=$7, expires_at=$8, updated_at=$9
 WHERE id=$1;`
	s.UpdatedAt = time.Now().UTC()
	cmd, err := execSQL(ctx, r.pool, tx, q, s.ID, string(s.Status), s.RegistrationPaid, s.AnnualPaid, s.RegistrationPaymentID, s.AnnualPaymentID, s.StartedAt, s.ExpiresAt, s.UpdatedAt)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *subscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT ` + subscriptionCols + `
  FROM user_subscriptions
 WHERE status <> 'expired' AND expires_at IS NOT NULL AND expires_at < $1
 ORDER BY expires_at ASC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, now, limit)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()
	var out []*model.Subscription
	for rows.Next() {
		s, err := scanSub(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return out, nil
}

func (r *subscriptionRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	const q = `SELECT COUNT(*) FROM user_subscriptions WHERE user_id=$1 AND status='active';`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, scanErr(err)
	}
	return n, nil
}

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &s.PlanName, &status, &s.RegistrationPaid, &s.AnnualPaid,
		&s.RegistrationPaymentID, &s.AnnualPaymentID, &s.StartedAt, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}
