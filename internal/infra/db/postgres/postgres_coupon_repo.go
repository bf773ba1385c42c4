package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

var _ repository.CouponRepository = (*couponRepo)(nil)

type couponRepo struct{ pool *pgxpool.Pool }

func NewCouponRepo(pool *pgxpool.Pool) *couponRepo {
	return &couponRepo{pool: pool}
}

// FindActiveByCode expects code already normalized (upper case, trimmed).
func (r *couponRepo) FindActiveByCode(ctx context.Context, tx repository.Tx, eventID, code string) (*model.Coupon, error) {
	q := forUpdate(`
SELECT id, event_id, code, discount_type, discount_value, max_uses, used_count, valid_from, valid_until, is_active
  FROM event_coupons
 WHERE event_id=$1 AND UPPER(code)=$2 AND is_active
 LIMIT 1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, eventID, code)
	if err != nil {
		return nil, err
	}
	c := &model.Coupon{}
	var dt string
	if err := row.Scan(&c.ID, &c.EventID, &c.Code, &dt, &c.DiscountValue, &c.MaxUses, &c.UsedCount, &c.ValidFrom, &c.ValidUntil, &c.IsActive); err != nil {
		return nil, scanErr(err)
	}
	c.DiscountType = model.DiscountType(dt)
	return c, nil
}

func (r *couponRepo) IncrementUsed(ctx context.Context, tx repository.Tx, couponID string) error {
	const q = `UPDATE event_coupons SET used_count = used_count + 1 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, couponID)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SaveProvisionalUsage upserts on the partial unique index over unfinalized rows.
func (r *couponRepo) SaveProvisionalUsage(ctx context.Context, tx repository.Tx, u *model.CouponUsage) error {
	const q = `
INSERT INTO event_coupon_usages (id, coupon_id, event_id, user_id, event_member_id, amount_before, discount_amount, amount_after, payment_id, invoice_id, created_at)
VALUES ($1,$2,$3,$4,NULL,$5,$6,$7,'','',$8)
ON CONFLICT (coupon_id, event_id, user_id) WHERE event_member_id IS NULL DO UPDATE SET
  amount_before=EXCLUDED.amount_before, discount_amount=EXCLUDED.discount_amount,
  amount_after=EXCLUDED.amount_after, created_at=EXCLUDED.created_at;`
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := execSQL(ctx, r.pool, tx, q, u.ID, u.CouponID, u.EventID, u.UserID, u.AmountBefore, u.DiscountAmount, u.AmountAfter, u.CreatedAt)
	return opErr(err)
}

func (r *couponRepo) ListProvisionalUsages(ctx context.Context, tx repository.Tx, eventID, userID string) ([]*model.CouponUsage, error) {
	q := forUpdate(`
SELECT id, coupon_id, event_id, user_id, event_member_id, amount_before, discount_amount, amount_after, payment_id, invoice_id, created_at
  FROM event_coupon_usages
 WHERE event_id=$1 AND user_id=$2 AND event_member_id IS NULL
 ORDER BY created_at DESC`, tx)
	rows, err := queryRows(ctx, r.pool, tx, q, eventID, userID)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.CouponUsage
	for rows.Next() {
		u := &model.CouponUsage{}
		if err := rows.Scan(&u.ID, &u.CouponID, &u.EventID, &u.UserID, &u.EventMemberID, &u.AmountBefore, &u.DiscountAmount, &u.AmountAfter, &u.PaymentID, &u.InvoiceID, &u.CreatedAt); err != nil {
			return nil, scanErr(err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return out, nil
}

func (r *couponRepo) FinalizeUsage(ctx context.Context, tx repository.Tx, u *model.CouponUsage) (bool, error) {
	const q = `
UPDATE event_coupon_usages
   SET event_member_id=$2, payment_id=$3, invoice_id=$4
 WHERE id=$1 AND event_member_id IS NULL;`
	cmd, err := execSQL(ctx, r.pool, tx, q, u.ID, u.EventMemberID, u.PaymentID, u.InvoiceID)
	if err != nil {
		return false, opErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *couponRepo) DiscardProvisionalUsages(ctx context.Context, tx repository.Tx, eventID, userID, keepCouponID string) (int64, error) {
	const q = `
DELETE FROM event_coupon_usages
 WHERE event_id=$1 AND user_id=$2 AND event_member_id IS NULL AND coupon_id <> $3;`
	cmd, err := execSQL(ctx, r.pool, tx, q, eventID, userID, keepCouponID)
	if err != nil {
		return 0, opErr(err)
	}
	return cmd.RowsAffected(), nil
}

func (r *couponRepo) HasFinalizedUsage(ctx context.Context, tx repository.Tx, couponID, eventID, userID string) (bool, error) {
	return r.exists(ctx, tx, `SELECT EXISTS (SELECT 1 FROM event_coupon_usages WHERE coupon_id=$1 AND event_id=$2 AND user_id=$3 AND event_member_id IS NOT NULL);`, couponID, eventID, userID)
}

func (r *couponRepo) HasAnyUsage(ctx context.Context, tx repository.Tx, couponID, eventID, userID string) (bool, error) {
	return r.exists(ctx, tx, `SELECT EXISTS (SELECT 1 FROM event_coupon_usages WHERE coupon_id=$1 AND event_id=$2 AND user_id=$3);`, couponID, eventID, userID)
}

func (r *couponRepo) exists(ctx context.Context, tx repository.Tx, q string, args ...any) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}
