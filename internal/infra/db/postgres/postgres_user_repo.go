package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := forUpdate(`
SELECT id, full_name, email, phone, mobile, membership_type, membership_status, membership_code, category, position,
       current_subscription_plan_id, current_subscription_plan_name, membership_expiry_date
  FROM users
 WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	u := &model.User{}
	if err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.Mobile, &u.MembershipType, &u.MembershipStatus, &u.MembershipCode, &u.Category, &u.Position,
		&u.CurrentPlanID, &u.CurrentPlanName, &u.MembershipExpiry); err != nil {
		return nil, scanErr(err)
	}
	return u, nil
}

func (r *userRepo) UpdateMembership(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
UPDATE users
   SET membership_type=$2, membership_status=$3, current_subscription_plan_id=$4, current_subscription_plan_name=$5,
       membership_expiry_date=$6, updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, u.ID, u.MembershipType, u.MembershipStatus, u.CurrentPlanID, u.CurrentPlanName, u.MembershipExpiry)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *userRepo) SetMembershipStatus(ctx context.Context, tx repository.Tx, userID, status string) error {
	const q = `UPDATE users SET membership_status=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, userID, status)
	if err != nil {
		return opErr(err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
