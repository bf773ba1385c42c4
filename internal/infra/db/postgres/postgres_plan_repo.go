package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.SubscriptionPlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	const q = `
SELECT id, name, display_name, registration_fee, annual_fee, registration_waived, annual_waived, duration_months
  FROM subscription_plans
 WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var p model.SubscriptionPlan
	if err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.RegistrationFee, &p.AnnualFee, &p.RegistrationWaived, &p.AnnualWaived, &p.DurationMonths); err != nil {
		return nil, scanErr(err)
	}
	return &p, nil
}
