package repository

import (
	"context"

	"bds-membership/internal/domain/model"
)

type SubscriptionPlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPlan, error)
}
