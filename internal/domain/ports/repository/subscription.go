package repository

import (
	"context"
	"time"

	"bds-membership/internal/domain/model"
)

// SubscriptionRepository is the port for member subscriptions.
type SubscriptionRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	Update(ctx context.Context, tx Tx, s *model.Subscription) error
	// ListDueForExpiry returns non-expired subscriptions whose term ended before now.
	ListDueForExpiry(ctx context.Context, tx Tx, now time.Time, limit int) ([]*model.Subscription, error)
	CountActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)
}
