package repository

import (
	"context"

	"bds-membership/internal/domain/model"
)

type CouponRepository interface {
	FindActiveByCode(ctx context.Context, tx Tx, eventID, code string) (*model.Coupon, error)
	IncrementUsed(ctx context.Context, tx Tx, couponID string) error

	// SaveProvisionalUsage records (or refreshes) the unfinalized usage for
	// the coupon/event/user triple.
	SaveProvisionalUsage(ctx context.Context, tx Tx, u *model.CouponUsage) error
	// ListProvisionalUsages returns unfinalized usages for the pair, newest first.
	ListProvisionalUsages(ctx context.Context, tx Tx, eventID, userID string) ([]*model.CouponUsage, error)
	// FinalizeUsage links a provisional usage to its seat. It reports false
	// when the usage was already finalized.
	FinalizeUsage(ctx context.Context, tx Tx, u *model.CouponUsage) (bool, error)
	// DiscardProvisionalUsages deletes the pair's unfinalized usages of any
	// coupon other than keepCouponID. An empty keepCouponID discards them all.
	DiscardProvisionalUsages(ctx context.Context, tx Tx, eventID, userID, keepCouponID string) (int64, error)
	HasFinalizedUsage(ctx context.Context, tx Tx, couponID, eventID, userID string) (bool, error)
	HasAnyUsage(ctx context.Context, tx Tx, couponID, eventID, userID string) (bool, error)
}
