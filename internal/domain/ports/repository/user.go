package repository

import (
	"context"

	"bds-membership/internal/domain/model"
)

type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
	// UpdateMembership persists the membership columns of u.
	UpdateMembership(ctx context.Context, tx Tx, u *model.User) error
	SetMembershipStatus(ctx context.Context, tx Tx, userID, status string) error
}
