package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain/model"
)

type EventRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Event, error)
}

type EventMemberRepository interface {
	// ListByEventAndUser returns every seat for the pair, newest first.
	ListByEventAndUser(ctx context.Context, tx Tx, eventID, userID string) ([]*model.EventMember, error)
	Save(ctx context.Context, tx Tx, m *model.EventMember) error
	// MarkPaid settles an unpaid seat. It reports false if the seat was already paid.
	MarkPaid(ctx context.Context, tx Tx, id string, amount decimal.Decimal, category string) (bool, error)
}
