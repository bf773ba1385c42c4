// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// ExpireDue marks lapsed subscriptions expired and deactivates members
	// left without an active subscription. It returns how many expired.
	ExpireDue(ctx context.Context, now time.Time) (int, error)
}

const expiryBatchSize = 200

type subscriptionUC struct {
	subs  repository.SubscriptionRepository
	users repository.UserRepository
	tm    repository.TransactionManager
	log   *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, users repository.UserRepository, tm repository.TransactionManager, logger *zerolog.Logger) *subscriptionUC {
	l := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, users: users, tm: tm, log: &l}
}

func (u *subscriptionUC) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.ExpireDue")()

	total := 0
	for {
		due, err := u.subs.ListDueForExpiry(ctx, nil, now, expiryBatchSize)
		if err != nil {
			return total, fmt.Errorf("list due subscriptions: %w", err)
		}
		if len(due) == 0 {
			break
		}

		n := 0
		for _, s := range due {
			expired, err := u.expireOne(ctx, s.ID, now)
			if err != nil {
				u.log.Error().Err(err).Str("subscription_id", s.ID).Msg("failed to expire subscription")
				continue
			}
			if expired {
				n++
			}
		}
		total += n
		metrics.IncSubscriptionsExpired(n)
		// Rows that failed stay due; stop instead of spinning on them.
		if n == 0 || len(due) < expiryBatchSize {
			break
		}
	}
	if total > 0 {
		u.log.Info().Int("expired", total).Msg("subscriptions expired")
	}
	return total, nil
}

func (u *subscriptionUC) expireOne(ctx context.Context, id string, now time.Time) (bool, error) {
	var expired bool
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.subs.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if !s.Expire(now) {
			return nil
		}
		if err := u.subs.Update(ctx, tx, s); err != nil {
			return err
		}
		expired = true

		active, err := u.subs.CountActiveByUser(ctx, tx, s.UserID)
		if err != nil {
			return err
		}
		if active == 0 {
			return u.users.SetMembershipStatus(ctx, tx, s.UserID, model.MembershipStatusInactive)
		}
		return nil
	})
	return expired, err
}
