package usecase

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

// Compile-time check
var _ HistoryUseCase = (*historyUC)(nil)

type HistoryUseCase interface {
	ListForUser(ctx context.Context, userID string, limit int) ([]*model.PaymentHistoryRecord, error)
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type historyUC struct {
	history repository.PaymentHistoryRepository
	retry   RetryPolicy
	log     *zerolog.Logger
}

func NewHistoryUseCase(history repository.PaymentHistoryRepository, retry RetryPolicy, logger *zerolog.Logger) *historyUC {
	l := logger.With().Str("component", "HistoryUC").Logger()
	return &historyUC{history: history, retry: retry, log: &l}
}

func (u *historyUC) ListForUser(ctx context.Context, userID string, limit int) ([]*model.PaymentHistoryRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.E(domain.ErrInvalidArgument, "user is required")
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	return Retry(ctx, u.retry, "payment_history.list", func(ctx context.Context) ([]*model.PaymentHistoryRecord, error) {
		return u.history.ListByUser(ctx, nil, userID, limit)
	})
}
