package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"bds-membership/internal/infra/metrics"
	"bds-membership/internal/usecase"
)

// ExpiryWorker periodically expires lapsed subscriptions via the use case.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	now      func() time.Time
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		now:      time.Now,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	// Run once on startup, then on every tick
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *ExpiryWorker) runOnce(ctx context.Context) int {
	n, err := w.subUC.ExpireDue(ctx, w.now())
	if err != nil {
		metrics.IncWorkerRun("expiry", "error")
		w.log.Error().Err(err).Msg("expiry worker error")
	} else {
		metrics.IncWorkerRun("expiry", "ok")
	}
	if n > 0 {
		w.log.Info().Int("count", n).Msg("subscriptions expired")
	}
	return n
}
