package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"bds-membership/internal/config"
	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/infra/metrics"
	"bds-membership/internal/infra/redis"
	"bds-membership/internal/usecase"
)

const reconcilerLockKey = "lock:payment_reconciler"

// PaymentReconciler periodically re-runs reconciliation for invoiced payments
// whose callback never arrived (member closed the tab, process crashed
// mid-callback). Only one replica sweeps at a time when a locker is set.
type PaymentReconciler struct {
	uc         usecase.ReconcileUseCase
	payments   repository.PendingPaymentRepository
	locker     redis.Locker // nil runs without coordination
	interval   time.Duration
	staleAfter time.Duration
	window     time.Duration
	batch      int
	now        func() time.Time
	log        *zerolog.Logger
}

func NewPaymentReconciler(uc usecase.ReconcileUseCase, payments repository.PendingPaymentRepository, locker redis.Locker, cfg config.SchedulerConfig, logger *zerolog.Logger) *PaymentReconciler {
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	w := &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		locker:     locker,
		interval:   cfg.ReconcileInterval,
		staleAfter: cfg.StaleAfter,
		window:     cfg.SweepWindow,
		batch:      cfg.BatchSize,
		now:        time.Now,
		log:        &l,
	}
	if w.interval <= 0 {
		w.interval = 10 * time.Minute
	}
	if w.staleAfter <= 0 {
		w.staleAfter = 30 * time.Minute
	}
	if w.window <= w.staleAfter {
		w.window = w.staleAfter + 72*time.Hour
	}
	if w.batch <= 0 {
		w.batch = 50
	}
	return w
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			if _, err := w.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.log.Error().Err(err).Msg("payment sweep failed")
			}
		}
	}
}

// Sweep reconciles one batch of stale payments and returns how many were
// confirmed.
func (w *PaymentReconciler) Sweep(ctx context.Context) (int, error) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Debug().Msg("another replica is sweeping; skipping")
				metrics.IncWorkerRun("payment_reconciler", "skipped")
				return 0, nil
			}
			metrics.IncWorkerRun("payment_reconciler", "error")
			return 0, err
		}
		defer func() {
			if err := w.locker.Unlock(context.WithoutCancel(ctx), reconcilerLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("failed to release reconciler lock")
			}
		}()
	}

	now := w.now()
	pending, err := w.payments.ListStaleUnpaid(ctx, repository.NoTX, now.Add(-w.window), now.Add(-w.staleAfter), w.batch)
	if err != nil {
		metrics.IncWorkerRun("payment_reconciler", "error")
		return 0, err
	}

	confirmed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		out, err := w.reconcile(ctx, p)
		l := logging.With(logging.WithPaymentID(ctx, p.ID), w.log)
		if err != nil {
			l.Error().Err(err).Str("invoice_id", p.InvoiceID).Msg("stale payment reconcile failed")
			continue
		}
		if out.State == model.ReconcileConfirmed {
			confirmed++
			l.Info().Str("invoice_id", out.InvoiceID).Str("amount", out.Amount.StringFixed(3)).Msg("stale payment confirmed")
		}
	}
	metrics.IncWorkerRun("payment_reconciler", "ok")
	if confirmed > 0 {
		w.log.Info().Int("checked", len(pending)).Int("confirmed", confirmed).Msg("payment sweep finished")
	}
	return confirmed, ctx.Err()
}

func (w *PaymentReconciler) reconcile(ctx context.Context, p *model.PendingPayment) (*usecase.ReconcileOutcome, error) {
	if p.EventID != nil && *p.EventID != "" {
		return w.uc.ReconcileEvent(ctx, usecase.EventCallback{
			EventID:    *p.EventID,
			UserID:     p.UserID,
			PaymentID:  p.ID,
			Background: true,
		})
	}
	return w.uc.ReconcileSubscription(ctx, usecase.SubscriptionCallback{PaymentID: p.ID, Background: true})
}
