// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"bds-membership/internal/config"
	"bds-membership/internal/domain/ports/adapter"
	pg "bds-membership/internal/infra/db/postgres"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/infra/mailer"
	"bds-membership/internal/infra/metrics"
	"bds-membership/internal/infra/payment"
	red "bds-membership/internal/infra/redis"
	"bds-membership/internal/infra/sched"
	"bds-membership/internal/infra/web"
	"bds-membership/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, unredacted fields)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("service stopped")
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) error {
	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	// ---- Repositories ----
	repos := usecase.Repos{
		Payments:      pg.NewPendingPaymentRepo(pool),
		Subscriptions: pg.NewSubscriptionRepo(pool),
		Plans:         pg.NewPlanRepo(pool),
		Users:         pg.NewUserRepo(pool),
		Events:        pg.NewEventRepo(pool),
		EventMembers:  pg.NewEventMemberRepo(pool),
		Coupons:       pg.NewCouponRepo(pool),
		History:       pg.NewPaymentHistoryRepo(pool),
		Tx:            pg.NewTxManager(pool),
	}

	// ---- Redis (optional: caches, sweeper lock, rate limit) ----
	var (
		locker  red.Locker
		limiter web.RateLimiter
	)
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		repos.Plans = pg.NewPlanRepoCacheDecorator(repos.Plans, redisClient, cfg.Redis.TTL, logger)
		repos.Events = pg.NewEventRepoCacheDecorator(repos.Events, redisClient, 0, logger)
		locker = red.NewLocker(redisClient)
		limiter = red.NewRateLimiter(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; running without cache, sweeper lock or rate limiting")
	}

	// ---- Payment gateways (one merchant account per flow) ----
	mf := cfg.Payment.MyFatoorah
	gateways := usecase.Gateways{
		Subscription: payment.NewMyFatoorahGateway("subscription", mf.BaseURL, mf.SubscriptionAPIKey, mf.Timeout, logger),
		Event:        payment.NewMyFatoorahGateway("event", mf.BaseURL, mf.EventAPIKey, mf.Timeout, logger),
	}
	if mf.SubscriptionAPIKey == "" || mf.EventAPIKey == "" {
		logger.Warn().Bool("subscription_key", mf.SubscriptionAPIKey != "").Bool("event_key", mf.EventAPIKey != "").
			Msg("MyFatoorah API key missing; affected payments will be rejected")
	}

	// ---- Mail ----
	var notifier adapter.Notifier = mailer.NoopNotifier{}
	if cfg.SMTP.Host != "" {
		n, err := mailer.NewNotifier(mailer.NewSMTPSender(cfg.SMTP), cfg.SMTP.From, cfg.SMTP.FromName, logger)
		if err != nil {
			return err
		}
		notifier = n
	} else {
		logger.Warn().Msg("smtp.host not set; payment emails are disabled")
	}

	// ---- Use cases ----
	opts := usecase.Options{
		BaseURL: cfg.App.BaseURL,
		Retry: usecase.RetryPolicy{
			Retries:        cfg.Retry.Attempts,
			BaseDelay:      cfg.Retry.BaseDelay,
			AttemptTimeout: cfg.Retry.AttemptTimeout,
			IsTransient:    usecase.IsTransient,
		},
	}
	reconcileUC := usecase.NewReconcileUseCase(repos, gateways, notifier, opts, logger)
	invoiceUC := usecase.NewInvoiceUseCase(repos, gateways, opts, logger)
	couponUC := usecase.NewCouponUseCase(repos, opts, logger)
	historyUC := usecase.NewHistoryUseCase(repos.History, opts.Retry, logger)
	subUC := usecase.NewSubscriptionUseCase(repos.Subscriptions, repos.Users, repos.Tx, logger)

	// ---- HTTP ----
	srv := web.NewServer(web.Deps{
		Reconcile: reconcileUC,
		Invoices:  invoiceUC,
		Coupons:   couponUC,
		History:   historyUC,
		Limiter:   limiter,
		DB:        pool,
	}, *cfg, logger)
	httpServer := srv.NewHTTPServer()

	// ---- Workers ----
	reconciler := sched.NewPaymentReconciler(reconcileUC, repos.Payments, locker, cfg.Scheduler, logger)
	expiry := sched.NewExpiryWorker(cfg.Scheduler.ExpiryInterval, subUC, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error { return expiry.Run(gctx) })
	g.Go(func() error {
		pg.ReportPoolStats(gctx, pool, 15*time.Second)
		return nil
	})

	return g.Wait()
}
