package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"bds-membership/internal/config"
	"bds-membership/internal/usecase"
)

// Pinger reports whether a dependency is reachable. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Reconcile usecase.ReconcileUseCase
	Invoices  usecase.InvoiceUseCase
	Coupons   usecase.CouponUseCase
	History   usecase.HistoryUseCase
	Auth      *AuthManager
	Limiter   RateLimiter // nil disables rate limiting
	DB        Pinger
}

type Server struct {
	reconcile usecase.ReconcileUseCase
	invoices  usecase.InvoiceUseCase
	coupons   usecase.CouponUseCase
	history   usecase.HistoryUseCase
	auth      *AuthManager
	limiter   RateLimiter
	db        Pinger
	cfg       config.Config
	log       *zerolog.Logger
}

func NewServer(deps Deps, cfg config.Config, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	auth := deps.Auth
	if auth == nil {
		auth = NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.CookieName)
	}
	return &Server{
		reconcile: deps.Reconcile,
		invoices:  deps.Invoices,
		coupons:   deps.Coupons,
		history:   deps.History,
		auth:      auth,
		limiter:   deps.Limiter,
		db:        deps.DB,
		cfg:       cfg,
		log:       &l,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, TraceID, RequestLog(s.log), Recover(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Timeout(s.cfg.Server.RequestTimeout), Session(s.auth))

		// Gateway redirects land here; they must never answer with JSON.
		r.Get("/payments/subscription/callback", s.handleSubscriptionCallback)
		r.Get("/payments/event/callback", s.handleEventCallback)

		invoiceLimit := RateLimit(s.limiter, "create-invoice", s.cfg.RateLimit.InvoicePerMinute, time.Minute, s.log)
		r.With(invoiceLimit).Post("/payments/subscription/create-invoice", s.handleCreateSubscriptionInvoice)
		r.With(invoiceLimit).Post("/payments/subscription/execute-payment", s.handleExecuteSubscriptionPayment)

		r.Group(func(r chi.Router) {
			r.Use(RequireMember)
			r.With(invoiceLimit).Post("/payments/event/create-invoice", s.handleCreateEventInvoice)
			r.With(invoiceLimit).Post("/payments/event/execute-payment", s.handleExecuteEventPayment)
			r.Post("/events/{eventID}/apply-coupon", s.handleApplyCoupon)
			r.Get("/payments/history", s.handleHistory)
		})
	})
	return r
}

// NewHTTPServer wraps the router with the configured timeouts.
func (s *Server) NewHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.Routes(),
		ReadTimeout:       s.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Server.WriteTimeout,
	}
}
