//go:build !integration

package web

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bds-membership/internal/domain/model"
	"bds-membership/internal/usecase"
)

// --- Mock use cases ---

type mockReconcileUC struct {
	SubscriptionFunc func(ctx context.Context, cb usecase.SubscriptionCallback) (*usecase.ReconcileOutcome, error)
	EventFunc        func(ctx context.Context, cb usecase.EventCallback) (*usecase.ReconcileOutcome, error)
}

func (m *mockReconcileUC) ReconcileSubscription(ctx context.Context, cb usecase.SubscriptionCallback) (*usecase.ReconcileOutcome, error) {
	return m.SubscriptionFunc(ctx, cb)
}

func (m *mockReconcileUC) ReconcileEvent(ctx context.Context, cb usecase.EventCallback) (*usecase.ReconcileOutcome, error) {
	return m.EventFunc(ctx, cb)
}

type mockInvoiceUC struct {
	CreateSubscriptionFunc  func(ctx context.Context, req usecase.SubscriptionInvoiceRequest) (*usecase.InvoiceResult, error)
	ExecuteSubscriptionFunc func(ctx context.Context, req usecase.ExecuteSubscriptionRequest) (*usecase.PaymentRedirect, error)
	CreateEventFunc         func(ctx context.Context, req usecase.EventInvoiceRequest) (*usecase.InvoiceResult, error)
	ExecuteEventFunc        func(ctx context.Context, req usecase.ExecuteEventRequest) (*usecase.PaymentRedirect, error)
}

func (m *mockInvoiceUC) CreateSubscriptionInvoice(ctx context.Context, req usecase.SubscriptionInvoiceRequest) (*usecase.InvoiceResult, error) {
	return m.CreateSubscriptionFunc(ctx, req)
}

func (m *mockInvoiceUC) ExecuteSubscriptionPayment(ctx context.Context, req usecase.ExecuteSubscriptionRequest) (*usecase.PaymentRedirect, error) {
	return m.ExecuteSubscriptionFunc(ctx, req)
}

func (m *mockInvoiceUC) CreateEventInvoice(ctx context.Context, req usecase.EventInvoiceRequest) (*usecase.InvoiceResult, error) {
	return m.CreateEventFunc(ctx, req)
}

func (m *mockInvoiceUC) ExecuteEventPayment(ctx context.Context, req usecase.ExecuteEventRequest) (*usecase.PaymentRedirect, error) {
	return m.ExecuteEventFunc(ctx, req)
}

type mockCouponUC struct {
	ApplyFunc func(ctx context.Context, req usecase.ApplyCouponRequest) (*usecase.CouponQuote, error)
}

func (m *mockCouponUC) ApplyCoupon(ctx context.Context, req usecase.ApplyCouponRequest) (*usecase.CouponQuote, error) {
	return m.ApplyFunc(ctx, req)
}

type mockHistoryUC struct {
	ListFunc func(ctx context.Context, userID string, limit int) ([]*model.PaymentHistoryRecord, error)
}

func (m *mockHistoryUC) ListForUser(ctx context.Context, userID string, limit int) ([]*model.PaymentHistoryRecord, error) {
	return m.ListFunc(ctx, userID, limit)
}

// mockLimiter allows the first n calls per key.
type mockLimiter struct {
	mu    sync.Mutex
	n     int
	seen  map[string]int
	Err   error
	calls int
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Err != nil {
		return false, m.Err
	}
	if m.seen == nil {
		m.seen = map[string]int{}
	}
	m.seen[key]++
	return m.seen[key] <= m.n, nil
}

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}
