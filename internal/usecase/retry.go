package usecase

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgconn"

	"bds-membership/internal/domain"
	"bds-membership/internal/infra/metrics"
)

// RetryPolicy bounds how reads against the database are retried.
// Writes never go through it.
type RetryPolicy struct {
	Retries        int           // retries after the first attempt
	BaseDelay      time.Duration // doubled after every retry
	AttemptTimeout time.Duration // per-attempt deadline
	IsTransient    func(error) bool

	// Sleep waits between attempts; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy retries three times after 1s, 2s and 4s, giving each
// attempt 15s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Retries:        3,
		BaseDelay:      time.Second,
		AttemptTimeout: 15 * time.Second,
		IsTransient:    IsTransient,
		Sleep:          sleepCtx,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	d := DefaultRetryPolicy()
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = d.AttemptTimeout
	}
	if p.IsTransient == nil {
		p.IsTransient = d.IsTransient
	}
	if p.Sleep == nil {
		p.Sleep = d.Sleep
	}
	return p
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// retries are spent. Exhausted transient failures surface as ErrUnavailable.
func Retry[T any](ctx context.Context, p RetryPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()
	var zero T
	delay := p.BaseDelay
	for attempt := 0; ; attempt++ {
		v, err := runAttempt(ctx, p.AttemptTimeout, fn)
		if err == nil {
			return v, nil
		}
		if !p.IsTransient(err) {
			return zero, err
		}
		if attempt >= p.Retries {
			return zero, domain.Wrap(domain.ErrUnavailable, "Database connection timeout. Please try again in a moment.", err)
		}
		metrics.IncDBRetry(op)
		if serr := p.Sleep(ctx, delay); serr != nil {
			return zero, domain.Wrap(domain.ErrUnavailable, "Request cancelled while waiting for the database", serr)
		}
		delay *= 2
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

// IsTransient reports whether err looks like a connection problem worth
// retrying: timeouts, refused connections, connect timeouts.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidArgument) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception
		return strings.HasPrefix(pgErr.Code, "08")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ECONNREFUSED) || pgconn.Timeout(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"timeout", "econnrefused", "connection refused", "connecttimeouterror"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
