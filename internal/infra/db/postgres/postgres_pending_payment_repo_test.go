//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

func TestPendingPaymentRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewPendingPaymentRepo(testPool)
	subID := "sub-1"

	newPayment := func(t *testing.T, pt model.PaymentType, created time.Time) *model.PendingPayment {
		t.Helper()
		p := &model.PendingPayment{
			ID:             uuid.NewString(),
			UserID:         "user-1",
			SubscriptionID: &subID,
			Amount:         decimal.RequireFromString("30.000"),
			Currency:       model.CurrencyBHD,
			PaymentType:    pt,
			CreatedAt:      created,
		}
		if err := repo.Save(ctx, repository.NoTX, p); err != nil {
			t.Fatalf("Failed to save payment: %v", err)
		}
		return p
	}

	t.Run("should save and find a payment", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		p := newPayment(t, model.PaymentTypeAnnual, time.Now())

		found, err := repo.FindByID(ctx, nil, p.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.PaymentType != model.PaymentTypeAnnual || !found.Amount.Equal(p.Amount) || found.Paid {
			t.Errorf("unexpected row %+v", found)
		}
		if _, err := repo.FindByID(ctx, nil, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("legacy prefixed payment types are normalized", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		if _, err := testPool.Exec(ctx, `INSERT INTO membership_payments (id, user_id, subscription_id, amount, payment_type) VALUES ('legacy', 'user-1', 'sub-1', 10, 'subscription_registration')`); err != nil {
			t.Fatal(err)
		}
		found, err := repo.FindByID(ctx, nil, "legacy")
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if found.PaymentType != model.PaymentTypeRegistration {
			t.Errorf("expected registration, got %q", found.PaymentType)
		}
	})

	t.Run("MarkPaid flips once", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		p := newPayment(t, model.PaymentTypeAnnual, time.Now())
		paidAt := time.Now().UTC().Truncate(time.Second)

		ok, err := repo.MarkPaid(ctx, nil, p.ID, decimal.RequireFromString("30"), "7007", paidAt, "confirmed by callback")
		if err != nil || !ok {
			t.Fatalf("first MarkPaid: ok=%v err=%v", ok, err)
		}
		ok, err = repo.MarkPaid(ctx, nil, p.ID, decimal.RequireFromString("99"), "8008", paidAt, "again")
		if err != nil || ok {
			t.Fatalf("second MarkPaid should be a no-op: ok=%v err=%v", ok, err)
		}

		found, _ := repo.FindByID(ctx, nil, p.ID)
		if !found.Paid || found.Reference != "7007" || !found.Amount.Equal(decimal.RequireFromString("30")) {
			t.Errorf("unexpected row after MarkPaid: %+v", found)
		}
		if found.Notes != "confirmed by callback" {
			t.Errorf("unexpected notes %q", found.Notes)
		}
	})

	t.Run("notes append and invoice id is stored", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		p := newPayment(t, model.PaymentTypeRegistration, time.Now())

		if err := repo.SetInvoiceID(ctx, nil, p.ID, "5005"); err != nil {
			t.Fatalf("SetInvoiceID: %v", err)
		}
		_ = repo.AppendNote(ctx, nil, p.ID, "first")
		_ = repo.AppendNote(ctx, nil, p.ID, "second")

		found, _ := repo.FindByID(ctx, nil, p.ID)
		if found.InvoiceID != "5005" || found.Notes != "first\nsecond" {
			t.Errorf("unexpected row %+v", found)
		}
		if err := repo.SetInvoiceID(ctx, nil, "missing", "1"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unpaid siblings and stale rows", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		old := time.Now().Add(-2 * time.Hour)
		reg := newPayment(t, model.PaymentTypeRegistration, old)
		annual := newPayment(t, model.PaymentTypeAnnual, old)
		fresh := newPayment(t, model.PaymentTypeCombined, time.Now())
		_ = repo.SetInvoiceID(ctx, nil, reg.ID, "1")
		_ = repo.SetInvoiceID(ctx, nil, fresh.ID, "2")
		_, _ = repo.MarkPaid(ctx, nil, annual.ID, annual.Amount, "x", time.Now(), "")

		siblings, err := repo.ListUnpaidBySubscription(ctx, nil, subID)
		if err != nil {
			t.Fatalf("ListUnpaidBySubscription: %v", err)
		}
		if len(siblings) != 2 {
			t.Errorf("expected 2 unpaid rows, got %d", len(siblings))
		}

		ancient := newPayment(t, model.PaymentTypeRenewal, time.Now().Add(-30*24*time.Hour))
		_ = repo.SetInvoiceID(ctx, nil, ancient.ID, "3")

		stale, err := repo.ListStaleUnpaid(ctx, nil, time.Now().Add(-72*time.Hour), time.Now().Add(-time.Hour), 10)
		if err != nil {
			t.Fatalf("ListStaleUnpaid: %v", err)
		}
		if len(stale) != 1 || stale[0].ID != reg.ID {
			t.Errorf("expected only the old invoiced row, got %d rows", len(stale))
		}
	})

	t.Run("row lock inside a transaction", func(t *testing.T) {
		cleanup(t)
		seedBase(t)
		p := newPayment(t, model.PaymentTypeAnnual, time.Now())
		tm := NewTxManager(testPool)

		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			if _, err := repo.FindByID(ctx, tx, p.ID); err != nil {
				return err
			}
			if _, err := repo.MarkPaid(ctx, tx, p.ID, p.Amount, "r", time.Now(), ""); err != nil {
				return err
			}
			return errors.New("abort")
		})
		if err == nil {
			t.Fatal("expected the transaction to fail")
		}
		found, _ := repo.FindByID(ctx, nil, p.ID)
		if found.Paid {
			t.Error("rolled back transaction must not leave the payment paid")
		}
	})
}

func TestPaymentHistoryRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewPaymentHistoryRepo(testPool)
	cleanup(t)

	base := time.Now().Add(-time.Hour).UTC()
	for i, st := range []model.HistoryStatus{model.HistoryStatusFailed, model.HistoryStatusCompleted} {
		rec := &model.PaymentHistoryRecord{
			ID:         uuid.NewString(),
			UserID:     "user-1",
			PaymentID:  "pay-1",
			Amount:     decimal.RequireFromString("40"),
			Currency:   model.CurrencyBHD,
			Status:     st,
			PaymentFor: "subscription_combined",
			Details:    map[string]any{"attempt": i},
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, nil, rec); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	recs, err := repo.ListByUser(ctx, nil, "user-1", 10)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(recs) != 2 || recs[0].Status != model.HistoryStatusCompleted {
		t.Fatalf("expected newest first, got %+v", recs)
	}
	if recs[0].Details["attempt"] != float64(1) {
		t.Errorf("details not decoded: %v", recs[0].Details)
	}
}
