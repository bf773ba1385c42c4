//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
)

func seedEvent(t *testing.T) {
	t.Helper()
	seedBase(t)
	_, err := testPool.Exec(context.Background(), `
INSERT INTO events (id, title, is_paid, early_bird_deadline, regular_price, regular_standard_price, member_price, student_onsite_price)
VALUES ('evt-1', 'Implant Symposium', TRUE, NOW() + INTERVAL '7 days', 25, 30, 15, 12.5)`)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
}

func newSeat(t *testing.T, id string, at time.Time) *model.EventMember {
	t.Helper()
	m, err := model.NewEventMember(id, "evt-1", "user-1", false, at)
	if err != nil {
		t.Fatalf("NewEventMember: %v", err)
	}
	return m
}

func TestEventRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	cleanup(t)
	seedEvent(t)

	ev, err := NewEventRepo(testPool).FindByID(ctx, nil, "evt-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if ev.Title != "Implant Symposium" || !ev.IsPaid || ev.EarlyBirdDeadline == nil {
		t.Errorf("unexpected event %+v", ev)
	}
	reg := ev.Prices[model.CategoryRegular]
	if !reg.EarlyBird.Decimal.Equal(decimal.NewFromInt(25)) || !reg.Standard.Decimal.Equal(decimal.NewFromInt(30)) || reg.Onsite.Valid {
		t.Errorf("unexpected regular prices %+v", reg)
	}
	if st := ev.Prices[model.CategoryStudent]; st.EarlyBird.Valid || !st.Onsite.Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected student prices %+v", st)
	}
	if _, err := NewEventRepo(testPool).FindByID(ctx, nil, "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEventMemberRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewEventMemberRepo(testPool)
	cleanup(t)
	seedEvent(t)

	older := newSeat(t, "em-old", time.Now().Add(-time.Hour))
	newer := newSeat(t, "em-new", time.Now())
	for _, m := range []*model.EventMember{older, newer} {
		if err := repo.Save(ctx, nil, m); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	rows, err := repo.ListByEventAndUser(ctx, nil, "evt-1", "user-1")
	if err != nil {
		t.Fatalf("ListByEventAndUser: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != newer.ID {
		t.Fatalf("expected newest first, got %d rows", len(rows))
	}

	ok, err := repo.MarkPaid(ctx, nil, older.ID, decimal.NewFromInt(15), "member")
	if err != nil || !ok {
		t.Fatalf("MarkPaid: ok=%v err=%v", ok, err)
	}
	ok, _ = repo.MarkPaid(ctx, nil, older.ID, decimal.NewFromInt(99), "regular")
	if ok {
		t.Error("a paid seat must not be settled twice")
	}

	rows, _ = repo.ListByEventAndUser(ctx, nil, "evt-1", "user-1")
	paid := model.PickEventMember(rows)
	if paid == nil || paid.ID != older.ID || paid.PaymentStatus != model.EventPaymentCompleted || paid.RegistrationCategory != "member" {
		t.Errorf("unexpected paid seat %+v", paid)
	}
}

func TestCouponRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	ctx := context.Background()
	repo := NewCouponRepo(testPool)
	cleanup(t)
	seedEvent(t)
	if _, err := testPool.Exec(ctx, `INSERT INTO event_coupons (id, event_id, code, discount_type, discount_value, max_uses) VALUES ('cpn-1', 'evt-1', 'Save5', 'fixed', 5, 10)`); err != nil {
		t.Fatal(err)
	}

	c, err := repo.FindActiveByCode(ctx, nil, "evt-1", "SAVE5")
	if err != nil {
		t.Fatalf("FindActiveByCode: %v", err)
	}
	if c.DiscountType != model.DiscountFixed || c.MaxUses == nil || *c.MaxUses != 10 {
		t.Errorf("unexpected coupon %+v", c)
	}

	usage := func(id, after string, at time.Time) *model.CouponUsage {
		return &model.CouponUsage{ID: id, CouponID: "cpn-1", EventID: "evt-1", UserID: "user-1",
			AmountBefore: decimal.NewFromInt(20), DiscountAmount: decimal.NewFromInt(5), AmountAfter: decimal.RequireFromString(after), CreatedAt: at}
	}
	if err := repo.SaveProvisionalUsage(ctx, nil, usage("u-1", "15", time.Now().Add(-time.Minute))); err != nil {
		t.Fatalf("SaveProvisionalUsage: %v", err)
	}
	// re-applying refreshes the same provisional row
	if err := repo.SaveProvisionalUsage(ctx, nil, usage("u-2", "14", time.Now())); err != nil {
		t.Fatalf("SaveProvisionalUsage again: %v", err)
	}
	// switching to another coupon leaves a row that must be dropped
	if _, err := testPool.Exec(ctx, `INSERT INTO event_coupons (id, event_id, code, discount_type, discount_value) VALUES ('cpn-2', 'evt-1', 'SAVE8', 'fixed', 8)`); err != nil {
		t.Fatal(err)
	}
	other := usage("u-3", "12", time.Now().Add(-2*time.Minute))
	other.CouponID = "cpn-2"
	if err := repo.SaveProvisionalUsage(ctx, nil, other); err != nil {
		t.Fatalf("SaveProvisionalUsage cpn-2: %v", err)
	}
	if n, err := repo.DiscardProvisionalUsages(ctx, nil, "evt-1", "user-1", "cpn-1"); err != nil || n != 1 {
		t.Fatalf("DiscardProvisionalUsages: n=%d err=%v", n, err)
	}
	prov, err := repo.ListProvisionalUsages(ctx, nil, "evt-1", "user-1")
	if err != nil {
		t.Fatalf("ListProvisionalUsages: %v", err)
	}
	if len(prov) != 1 || !prov[0].AmountAfter.Equal(decimal.NewFromInt(14)) {
		t.Fatalf("expected one refreshed usage, got %+v", prov)
	}

	seat := newSeat(t, "em-1", time.Now())
	if err := NewEventMemberRepo(testPool).Save(ctx, nil, seat); err != nil {
		t.Fatal(err)
	}
	u := prov[0]
	u.EventMemberID, u.PaymentID, u.InvoiceID = &seat.ID, "pay-1", "7007"
	ok, err := repo.FinalizeUsage(ctx, nil, u)
	if err != nil || !ok {
		t.Fatalf("FinalizeUsage: ok=%v err=%v", ok, err)
	}
	if ok, _ := repo.FinalizeUsage(ctx, nil, u); ok {
		t.Error("second finalize must report false")
	}
	if err := repo.IncrementUsed(ctx, nil, "cpn-1"); err != nil {
		t.Fatalf("IncrementUsed: %v", err)
	}

	if has, _ := repo.HasFinalizedUsage(ctx, nil, "cpn-1", "evt-1", "user-1"); !has {
		t.Error("expected a finalized usage")
	}
	if has, _ := repo.HasAnyUsage(ctx, nil, "cpn-1", "evt-1", "user-2"); has {
		t.Error("user-2 has no usage")
	}
	c, _ = repo.FindActiveByCode(ctx, nil, "evt-1", "SAVE5")
	if c.UsedCount != 1 {
		t.Errorf("expected used_count 1, got %d", c.UsedCount)
	}
}
