package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
)

type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// Coupon is an event-scoped discount code.
type Coupon struct {
	ID            string
	EventID       string
	Code          string
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	MaxUses       *int // nil or <= 0 means unlimited
	UsedCount     int
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	IsActive      bool
}

// NormalizeCouponCode is the canonical form codes are matched in.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckRedeemable validates the coupon's own constraints at now.
func (c *Coupon) CheckRedeemable(now time.Time) error {
	if !c.IsActive {
		return domain.E(domain.ErrCouponInvalid, "Invalid or expired coupon code")
	}
	if c.ValidFrom != nil && c.ValidFrom.After(now) {
		return domain.E(domain.ErrCouponInvalid, "Coupon is not active yet")
	}
	if c.ValidUntil != nil && c.ValidUntil.Before(now) {
		return domain.E(domain.ErrCouponInvalid, "Coupon has expired")
	}
	if c.MaxUses != nil && *c.MaxUses > 0 && c.UsedCount >= *c.MaxUses {
		return domain.E(domain.ErrCouponInvalid, "Coupon usage limit reached")
	}
	return nil
}

// Discount computes the discount on base, capped at base.
func (c *Coupon) Discount(base decimal.Decimal) (decimal.Decimal, error) {
	var d decimal.Decimal
	switch c.DiscountType {
	case DiscountFixed:
		d = c.DiscountValue
	case DiscountPercentage:
		d = base.Mul(c.DiscountValue).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero, domain.E(domain.ErrCouponInvalid, "Invalid discount configuration")
	}
	d = RoundBHD(d)
	if !d.IsPositive() {
		return decimal.Zero, domain.E(domain.ErrCouponInvalid, "Invalid discount configuration")
	}
	if d.GreaterThan(base) {
		d = base
	}
	return d, nil
}

// CouponUsage is a coupon redemption. It stays provisional (no event member)
// until the payment it discounted is confirmed.
type CouponUsage struct {
	ID             string
	CouponID       string
	EventID        string
	UserID         string
	EventMemberID  *string
	AmountBefore   decimal.Decimal
	DiscountAmount decimal.Decimal
	AmountAfter    decimal.Decimal
	PaymentID      string
	InvoiceID      string
	CreatedAt      time.Time
}

func (u *CouponUsage) IsProvisional() bool { return u.EventMemberID == nil }

// Finalize links the usage to the paid seat and stamps gateway ids.
func (u *CouponUsage) Finalize(eventMemberID, paymentID, invoiceID string) {
	id := eventMemberID
	u.EventMemberID = &id
	u.PaymentID = paymentID
	u.InvoiceID = invoiceID
}
