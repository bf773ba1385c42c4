package model

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type PricingTier string

const (
	TierEarlyBird PricingTier = "earlybird"
	TierStandard  PricingTier = "standard"
	TierOnsite    PricingTier = "onsite"
)

type PricingCategory string

const (
	CategoryMember    PricingCategory = "member"
	CategoryRegular   PricingCategory = "regular"
	CategoryStudent   PricingCategory = "student"
	CategoryHygienist PricingCategory = "hygienist"
)

// TierPrices holds one category's price per tier. Unset tiers fall back to
// earlier ones.
type TierPrices struct {
	EarlyBird decimal.NullDecimal
	Standard  decimal.NullDecimal
	Onsite    decimal.NullDecimal
}

func (p TierPrices) at(t PricingTier) decimal.NullDecimal {
	switch t {
	case TierStandard:
		return p.Standard
	case TierOnsite:
		return p.Onsite
	}
	return p.EarlyBird
}

func (p TierPrices) withFallback(t PricingTier) decimal.NullDecimal {
	if v := p.at(t); set(v) {
		return v
	}
	switch t {
	case TierOnsite:
		if set(p.Standard) {
			return p.Standard
		}
		return p.EarlyBird
	case TierStandard:
		return p.EarlyBird
	}
	return decimal.NullDecimal{}
}

func set(v decimal.NullDecimal) bool { return v.Valid && !v.Decimal.IsZero() }

// CurrentTier picks the pricing window the event is in at now.
func CurrentTier(e *Event, now time.Time) PricingTier {
	if e == nil {
		return TierEarlyBird
	}
	eb, std := e.EarlyBirdDeadline, e.StandardDeadline
	if eb != nil {
		if now.Before(*eb) {
			return TierEarlyBird
		}
		if std != nil && now.Before(*std) {
			return TierStandard
		}
		if std == nil && e.StartAt != nil && now.Before(*e.StartAt) {
			return TierStandard
		}
		return TierOnsite
	}
	if std != nil {
		if now.Before(*std) {
			return TierStandard
		}
		return TierOnsite
	}
	if e.StartAt != nil {
		days := math.Ceil(e.StartAt.Sub(now).Hours() / 24)
		switch {
		case days > 14:
			return TierEarlyBird
		case days > 0:
			return TierStandard
		default:
			return TierOnsite
		}
	}
	return TierEarlyBird
}

var (
	studentMarkers   = []string{"student", "undergraduate", "postgraduate"}
	hygienistMarkers = []string{"hygienist", "assistant", "technician", "technologist"}
	dentistPositions = []string{"dentist", "specialist", "consultant", "resident", "intern", "hod", "lead", "faculty", "lecturer"}
)

// CategoryFor derives the pricing category from the member profile. Only
// dentists holding a paid membership get member pricing.
func CategoryFor(u *User) PricingCategory {
	if u == nil {
		return CategoryRegular
	}
	category := strings.ToLower(u.Category)
	position := strings.ToLower(u.Position)

	if containsAny(category, studentMarkers) || position == "student" {
		return CategoryStudent
	}
	if containsAny(category, hygienistMarkers) || containsAny(position, []string{"hygienist", "assistant", "technologist"}) {
		return CategoryHygienist
	}
	dentist := strings.Contains(category, "dentist") || containsAny(position, dentistPositions)
	if dentist && u.MembershipType == MembershipTypePaid {
		return CategoryMember
	}
	return CategoryRegular
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// PriceFor resolves a category/tier price, falling back first to earlier
// tiers of the same category and then to the regular prices.
func PriceFor(e *Event, c PricingCategory, t PricingTier) (decimal.Decimal, bool) {
	if e == nil || !e.IsPaid {
		return decimal.Zero, false
	}
	prices, ok := e.Prices[c]
	if !ok {
		prices = e.Prices[CategoryRegular]
	}
	if v := prices.withFallback(t); set(v) {
		return v.Decimal, true
	}
	regular := e.Prices[CategoryRegular]
	for _, v := range []decimal.NullDecimal{regular.at(t), regular.Standard, regular.EarlyBird} {
		if set(v) {
			return v.Decimal, true
		}
	}
	return decimal.Zero, false
}

// Quote is the resolved price for one member at one moment.
type Quote struct {
	Price    decimal.Decimal
	Category PricingCategory
	Tier     PricingTier
	Free     bool
}

// QuoteFor computes what u should pay for e at now.
func QuoteFor(e *Event, u *User, now time.Time) Quote {
	if e == nil || !e.IsPaid {
		return Quote{Category: CategoryRegular, Tier: TierEarlyBird, Free: true}
	}
	c := CategoryFor(u)
	t := CurrentTier(e, now)
	price, _ := PriceFor(e, c, t)
	return Quote{Price: price, Category: c, Tier: t}
}
