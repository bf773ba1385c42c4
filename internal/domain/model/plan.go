package model

import (
	"strings"

	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
)

// SubscriptionPlan is a membership tier. Either fee may be waived by the plan.
type SubscriptionPlan struct {
	ID                 string
	Name               string
	DisplayName        string
	RegistrationFee    decimal.Decimal
	AnnualFee          decimal.Decimal
	RegistrationWaived bool
	AnnualWaived       bool
	DurationMonths     int
}

func (p *SubscriptionPlan) IsZero() bool { return p == nil || p.ID == "" }

// Title is the label printed on invoices and emails.
func (p *SubscriptionPlan) Title() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// MembershipType is the value mirrored onto users.membership_type when the
// plan becomes active.
func (p *SubscriptionPlan) MembershipType() string {
	return strings.ToLower(strings.TrimSpace(p.Name))
}

// PriceFor returns what the plan charges for a payment of type t, honoring
// waivers.
func (p *SubscriptionPlan) PriceFor(t PaymentType) (decimal.Decimal, error) {
	reg := p.RegistrationFee
	if p.RegistrationWaived {
		reg = decimal.Zero
	}
	annual := p.AnnualFee
	if p.AnnualWaived {
		annual = decimal.Zero
	}
	switch t {
	case PaymentTypeRegistration:
		return reg, nil
	case PaymentTypeAnnual, PaymentTypeRenewal:
		return annual, nil
	case PaymentTypeCombined:
		return reg.Add(annual), nil
	}
	return decimal.Zero, domain.ErrInvalidArgument
}

// InvoiceItemName labels the invoice line for a payment of type t.
func (p *SubscriptionPlan) InvoiceItemName(t PaymentType) string {
	switch t {
	case PaymentTypeRegistration:
		return "Registration Fee - " + p.Title()
	case PaymentTypeAnnual:
		return "Annual Fee - " + p.Title()
	case PaymentTypeRenewal:
		return "Renewal Fee - " + p.Title()
	case PaymentTypeCombined:
		return "Registration + Annual Fee - " + p.Title()
	}
	return "Membership Payment - " + p.Title()
}
