package model

import (
	"time"

	"bds-membership/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "pending"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscription is a member's enrolment in a plan. Active implies the
// registration fee is paid or waived.
type Subscription struct {
	ID                    string
	UserID                string
	PlanID                string
	PlanName              string
	Status                SubscriptionStatus
	RegistrationPaid      bool
	AnnualPaid            bool
	RegistrationPaymentID *string
	AnnualPaymentID       *string
	StartedAt             *time.Time
	ExpiresAt             *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (s *Subscription) IsActive() bool { return s.Status == SubscriptionStatusActive }

// RegistrationSettled reports whether registration is paid or not owed.
func (s *Subscription) RegistrationSettled(plan *SubscriptionPlan) bool {
	return s.RegistrationPaid || (plan != nil && plan.RegistrationWaived)
}

// ApplyPayment records a confirmed payment of type t against the subscription.
// It returns true when the call moved the subscription into the active state.
//
// Registration (and combined) payments always activate. Annual and renewal
// payments activate only once registration is settled. A renewal pushes the
// expiry one year past max(current expiry, now).
func (s *Subscription) ApplyPayment(t PaymentType, paymentID string, plan *SubscriptionPlan, now time.Time) (bool, error) {
	if !t.Valid() || t == PaymentTypeEventRegistration {
		return false, domain.ErrInvalidArgument
	}
	wasActive := s.IsActive()
	pid := paymentID

	if t.CoversRegistration() {
		s.RegistrationPaid = true
		s.RegistrationPaymentID = &pid
	}
	if t.CoversAnnual() {
		s.AnnualPaid = true
		s.AnnualPaymentID = &pid
	}

	if t.CoversRegistration() || s.RegistrationSettled(plan) {
		s.Status = SubscriptionStatusActive
	}

	if t == PaymentTypeRenewal {
		base := now
		if s.ExpiresAt != nil && s.ExpiresAt.After(now) {
			base = *s.ExpiresAt
		}
		next := base.AddDate(1, 0, 0)
		s.ExpiresAt = &next
	}

	if s.IsActive() {
		if s.StartedAt == nil {
			started := now
			s.StartedAt = &started
		}
		if s.ExpiresAt == nil {
			exp := now.AddDate(0, durationMonths(plan), 0)
			s.ExpiresAt = &exp
		}
	}
	s.UpdatedAt = now
	return s.IsActive() && !wasActive, nil
}

// Expire marks the subscription expired when its term has passed.
func (s *Subscription) Expire(now time.Time) bool {
	if s.Status == SubscriptionStatusExpired || s.ExpiresAt == nil || !s.ExpiresAt.Before(now) {
		return false
	}
	s.Status = SubscriptionStatusExpired
	s.UpdatedAt = now
	return true
}

func durationMonths(plan *SubscriptionPlan) int {
	if plan == nil || plan.DurationMonths <= 0 {
		return 12
	}
	return plan.DurationMonths
}
