package model

import (
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
)

// Event is a paid or free society event.
type Event struct {
	ID                string
	Title             string
	IsPaid            bool
	StartAt           *time.Time
	EndAt             *time.Time
	EarlyBirdDeadline *time.Time
	StandardDeadline  *time.Time
	Prices            map[PricingCategory]TierPrices
}

// BasePrice is the regular list price, the last resort when nothing better
// is known about what a member was charged.
func (e *Event) BasePrice() decimal.Decimal {
	if e == nil {
		return decimal.Zero
	}
	p := e.Prices[CategoryRegular]
	for _, v := range []decimal.NullDecimal{p.EarlyBird, p.Standard, p.Onsite} {
		if v.Valid && v.Decimal.IsPositive() {
			return v.Decimal
		}
	}
	return decimal.Zero
}

type EventPaymentStatus string

const (
	EventPaymentPending   EventPaymentStatus = "pending"
	EventPaymentCompleted EventPaymentStatus = "completed"
)

// EventMember is a member's seat at an event. PricePaid > 0 iff the
// payment status is completed.
type EventMember struct {
	ID                   string
	EventID              string
	UserID               string
	Token                string
	PricePaid            decimal.Decimal
	PaymentStatus        EventPaymentStatus
	RegistrationCategory string
	IsMember             bool
	JoinedAt             time.Time
}

func (m *EventMember) IsPaid() bool { return m.PricePaid.IsPositive() }

// NewEventMember creates an unpaid seat with a fresh join code.
func NewEventMember(id, eventID, userID string, isMember bool, now time.Time) (*EventMember, error) {
	if id == "" || eventID == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &EventMember{
		ID:            id,
		EventID:       eventID,
		UserID:        userID,
		Token:         NewJoinToken(now),
		PricePaid:     decimal.Zero,
		PaymentStatus: EventPaymentPending,
		IsMember:      isMember,
		JoinedAt:      now,
	}, nil
}

// NewJoinToken returns a sortable, unique event join code.
func NewJoinToken(now time.Time) string {
	return "EVT-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}

// MarkPaid settles the seat for amount.
func (m *EventMember) MarkPaid(amount decimal.Decimal, category PricingCategory) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidArgument
	}
	m.PricePaid = RoundBHD(amount)
	m.PaymentStatus = EventPaymentCompleted
	if category != "" {
		m.RegistrationCategory = string(category)
	}
	return nil
}

// PickEventMember chooses among duplicate seats for the same (event, user):
// the one already paid wins, otherwise the most recently joined.
func PickEventMember(rows []*EventMember) *EventMember {
	var latest *EventMember
	for _, m := range rows {
		if m == nil {
			continue
		}
		if m.IsPaid() {
			return m
		}
		if latest == nil || m.JoinedAt.After(latest.JoinedAt) {
			latest = m
		}
	}
	return latest
}
