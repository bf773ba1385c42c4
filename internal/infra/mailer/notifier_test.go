//go:build !integration

package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bds-membership/internal/domain/ports/adapter"
)

type mockSender struct {
	mu   sync.Mutex
	Sent []Email
	Err  error
}

func (m *mockSender) Send(ctx context.Context, e Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, e)
	return m.Err
}

func newTestNotifier(t *testing.T, s Sender) *Notifier {
	t.Helper()
	logger := zerolog.Nop()
	n, err := NewNotifier(s, "no-reply@bds.example", "BDS", &logger)
	require.NoError(t, err)
	return n
}

func TestNotifier_PaymentConfirmation(t *testing.T) {
	s := &mockSender{}
	n := newTestNotifier(t, s)
	exp := time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC)

	res := n.SendPaymentConfirmation(context.Background(), " noor@example.com ", adapter.PaymentConfirmation{
		Name:        "Dr Noor",
		PlanName:    "Pro Membership",
		Amount:      decimal.RequireFromString("40"),
		PaymentDate: time.Date(2024, 5, 20, 9, 0, 0, 0, time.UTC),
		ExpiryDate:  &exp,
		InvoiceID:   "7007",
	})

	require.True(t, res.Success, res.Error)
	assert.NotEmpty(t, res.MessageID)
	require.Len(t, s.Sent, 1)
	e := s.Sent[0]
	assert.Equal(t, []string{"noor@example.com"}, e.To)
	assert.Equal(t, "BDS - Payment Confirmation", e.Subject)
	assert.Equal(t, "BDS", e.FromName)
	assert.Contains(t, e.HTMLBody, "40.000 BHD")
	assert.Contains(t, e.HTMLBody, "20 May 2025")
	assert.Contains(t, e.TextBody, "Invoice: 7007")
}

func TestNotifier_EscapesUserInput(t *testing.T) {
	s := &mockSender{}
	n := newTestNotifier(t, s)

	res := n.SendWelcome(context.Background(), "a@b.c", adapter.Welcome{Name: "<script>x</script>", MembershipType: "pro"})

	require.True(t, res.Success)
	assert.NotContains(t, s.Sent[0].HTMLBody, "<script>x</script>")
	assert.Contains(t, s.Sent[0].HTMLBody, "&lt;script&gt;")
}

func TestNotifier_EventJoin(t *testing.T) {
	s := &mockSender{}
	n := newTestNotifier(t, s)

	res := n.SendEventJoin(context.Background(), "a@b.c", adapter.EventJoin{
		Name:      "Dr Noor",
		EventName: "Implant Symposium",
		EventCode: "EVT-01J0ABC",
		PricePaid: decimal.RequireFromString("15"),
	})

	require.True(t, res.Success)
	e := s.Sent[0]
	assert.Equal(t, "BDS - Event Registration Confirmed: Implant Symposium", e.Subject)
	assert.Contains(t, e.TextBody, "Check-in code: EVT-01J0ABC")
	assert.Contains(t, e.TextBody, "Amount paid: 15.000 BHD")
}

func TestNotifier_FailuresAreReported(t *testing.T) {
	t.Run("smtp error", func(t *testing.T) {
		n := newTestNotifier(t, &mockSender{Err: errors.New("535 authentication failed")})
		res := n.SendWelcome(context.Background(), "a@b.c", adapter.Welcome{Name: "x"})
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "535")
	})

	t.Run("missing recipient", func(t *testing.T) {
		s := &mockSender{}
		n := newTestNotifier(t, s)
		res := n.SendWelcome(context.Background(), "  ", adapter.Welcome{Name: "x"})
		assert.False(t, res.Success)
		assert.Empty(t, s.Sent)
	})

	t.Run("noop", func(t *testing.T) {
		res := NoopNotifier{}.SendEventJoin(context.Background(), "a@b.c", adapter.EventJoin{})
		assert.False(t, res.Success)
	})
}
