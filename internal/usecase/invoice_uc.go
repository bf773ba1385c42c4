package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/domain/ports/repository"
	"bds-membership/internal/infra/logging"
	"bds-membership/internal/infra/metrics"
)

// Compile-time check
var _ InvoiceUseCase = (*invoiceUC)(nil)

type InvoiceUseCase interface {
	// CreateSubscriptionInvoice validates a pending membership payment and
	// returns the payment methods the gateway offers for it.
	CreateSubscriptionInvoice(ctx context.Context, req SubscriptionInvoiceRequest) (*InvoiceResult, error)
	// ExecuteSubscriptionPayment starts the payment with the chosen method and
	// stores the gateway invoice id on the pending payment.
	ExecuteSubscriptionPayment(ctx context.Context, req ExecuteSubscriptionRequest) (*PaymentRedirect, error)
	CreateEventInvoice(ctx context.Context, req EventInvoiceRequest) (*InvoiceResult, error)
	ExecuteEventPayment(ctx context.Context, req ExecuteEventRequest) (*PaymentRedirect, error)
}

type SubscriptionInvoiceRequest struct {
	SubscriptionID string
	PaymentID      string
	Amount         decimal.Decimal // client-supplied; drift from the stored amount is tolerated
	PaymentType    string
	RedirectTo     string
	CallerUserID   string // empty for unauthenticated callers
}

type ExecuteSubscriptionRequest struct {
	SubscriptionID  string
	PaymentID       string
	PaymentMethodID int
	RedirectTo      string
	CallerUserID    string
}

type EventInvoiceRequest struct {
	EventID string
	UserID  string
}

type ExecuteEventRequest struct {
	EventID         string
	UserID          string
	PaymentMethodID int
}

type InvoiceResult struct {
	PaymentMethods []adapter.PaymentMethod
	Amount         decimal.Decimal
	Currency       string
	PaymentID      string
	SubscriptionID string
	EventID        string
}

type PaymentRedirect struct {
	PaymentURL string
	InvoiceID  string
	PaymentID  string
}

type invoiceUC struct {
	repos    Repos
	gateways Gateways
	opts     Options
	log      *zerolog.Logger
}

func NewInvoiceUseCase(repos Repos, gateways Gateways, opts Options, logger *zerolog.Logger) *invoiceUC {
	l := logger.With().Str("component", "InvoiceUC").Logger()
	return &invoiceUC{repos: repos, gateways: gateways, opts: opts.normalized(), log: &l}
}

// -----------------------------
// Membership payments
// -----------------------------

// subscriptionCharge is everything needed to present one membership charge
// to the gateway.
type subscriptionCharge struct {
	payment *model.PendingPayment
	sub     *model.Subscription
	plan    *model.SubscriptionPlan
	user    *model.User
	amount  decimal.Decimal
}

func (u *invoiceUC) CreateSubscriptionInvoice(ctx context.Context, req SubscriptionInvoiceRequest) (res *InvoiceResult, err error) {
	defer logging.TraceDuration(u.log, "InvoiceUC.CreateSubscriptionInvoice")()
	defer func() { metrics.IncInvoiceRequest(invoiceResult(err)) }()

	if strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.SubscriptionID) == "" {
		return nil, domain.E(domain.ErrInvalidArgument, "Missing required fields: payment_id and subscription_id")
	}
	ctx = logging.WithPaymentID(ctx, req.PaymentID)
	log := logging.With(ctx, u.log)

	ch, err := u.loadSubscriptionCharge(ctx, req.SubscriptionID, req.PaymentID, req.CallerUserID)
	if err != nil {
		return nil, err
	}

	requested := ch.payment.PaymentType
	if req.PaymentType != "" {
		if requested, err = model.ParsePaymentType(req.PaymentType); err != nil {
			return nil, err
		}
	}
	if requested == model.PaymentTypeEventRegistration {
		return nil, domain.E(domain.ErrInvalidArgument, "Invalid payment type for a membership invoice")
	}

	if req.Amount.IsPositive() && !model.RoundBHD(req.Amount).Equal(model.RoundBHD(ch.payment.Amount)) {
		// Drift is tolerated; the stored amount is what gets invoiced.
		log.Warn().Str("requested_amount", req.Amount.StringFixed(3)).Str("stored_amount", ch.payment.Amount.StringFixed(3)).
			Msg("invoice amount differs from pending payment")
	}

	if requested == model.PaymentTypeCombined && ch.payment.PaymentType != model.PaymentTypeCombined {
		combined, err := u.combinedPayment(ctx, ch, req.Amount)
		if err != nil {
			return nil, err
		}
		ch.payment = combined
		ch.amount = combined.Amount
		log = logging.With(logging.WithPaymentID(ctx, combined.ID), u.log)
	}

	if !ch.amount.IsPositive() {
		return nil, domain.E(domain.ErrInvalidArgument, "Payment amount is not set")
	}

	invReq := u.subscriptionInvoiceRequest(ch, req.RedirectTo, req.CallerUserID != "")
	methods, err := u.gateways.Subscription.Initiate(ctx, invReq)
	if err != nil {
		log.Error().Err(err).Str("amount", ch.amount.StringFixed(3)).Msg("gateway initiate failed")
		return nil, gatewayErr(err)
	}

	log.Info().Str("amount", ch.amount.StringFixed(3)).Str("payment_type", string(ch.payment.PaymentType)).
		Int("methods", len(methods)).Msg("subscription invoice created")
	return &InvoiceResult{
		PaymentMethods: methods,
		Amount:         ch.amount,
		Currency:       currencyOf(ch.payment),
		PaymentID:      ch.payment.ID,
		SubscriptionID: ch.sub.ID,
	}, nil
}

func (u *invoiceUC) ExecuteSubscriptionPayment(ctx context.Context, req ExecuteSubscriptionRequest) (res *PaymentRedirect, err error) {
	defer logging.TraceDuration(u.log, "InvoiceUC.ExecuteSubscriptionPayment")()
	defer func() { metrics.IncInvoiceRequest(invoiceResult(err)) }()

	if strings.TrimSpace(req.PaymentID) == "" || strings.TrimSpace(req.SubscriptionID) == "" || req.PaymentMethodID <= 0 {
		return nil, domain.E(domain.ErrInvalidArgument, "Missing required fields: payment_id, subscription_id and payment_method_id")
	}
	ctx = logging.WithPaymentID(ctx, req.PaymentID)
	log := logging.With(ctx, u.log)

	ch, err := u.loadSubscriptionCharge(ctx, req.SubscriptionID, req.PaymentID, req.CallerUserID)
	if err != nil {
		return nil, err
	}
	if !ch.amount.IsPositive() {
		return nil, domain.E(domain.ErrInvalidArgument, "Payment amount is not set")
	}

	invReq := u.subscriptionInvoiceRequest(ch, req.RedirectTo, req.CallerUserID != "")
	exec, err := u.gateways.Subscription.Execute(ctx, invReq, req.PaymentMethodID)
	if err != nil {
		log.Error().Err(err).Int("method_id", req.PaymentMethodID).Msg("gateway execute failed")
		return nil, gatewayErr(err)
	}

	// The stored id is the first one reconciliation tries; losing it only
	// costs a fallback lookup.
	if err := u.repos.Payments.SetInvoiceID(ctx, nil, ch.payment.ID, exec.InvoiceID); err != nil {
		log.Warn().Err(err).Str("invoice_id", exec.InvoiceID).Msg("failed to store invoice id")
	}
	log.Info().Str("invoice_id", exec.InvoiceID).Msg("subscription payment executed")
	return &PaymentRedirect{PaymentURL: exec.PaymentURL, InvoiceID: exec.InvoiceID, PaymentID: ch.payment.ID}, nil
}

func (u *invoiceUC) loadSubscriptionCharge(ctx context.Context, subscriptionID, paymentID, callerUserID string) (*subscriptionCharge, error) {
	p, err := Retry(ctx, u.opts.Retry, "pending_payment.find", func(ctx context.Context) (*model.PendingPayment, error) {
		return u.repos.Payments.FindByID(ctx, nil, paymentID)
	})
	if err != nil {
		return nil, notFoundAs(err, "Payment record not found")
	}
	if callerUserID != "" && callerUserID != p.UserID {
		return nil, domain.E(domain.ErrForbidden, "Unauthorized: Payment does not belong to user")
	}
	if p.Paid {
		return nil, domain.E(domain.ErrAlreadyProcessed, "Payment already completed")
	}
	if !p.BelongsTo(subscriptionID) {
		return nil, domain.E(domain.ErrInvalidArgument, "Payment does not belong to this subscription")
	}

	sub, err := Retry(ctx, u.opts.Retry, "subscription.find", func(ctx context.Context) (*model.Subscription, error) {
		return u.repos.Subscriptions.FindByID(ctx, nil, subscriptionID)
	})
	if err != nil {
		return nil, notFoundAs(err, "Subscription not found")
	}
	plan, err := Retry(ctx, u.opts.Retry, "plan.find", func(ctx context.Context) (*model.SubscriptionPlan, error) {
		return u.repos.Plans.FindByID(ctx, nil, sub.PlanID)
	})
	if err != nil {
		return nil, notFoundAs(err, "Subscription plan not found")
	}
	usr, err := Retry(ctx, u.opts.Retry, "user.find", func(ctx context.Context) (*model.User, error) {
		return u.repos.Users.FindByID(ctx, nil, p.UserID)
	})
	if err != nil {
		return nil, notFoundAs(err, "User not found")
	}

	amount := model.RoundBHD(p.Amount)
	if !amount.IsPositive() {
		if price, perr := plan.PriceFor(p.PaymentType); perr == nil {
			amount = model.RoundBHD(price)
		}
	}
	return &subscriptionCharge{payment: p, sub: sub, plan: plan, user: usr, amount: amount}, nil
}

// combinedPayment returns the unpaid combined payment for the subscription,
// inserting one (and annotating the per-item rows it supersedes) if none
// exists. Per-item rows are never rewritten into a combined charge.
func (u *invoiceUC) combinedPayment(ctx context.Context, ch *subscriptionCharge, requested decimal.Decimal) (*model.PendingPayment, error) {
	amount, err := ch.plan.PriceFor(model.PaymentTypeCombined)
	if err != nil || !amount.IsPositive() {
		amount = requested
	}
	amount = model.RoundBHD(amount)

	var out *model.PendingPayment
	err = u.repos.Tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		siblings, err := u.repos.Payments.ListUnpaidBySubscription(ctx, tx, ch.sub.ID)
		if err != nil {
			return fmt.Errorf("list unpaid payments: %w", err)
		}
		for _, s := range siblings {
			if s.PaymentType == model.PaymentTypeCombined && !s.Paid {
				out = s
				return nil
			}
		}

		subID := ch.sub.ID
		p, err := model.NewPendingPayment(uuid.NewString(), ch.payment.UserID, &subID, amount, model.PaymentTypeCombined)
		if err != nil {
			return err
		}
		p.CreatedAt, p.UpdatedAt = u.opts.Now(), u.opts.Now()
		if err := u.repos.Payments.Save(ctx, tx, p); err != nil {
			return fmt.Errorf("insert combined payment: %w", err)
		}
		note := fmt.Sprintf("Superseded by combined payment %s", p.ID)
		for _, s := range siblings {
			if err := u.repos.Payments.AppendNote(ctx, tx, s.ID, note); err != nil {
				return fmt.Errorf("annotate payment %s: %w", s.ID, err)
			}
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().Str("combined_payment_id", out.ID).Str("superseded_payment_id", ch.payment.ID).Msg("combined payment prepared")
	return out, nil
}

func (u *invoiceUC) subscriptionInvoiceRequest(ch *subscriptionCharge, redirectTo string, authenticated bool) adapter.InvoiceRequest {
	q := url.Values{}
	q.Set("payment_id", ch.payment.ID)
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	errorURL := u.link("/auth/login", url.Values{"error": {"payment_failed"}})
	if authenticated {
		errorURL = u.link("/member/dashboard/subscriptions", url.Values{"error": {"payment_failed"}})
	}
	return adapter.InvoiceRequest{
		Amount:         ch.amount,
		Currency:       currencyOf(ch.payment),
		CustomerName:   ch.user.DisplayName(),
		CustomerEmail:  ch.user.Email,
		CustomerMobile: ch.user.ContactMobile(),
		Items: []adapter.InvoiceItem{{
			Name:      ch.plan.InvoiceItemName(ch.payment.PaymentType),
			Quantity:  1,
			UnitPrice: ch.amount,
		}},
		CallbackURL: u.link("/payments/subscription/callback", q),
		ErrorURL:    errorURL,
		ReferenceID: ch.payment.ID,
	}
}

// -----------------------------
// Event payments
// -----------------------------

type eventCharge struct {
	event  *model.Event
	user   *model.User
	quote  model.Quote
	amount decimal.Decimal
}

func (u *invoiceUC) CreateEventInvoice(ctx context.Context, req EventInvoiceRequest) (res *InvoiceResult, err error) {
	defer logging.TraceDuration(u.log, "InvoiceUC.CreateEventInvoice")()
	defer func() { metrics.IncInvoiceRequest(invoiceResult(err)) }()

	ch, err := u.loadEventCharge(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, err
	}
	invReq := u.eventInvoiceRequest(ch, "")
	methods, err := u.gateways.Event.Initiate(ctx, invReq)
	if err != nil {
		l := logging.With(ctx, u.log)
		l.Error().Err(err).Str("event_id", req.EventID).Msg("gateway initiate failed")
		return nil, gatewayErr(err)
	}
	return &InvoiceResult{
		PaymentMethods: methods,
		Amount:         ch.amount,
		Currency:       model.CurrencyBHD,
		EventID:        ch.event.ID,
	}, nil
}

func (u *invoiceUC) ExecuteEventPayment(ctx context.Context, req ExecuteEventRequest) (res *PaymentRedirect, err error) {
	defer logging.TraceDuration(u.log, "InvoiceUC.ExecuteEventPayment")()
	defer func() { metrics.IncInvoiceRequest(invoiceResult(err)) }()

	if req.PaymentMethodID <= 0 {
		return nil, domain.E(domain.ErrInvalidArgument, "Missing required field: payment_method_id")
	}
	ch, err := u.loadEventCharge(ctx, req.EventID, req.UserID)
	if err != nil {
		return nil, err
	}

	p, err := model.NewPendingPayment(uuid.NewString(), ch.user.ID, nil, ch.amount, model.PaymentTypeEventRegistration)
	if err != nil {
		return nil, err
	}
	eventID := ch.event.ID
	p.EventID = &eventID
	p.CreatedAt, p.UpdatedAt = u.opts.Now(), u.opts.Now()
	if err := u.repos.Payments.Save(ctx, nil, p); err != nil {
		return nil, fmt.Errorf("insert event payment: %w", err)
	}
	ctx = logging.WithPaymentID(ctx, p.ID)
	log := logging.With(ctx, u.log)

	exec, err := u.gateways.Event.Execute(ctx, u.eventInvoiceRequest(ch, p.ID), req.PaymentMethodID)
	if err != nil {
		log.Error().Err(err).Int("method_id", req.PaymentMethodID).Msg("gateway execute failed")
		return nil, gatewayErr(err)
	}
	if err := u.repos.Payments.SetInvoiceID(ctx, nil, p.ID, exec.InvoiceID); err != nil {
		log.Warn().Err(err).Str("invoice_id", exec.InvoiceID).Msg("failed to store invoice id")
	}
	log.Info().Str("invoice_id", exec.InvoiceID).Str("event_id", eventID).Str("amount", ch.amount.StringFixed(3)).Msg("event payment executed")
	return &PaymentRedirect{PaymentURL: exec.PaymentURL, InvoiceID: exec.InvoiceID, PaymentID: p.ID}, nil
}

func (u *invoiceUC) loadEventCharge(ctx context.Context, eventID, userID string) (*eventCharge, error) {
	if strings.TrimSpace(eventID) == "" || strings.TrimSpace(userID) == "" {
		return nil, domain.E(domain.ErrInvalidArgument, "Missing required fields: event_id and user_id")
	}
	event, err := Retry(ctx, u.opts.Retry, "event.find", func(ctx context.Context) (*model.Event, error) {
		return u.repos.Events.FindByID(ctx, nil, eventID)
	})
	if err != nil {
		return nil, notFoundAs(err, "Event not found")
	}
	if !event.IsPaid {
		return nil, domain.E(domain.ErrInvalidArgument, "This event does not require payment")
	}
	usr, err := Retry(ctx, u.opts.Retry, "user.find", func(ctx context.Context) (*model.User, error) {
		return u.repos.Users.FindByID(ctx, nil, userID)
	})
	if err != nil {
		return nil, notFoundAs(err, "User not found")
	}

	seats, err := Retry(ctx, u.opts.Retry, "event_member.list", func(ctx context.Context) ([]*model.EventMember, error) {
		return u.repos.EventMembers.ListByEventAndUser(ctx, nil, eventID, userID)
	})
	if err != nil {
		return nil, err
	}
	if m := model.PickEventMember(seats); m != nil && m.IsPaid() {
		return nil, domain.E(domain.ErrAlreadyExists, "You have already paid for this event")
	}

	quote := model.QuoteFor(event, usr, u.opts.Now())
	amount := quote.Price
	usages, err := Retry(ctx, u.opts.Retry, "coupon_usage.list", func(ctx context.Context) ([]*model.CouponUsage, error) {
		return u.repos.Coupons.ListProvisionalUsages(ctx, nil, eventID, userID)
	})
	if err != nil {
		return nil, err
	}
	for _, cu := range usages {
		if cu.IsProvisional() && cu.AmountAfter.IsPositive() {
			amount = cu.AmountAfter
			break
		}
	}
	amount = model.RoundBHD(amount)
	if !amount.IsPositive() {
		return nil, domain.E(domain.ErrInvalidArgument, "Event price is not set for your category")
	}
	return &eventCharge{event: event, user: usr, quote: quote, amount: amount}, nil
}

func (u *invoiceUC) eventInvoiceRequest(ch *eventCharge, paymentID string) adapter.InvoiceRequest {
	q := url.Values{}
	q.Set("event_id", ch.event.ID)
	q.Set("user_id", ch.user.ID)
	if paymentID != "" {
		q.Set("payment_id", paymentID)
	}
	ref := paymentID
	if ref == "" {
		ref = ch.event.ID + ":" + ch.user.ID
	}
	return adapter.InvoiceRequest{
		Amount:         ch.amount,
		Currency:       model.CurrencyBHD,
		CustomerName:   ch.user.DisplayName(),
		CustomerEmail:  ch.user.Email,
		CustomerMobile: ch.user.ContactMobile(),
		Items: []adapter.InvoiceItem{{
			Name:      fmt.Sprintf("Event Registration - %s (%s)", ch.event.Title, ch.quote.Category),
			Quantity:  1,
			UnitPrice: ch.amount,
		}},
		CallbackURL: u.link("/payments/event/callback", q),
		ErrorURL:    u.link("/events", url.Values{"error": {"payment_failed"}}),
		ReferenceID: ref,
	}
}

// -----------------------------
// Helpers
// -----------------------------

func (u *invoiceUC) link(path string, q url.Values) string {
	s := strings.TrimRight(u.opts.BaseURL, "/") + path
	if len(q) > 0 {
		s += "?" + q.Encode()
	}
	return s
}

// gatewayErr classifies an unclassified gateway failure as ErrGateway.
func gatewayErr(err error) error {
	if errors.Is(err, domain.ErrGateway) {
		return err
	}
	return domain.Wrap(domain.ErrGateway, "Failed to create payment invoice", err)
}

func invoiceResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrGateway):
		return "gateway_error"
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrAlreadyProcessed), errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrForbidden):
		return "rejected"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	}
	return "error"
}
