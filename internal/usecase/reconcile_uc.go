package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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
var _ ReconcileUseCase = (*reconcileUC)(nil)

const (
	msgUnverifiable = "Payment could not be verified. Please contact support if payment was deducted."
	msgNotCompleted = "Payment was not completed"
)

// errSettledConcurrently signals that another callback settled the record
// between our read and our write.
var errSettledConcurrently = errors.New("settled concurrently")

type ReconcileUseCase interface {
	// ReconcileSubscription settles a membership payment after the gateway
	// redirected the member back to us.
	ReconcileSubscription(ctx context.Context, cb SubscriptionCallback) (*ReconcileOutcome, error)
	// ReconcileEvent settles an event registration payment.
	ReconcileEvent(ctx context.Context, cb EventCallback) (*ReconcileOutcome, error)
}

// SubscriptionCallback carries the query of a membership payment callback.
type SubscriptionCallback struct {
	PaymentID  string // our PendingPayment id (correlation id)
	GatewayID  string // id the gateway appended to the callback URL
	RedirectTo string
	// Background is set by the stale-payment sweeper. Unsettled payments are
	// then left alone instead of being recorded as failed.
	Background bool
}

// EventCallback carries the query of an event payment callback.
type EventCallback struct {
	EventID    string
	UserID     string
	PaymentID  string // optional PendingPayment id created at execute time
	GatewayID  string
	Background bool
}

// ReconcileOutcome is what the member is shown after a callback.
type ReconcileOutcome struct {
	Flow       string
	State      model.ReconcileState
	PaymentID  string
	InvoiceID  string
	Amount     decimal.Decimal
	EventTitle string
	Message    string
	RedirectTo string
}

type reconcileUC struct {
	repos    Repos
	gateways Gateways
	notifier adapter.Notifier
	opts     Options
	log      *zerolog.Logger
}

func NewReconcileUseCase(repos Repos, gateways Gateways, notifier adapter.Notifier, opts Options, logger *zerolog.Logger) *reconcileUC {
	l := logger.With().Str("component", "ReconcileUC").Logger()
	return &reconcileUC{repos: repos, gateways: gateways, notifier: notifier, opts: opts.normalized(), log: &l}
}

// -----------------------------
// Subscription flow
// -----------------------------

func (u *reconcileUC) ReconcileSubscription(ctx context.Context, cb SubscriptionCallback) (out *ReconcileOutcome, err error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.ReconcileSubscription")()
	start := time.Now()
	out = &ReconcileOutcome{Flow: FlowSubscription, State: model.ReconcilePending, PaymentID: cb.PaymentID, RedirectTo: cb.RedirectTo}
	defer func() { u.observe(out, err, start) }()

	if strings.TrimSpace(cb.PaymentID) == "" {
		return out, domain.E(domain.ErrInvalidArgument, "Invalid payment callback")
	}
	ctx = logging.WithPaymentID(ctx, cb.PaymentID)
	log := logging.With(ctx, u.log)

	p, err := Retry(ctx, u.opts.Retry, "pending_payment.find", func(ctx context.Context) (*model.PendingPayment, error) {
		return u.repos.Payments.FindByID(ctx, nil, cb.PaymentID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return out, domain.Wrap(domain.ErrNotFound, "Payment record not found", err)
		}
		return out, err
	}
	out.Amount = p.Amount
	out.InvoiceID = p.InvoiceID

	// Callbacks are delivered at least once.
	if p.Paid {
		log.Info().Str("invoice_id", p.InvoiceID).Msg("payment already confirmed; skipping")
		out.State = model.ReconcileAlreadyProcessed
		out.Message = "Payment already completed"
		return out, nil
	}

	out.State = model.ReconcileVerifying
	status, key, verr := u.verify(ctx, u.gateways.Subscription, p.InvoiceID, cb.GatewayID)
	if verr != nil {
		log.Warn().Err(verr).Str("gateway_id", cb.GatewayID).Str("stored_invoice_id", p.InvoiceID).
			Str("amount", p.Amount.StringFixed(3)).Msg("payment unverifiable; manual reconciliation required")
		if !cb.Background {
			u.recordFailure(ctx, p.UserID, p.ID, cb.GatewayID, p.Amount, string(p.PaymentType), verr.Error())
		}
		out.State = model.ReconcileUnverifiable
		out.Message = msgUnverifiable
		return out, nil
	}
	out.InvoiceID = key
	if !isPaid(status) {
		log.Warn().Str("invoice_id", key).Str("gateway_status", status.Status).Str("gateway_message", status.Message).Msg("payment not paid")
		if !cb.Background {
			u.recordFailure(ctx, p.UserID, p.ID, key, p.Amount, string(p.PaymentType), failureText(status))
		}
		out.State = model.ReconcileFailed
		out.Message = notCompletedMessage(status)
		return out, nil
	}

	var (
		sub  *model.Subscription
		plan *model.SubscriptionPlan
	)
	if p.SubscriptionID != nil {
		sub, err = Retry(ctx, u.opts.Retry, "subscription.find", func(ctx context.Context) (*model.Subscription, error) {
			return u.repos.Subscriptions.FindByID(ctx, nil, *p.SubscriptionID)
		})
		if err != nil {
			return out, fmt.Errorf("load subscription %s: %w", *p.SubscriptionID, err)
		}
		plan, err = Retry(ctx, u.opts.Retry, "plan.find", func(ctx context.Context) (*model.SubscriptionPlan, error) {
			return u.repos.Plans.FindByID(ctx, nil, sub.PlanID)
		})
		if err != nil {
			log.Warn().Err(err).Str("plan_id", sub.PlanID).Msg("plan lookup failed; using stored amount")
			plan = nil
		}
	}

	amount := subscriptionAmount(p, plan)
	if !amount.IsPositive() {
		log.Error().Str("payment_type", string(p.PaymentType)).Msg("payment amount resolved to zero")
	}

	now := u.opts.Now()
	var activated bool
	txErr := u.repos.Tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ok, err := u.repos.Payments.MarkPaid(ctx, tx, p.ID, amount, key, now, "")
		if err != nil {
			return fmt.Errorf("mark payment paid: %w", err)
		}
		if !ok {
			return errSettledConcurrently
		}

		if p.SubscriptionID != nil {
			locked, err := u.repos.Subscriptions.FindByID(ctx, tx, *p.SubscriptionID)
			if err != nil {
				return fmt.Errorf("lock subscription: %w", err)
			}
			activated, err = locked.ApplyPayment(p.PaymentType, p.ID, plan, now)
			if err != nil {
				return fmt.Errorf("apply %s payment: %w", p.PaymentType, err)
			}
			if err := u.repos.Subscriptions.Update(ctx, tx, locked); err != nil {
				return fmt.Errorf("update subscription: %w", err)
			}
			sub = locked

			if p.PaymentType == model.PaymentTypeCombined {
				if err := u.sweepSiblings(ctx, tx, p, key, now); err != nil {
					return err
				}
			}

			if locked.IsActive() && plan != nil {
				usr, err := u.repos.Users.FindByID(ctx, tx, p.UserID)
				if err != nil {
					return fmt.Errorf("load user: %w", err)
				}
				usr.ActivateMembership(plan, locked.ExpiresAt)
				if err := u.repos.Users.UpdateMembership(ctx, tx, usr); err != nil {
					return fmt.Errorf("update membership: %w", err)
				}
			}
		}

		return u.repos.History.Insert(ctx, tx, &model.PaymentHistoryRecord{
			ID:         uuid.NewString(),
			UserID:     p.UserID,
			PaymentID:  p.ID,
			InvoiceID:  key,
			Amount:     amount,
			Currency:   currencyOf(p),
			Status:     model.HistoryStatusCompleted,
			PaymentFor: string(p.PaymentType),
			Details:    subscriptionDetails(p, sub, plan),
			CreatedAt:  now,
		})
	})
	if errors.Is(txErr, errSettledConcurrently) {
		log.Info().Msg("payment settled by a concurrent callback")
		out.State = model.ReconcileAlreadyProcessed
		out.Message = "Payment already completed"
		return out, nil
	}
	if txErr != nil {
		log.Error().Err(txErr).Str("invoice_id", key).Str("amount", amount.StringFixed(3)).Msg("confirmed payment could not be recorded")
		return out, txErr
	}

	out.State = model.ReconcileConfirmed
	out.Amount = amount
	out.Message = "Payment completed successfully. Your membership has been updated."
	metrics.AddPaymentRevenue(currencyOf(p), amount)
	if activated {
		metrics.IncSubscriptionActivated(string(p.PaymentType))
	}
	log.Info().Str("invoice_id", key).Str("amount", amount.StringFixed(3)).Bool("activated", activated).Msg("subscription payment confirmed")

	u.notifySubscription(ctx, p, sub, plan, amount, key, activated, now)
	return out, nil
}

// subscriptionAmount picks the charged amount: the plan's current price for
// the payment type, else the amount stored on the row.
func subscriptionAmount(p *model.PendingPayment, plan *model.SubscriptionPlan) decimal.Decimal {
	if plan != nil {
		if price, err := plan.PriceFor(p.PaymentType); err == nil && price.IsPositive() {
			return model.RoundBHD(price)
		}
	}
	return model.RoundBHD(p.Amount)
}

func (u *reconcileUC) sweepSiblings(ctx context.Context, tx repository.Tx, p *model.PendingPayment, key string, now time.Time) error {
	siblings, err := u.repos.Payments.ListUnpaidBySubscription(ctx, tx, *p.SubscriptionID)
	if err != nil {
		return fmt.Errorf("list sibling payments: %w", err)
	}
	note := fmt.Sprintf("Paid by association with combined payment %s", p.ID)
	for _, s := range siblings {
		if s.ID == p.ID || s.Paid {
			continue
		}
		if _, err := u.repos.Payments.MarkPaid(ctx, tx, s.ID, s.Amount, key, now, note); err != nil {
			return fmt.Errorf("mark sibling %s paid: %w", s.ID, err)
		}
	}
	return nil
}

func subscriptionDetails(p *model.PendingPayment, sub *model.Subscription, plan *model.SubscriptionPlan) map[string]any {
	d := map[string]any{"payment_type": string(p.PaymentType)}
	if sub != nil {
		d["subscription_id"] = sub.ID
		d["subscription_status"] = string(sub.Status)
		if sub.ExpiresAt != nil {
			d["expires_at"] = sub.ExpiresAt.UTC().Format(time.RFC3339)
		}
	}
	if plan != nil {
		d["plan_id"] = plan.ID
		d["plan_name"] = plan.Name
	}
	return d
}

func (u *reconcileUC) notifySubscription(ctx context.Context, p *model.PendingPayment, sub *model.Subscription, plan *model.SubscriptionPlan, amount decimal.Decimal, invoiceID string, activated bool, now time.Time) {
	log := logging.With(ctx, u.log)
	usr, err := Retry(ctx, u.opts.Retry, "user.find", func(ctx context.Context) (*model.User, error) {
		return u.repos.Users.FindByID(ctx, nil, p.UserID)
	})
	if err != nil || usr.Email == "" {
		log.Warn().Err(err).Msg("no recipient for payment emails")
		metrics.IncNotification("payment_confirmation", "skipped")
		return
	}

	planName := "Membership"
	if plan != nil {
		planName = plan.Title()
	}
	var expiry *time.Time
	if sub != nil {
		expiry = sub.ExpiresAt
	}
	res := u.notifier.SendPaymentConfirmation(ctx, usr.Email, adapter.PaymentConfirmation{
		Name:        usr.DisplayName(),
		PlanName:    planName,
		Amount:      amount,
		Currency:    currencyOf(p),
		PaymentDate: now,
		ExpiryDate:  expiry,
		InvoiceID:   invoiceID,
	})
	u.logNotification(log, "payment_confirmation", res)

	if activated && p.PaymentType.CoversRegistration() {
		memberID := usr.MembershipCode
		if memberID == "" {
			memberID = usr.ID
		}
		membershipType := usr.MembershipType
		if plan != nil {
			membershipType = plan.MembershipType()
		}
		res := u.notifier.SendWelcome(ctx, usr.Email, adapter.Welcome{
			Name:           usr.DisplayName(),
			MembershipType: membershipType,
			MemberID:       memberID,
		})
		u.logNotification(log, "welcome", res)
	}
}

// -----------------------------
// Event flow
// -----------------------------

func (u *reconcileUC) ReconcileEvent(ctx context.Context, cb EventCallback) (out *ReconcileOutcome, err error) {
	defer logging.TraceDuration(u.log, "ReconcileUC.ReconcileEvent")()
	start := time.Now()
	out = &ReconcileOutcome{Flow: FlowEvent, State: model.ReconcilePending, PaymentID: cb.PaymentID}
	defer func() { u.observe(out, err, start) }()

	if strings.TrimSpace(cb.EventID) == "" || strings.TrimSpace(cb.UserID) == "" {
		return out, domain.E(domain.ErrInvalidArgument, "Invalid payment callback")
	}
	ctx = logging.WithUserID(ctx, cb.UserID)
	log := logging.With(ctx, u.log).With().Str("event_id", cb.EventID).Logger()

	event, err := Retry(ctx, u.opts.Retry, "event.find", func(ctx context.Context) (*model.Event, error) {
		return u.repos.Events.FindByID(ctx, nil, cb.EventID)
	})
	if err != nil {
		return out, notFoundAs(err, "Event not found")
	}
	out.EventTitle = event.Title

	usr, err := Retry(ctx, u.opts.Retry, "user.find", func(ctx context.Context) (*model.User, error) {
		return u.repos.Users.FindByID(ctx, nil, cb.UserID)
	})
	if err != nil {
		return out, notFoundAs(err, "User not found")
	}

	var pending *model.PendingPayment
	if cb.PaymentID != "" {
		pending, err = Retry(ctx, u.opts.Retry, "pending_payment.find", func(ctx context.Context) (*model.PendingPayment, error) {
			return u.repos.Payments.FindByID(ctx, nil, cb.PaymentID)
		})
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return out, err
		}
		if pending != nil && pending.UserID != cb.UserID {
			log.Warn().Str("payment_user_id", pending.UserID).Msg("callback payment belongs to another user; ignoring it")
			pending = nil
		}
	}

	rows, err := Retry(ctx, u.opts.Retry, "event_member.list", func(ctx context.Context) ([]*model.EventMember, error) {
		return u.repos.EventMembers.ListByEventAndUser(ctx, nil, cb.EventID, cb.UserID)
	})
	if err != nil {
		return out, err
	}
	member := model.PickEventMember(rows)
	if len(rows) > 1 {
		log.Warn().Int("rows", len(rows)).Str("selected_id", member.ID).Msg("duplicate event member rows")
	}
	if member == nil {
		// The member paid but registration never wrote a seat.
		member, err = model.NewEventMember(uuid.NewString(), cb.EventID, cb.UserID, usr.MembershipType == model.MembershipTypePaid, u.opts.Now())
		if err != nil {
			return out, err
		}
		if err := u.repos.EventMembers.Save(ctx, nil, member); err != nil {
			return out, fmt.Errorf("create event member: %w", err)
		}
		log.Info().Str("event_member_id", member.ID).Msg("event member created from callback")
	}

	if member.IsPaid() || (pending != nil && pending.Paid) {
		out.State = model.ReconcileAlreadyProcessed
		out.Amount = member.PricePaid
		out.Message = "Payment already completed"
		return out, nil
	}

	paymentID := member.ID
	stored := ""
	if pending != nil {
		paymentID, stored = pending.ID, pending.InvoiceID
	}
	out.PaymentID = paymentID

	now := u.opts.Now()
	quote := model.QuoteFor(event, usr, now)

	out.State = model.ReconcileVerifying
	status, key, verr := u.verify(ctx, u.gateways.Event, stored, cb.GatewayID)
	if verr != nil {
		log.Warn().Err(verr).Str("gateway_id", cb.GatewayID).Str("event_member_id", member.ID).
			Msg("event payment unverifiable; manual reconciliation required")
		if !cb.Background {
			u.recordFailure(ctx, usr.ID, paymentID, cb.GatewayID, quote.Price, eventPaymentFor(event), verr.Error())
		}
		out.State = model.ReconcileUnverifiable
		out.Message = msgUnverifiable
		return out, nil
	}
	out.InvoiceID = key
	if !isPaid(status) {
		log.Warn().Str("invoice_id", key).Str("gateway_status", status.Status).Msg("event payment not paid")
		if !cb.Background {
			u.recordFailure(ctx, usr.ID, paymentID, key, quote.Price, eventPaymentFor(event), failureText(status))
		}
		out.State = model.ReconcileFailed
		out.Message = notCompletedMessage(status)
		return out, nil
	}

	usages, err := Retry(ctx, u.opts.Retry, "coupon_usage.list", func(ctx context.Context) ([]*model.CouponUsage, error) {
		return u.repos.Coupons.ListProvisionalUsages(ctx, nil, cb.EventID, cb.UserID)
	})
	if err != nil {
		log.Warn().Err(err).Msg("provisional coupon lookup failed; pricing without discount")
		usages = nil
	}

	amount, source, applied := eventAmount(usages, quote, member, pending, event, status)
	if !amount.IsPositive() {
		log.Error().Str("event_member_id", member.ID).Str("invoice_id", key).Msg("cannot determine event payment amount")
		// The gateway took the money, so leave a trail for support.
		u.recordFailure(ctx, usr.ID, paymentID, key, status.Amount, eventPaymentFor(event), "paid at gateway but the amount could not be determined")
		return out, domain.E(domain.ErrOperationFailed, "Payment amount could not be determined. Please contact support.")
	}
	log.Debug().Str("amount", amount.StringFixed(3)).Str("source", source).Msg("event amount resolved")

	txErr := u.repos.Tx.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Another delivery of this callback may have created and paid its own seat.
		seats, err := u.repos.EventMembers.ListByEventAndUser(ctx, tx, cb.EventID, cb.UserID)
		if err != nil {
			return fmt.Errorf("lock event seats: %w", err)
		}
		for _, s := range seats {
			if s.IsPaid() {
				return errSettledConcurrently
			}
		}
		ok, err := u.repos.EventMembers.MarkPaid(ctx, tx, member.ID, amount, string(quote.Category))
		if err != nil {
			return fmt.Errorf("mark event member paid: %w", err)
		}
		if !ok {
			return errSettledConcurrently
		}
		if pending != nil {
			if _, err := u.repos.Payments.MarkPaid(ctx, tx, pending.ID, amount, key, now, ""); err != nil {
				return fmt.Errorf("mark payment paid: %w", err)
			}
		}
		if applied != nil {
			applied.Finalize(member.ID, paymentID, key)
			finalized, err := u.repos.Coupons.FinalizeUsage(ctx, tx, applied)
			if err != nil {
				return fmt.Errorf("finalize coupon usage %s: %w", applied.ID, err)
			}
			if finalized {
				if err := u.repos.Coupons.IncrementUsed(ctx, tx, applied.CouponID); err != nil {
					return fmt.Errorf("increment coupon %s: %w", applied.CouponID, err)
				}
			}
		}
		if len(usages) > 0 {
			keep := ""
			if applied != nil {
				keep = applied.CouponID
			}
			if _, err := u.repos.Coupons.DiscardProvisionalUsages(ctx, tx, cb.EventID, cb.UserID, keep); err != nil {
				return fmt.Errorf("discard superseded coupon usages: %w", err)
			}
		}
		couponUsageID := ""
		if applied != nil {
			couponUsageID = applied.ID
		}
		return u.repos.History.Insert(ctx, tx, &model.PaymentHistoryRecord{
			ID:         uuid.NewString(),
			UserID:     usr.ID,
			PaymentID:  paymentID,
			InvoiceID:  key,
			Amount:     amount,
			Currency:   model.CurrencyBHD,
			Status:     model.HistoryStatusCompleted,
			PaymentFor: eventPaymentFor(event),
			Details: map[string]any{
				"event_id":         event.ID,
				"event_member_id":  member.ID,
				"pricing_category": string(quote.Category),
				"pricing_tier":     string(quote.Tier),
				"amount_source":    source,
				"coupon_usage_id":  couponUsageID,
			},
			CreatedAt: now,
		})
	})
	if errors.Is(txErr, errSettledConcurrently) {
		out.State = model.ReconcileAlreadyProcessed
		out.Message = "Payment already completed"
		return out, nil
	}
	if txErr != nil {
		log.Error().Err(txErr).Str("invoice_id", key).Str("amount", amount.StringFixed(3)).Msg("confirmed event payment could not be recorded")
		return out, txErr
	}
	_ = member.MarkPaid(amount, quote.Category)

	out.State = model.ReconcileConfirmed
	out.Amount = amount
	out.Message = "Payment completed successfully"
	metrics.AddPaymentRevenue(model.CurrencyBHD, amount)
	log.Info().Str("invoice_id", key).Str("amount", amount.StringFixed(3)).Str("event_member_id", member.ID).Msg("event payment confirmed")

	if usr.Email != "" {
		res := u.notifier.SendEventJoin(ctx, usr.Email, adapter.EventJoin{
			Name:      usr.DisplayName(),
			EventName: event.Title,
			EventDate: event.StartAt,
			EventCode: member.Token,
			PricePaid: amount,
			Currency:  model.CurrencyBHD,
		})
		u.logNotification(&log, "event_join", res)
	}
	return out, nil
}

// eventAmount resolves what the member was charged, in order: the newest
// provisional coupon amount, the current price for their category, what the
// local records already hold, the event's list price, and finally what the
// gateway reports. The coupon usage that priced the charge is returned too.
func eventAmount(usages []*model.CouponUsage, quote model.Quote, member *model.EventMember, pending *model.PendingPayment, event *model.Event, status *adapter.PaymentStatus) (decimal.Decimal, string, *model.CouponUsage) {
	for _, cu := range usages {
		if cu.IsProvisional() && cu.AmountAfter.IsPositive() {
			return model.RoundBHD(cu.AmountAfter), "coupon", cu
		}
	}
	if quote.Price.IsPositive() {
		return model.RoundBHD(quote.Price), "pricing", nil
	}
	if member.PricePaid.IsPositive() {
		return member.PricePaid, "stored", nil
	}
	if pending != nil && pending.Amount.IsPositive() {
		return model.RoundBHD(pending.Amount), "stored", nil
	}
	if base := event.BasePrice(); base.IsPositive() {
		return model.RoundBHD(base), "base_price", nil
	}
	if status != nil && status.Amount.IsPositive() {
		return model.RoundBHD(status.Amount), "gateway", nil
	}
	return decimal.Zero, "none", nil
}

func eventPaymentFor(e *model.Event) string {
	return "event: " + e.Title
}

// -----------------------------
// Shared helpers
// -----------------------------

type statusAttempt struct {
	key     string
	keyType adapter.KeyType
}

// statusAttempts lists the lookups to try, in order: the invoice id stored at
// execute time, the callback id as an InvoiceId (with and without leading
// zeros), then the callback id as a PaymentId.
func statusAttempts(stored, fromURL string) []statusAttempt {
	var out []statusAttempt
	seen := map[statusAttempt]bool{}
	add := func(key string, kt adapter.KeyType) {
		a := statusAttempt{key: strings.TrimSpace(key), keyType: kt}
		if a.key == "" || seen[a] {
			return
		}
		seen[a] = true
		out = append(out, a)
	}
	add(stored, adapter.KeyInvoiceID)
	if fromURL = strings.TrimSpace(fromURL); fromURL != "" {
		if trimmed := strings.TrimLeft(fromURL, "0"); len(trimmed) <= 10 {
			add(trimmed, adapter.KeyInvoiceID)
		}
		add(fromURL, adapter.KeyInvoiceID)
		add(fromURL, adapter.KeyPaymentID)
	}
	return out
}

// verify asks the gateway for the payment status, stopping at the first
// lookup it answers. It returns the key that worked.
func (u *reconcileUC) verify(ctx context.Context, gw adapter.PaymentGateway, stored, fromURL string) (*adapter.PaymentStatus, string, error) {
	log := logging.With(ctx, u.log)
	attempts := statusAttempts(stored, fromURL)
	if len(attempts) == 0 {
		return nil, "", domain.E(domain.ErrUnverifiable, "no invoice id to verify")
	}
	var lastErr error
	for _, a := range attempts {
		st, err := gw.GetStatus(ctx, a.key, a.keyType)
		if err == nil && st != nil {
			return st, a.key, nil
		}
		lastErr = err
		log.Debug().Err(err).Str("key", a.key).Str("key_type", string(a.keyType)).Msg("status lookup failed")
	}
	return nil, "", domain.Wrap(domain.ErrUnverifiable, "status lookups exhausted", lastErr)
}

func isPaid(st *adapter.PaymentStatus) bool {
	return st != nil && strings.EqualFold(strings.TrimSpace(st.Status), "paid")
}

func failureText(st *adapter.PaymentStatus) string {
	if st.Message != "" {
		return st.Message
	}
	return "gateway status: " + st.Status
}

func notCompletedMessage(st *adapter.PaymentStatus) string {
	if st.Message != "" {
		return msgNotCompleted + ": " + st.Message
	}
	return msgNotCompleted
}

// recordFailure appends a failed history entry. The entry is audit only, so
// a write failure is logged and otherwise ignored.
func (u *reconcileUC) recordFailure(ctx context.Context, userID, paymentID, invoiceID string, amount decimal.Decimal, paymentFor, reason string) {
	rec := &model.PaymentHistoryRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		PaymentID:    paymentID,
		InvoiceID:    invoiceID,
		Amount:       amount,
		Currency:     model.CurrencyBHD,
		Status:       model.HistoryStatusFailed,
		PaymentFor:   paymentFor,
		ErrorMessage: reason,
		CreatedAt:    u.opts.Now(),
	}
	if err := u.repos.History.Insert(ctx, nil, rec); err != nil {
		l := logging.With(ctx, u.log)
		l.Error().Err(err).Str("invoice_id", invoiceID).Msg("failed to write payment history")
	}
}

func (u *reconcileUC) logNotification(log *zerolog.Logger, kind string, res adapter.NotificationResult) {
	if res.Success {
		metrics.IncNotification(kind, "sent")
		log.Info().Str("kind", kind).Str("message_id", res.MessageID).Msg("notification sent")
		return
	}
	metrics.IncNotification(kind, "error")
	log.Warn().Str("kind", kind).Str("error", res.Error).Msg("notification failed")
}

func (u *reconcileUC) observe(out *ReconcileOutcome, err error, start time.Time) {
	state := string(out.State)
	if err != nil {
		state = "error"
	}
	metrics.ObserveReconcile(out.Flow, state, time.Since(start))
}

func currencyOf(p *model.PendingPayment) string {
	if p.Currency != "" {
		return p.Currency
	}
	return model.CurrencyBHD
}

func notFoundAs(err error, msg string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Wrap(domain.ErrNotFound, msg, err)
	}
	return err
}
