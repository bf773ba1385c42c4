package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/infra/logging"
)

// Compile-time check
var _ CouponUseCase = (*couponUC)(nil)

type CouponUseCase interface {
	// ApplyCoupon prices the event for the user with the coupon applied and
	// records a provisional usage. The coupon's used count is only touched
	// once the payment is confirmed.
	ApplyCoupon(ctx context.Context, req ApplyCouponRequest) (*CouponQuote, error)
}

type ApplyCouponRequest struct {
	EventID string
	UserID  string
	Code    string
}

type CouponQuote struct {
	Code           string
	OriginalPrice  decimal.Decimal
	DiscountAmount decimal.Decimal
	FinalPrice     decimal.Decimal
	Category       model.PricingCategory
	Tier           model.PricingTier
}

type couponUC struct {
	repos Repos
	opts  Options
	log   *zerolog.Logger
}

func NewCouponUseCase(repos Repos, opts Options, logger *zerolog.Logger) *couponUC {
	l := logger.With().Str("component", "CouponUC").Logger()
	return &couponUC{repos: repos, opts: opts.normalized(), log: &l}
}

func (u *couponUC) ApplyCoupon(ctx context.Context, req ApplyCouponRequest) (*CouponQuote, error) {
	defer logging.TraceDuration(u.log, "CouponUC.ApplyCoupon")()

	code := model.NormalizeCouponCode(req.Code)
	if code == "" || strings.TrimSpace(req.EventID) == "" || strings.TrimSpace(req.UserID) == "" {
		return nil, domain.E(domain.ErrInvalidArgument, "Coupon code is required")
	}
	ctx = logging.WithUserID(ctx, req.UserID)

	event, err := Retry(ctx, u.opts.Retry, "event.find", func(ctx context.Context) (*model.Event, error) {
		return u.repos.Events.FindByID(ctx, nil, req.EventID)
	})
	if err != nil {
		return nil, notFoundAs(err, "Event not found")
	}
	if !event.IsPaid {
		return nil, domain.E(domain.ErrCouponInvalid, "Coupons can only be applied to paid events")
	}
	usr, err := Retry(ctx, u.opts.Retry, "user.find", func(ctx context.Context) (*model.User, error) {
		return u.repos.Users.FindByID(ctx, nil, req.UserID)
	})
	if err != nil {
		return nil, notFoundAs(err, "User not found")
	}

	now := u.opts.Now()
	quote := model.QuoteFor(event, usr, now)
	if !quote.Price.IsPositive() {
		return nil, domain.E(domain.ErrCouponInvalid, "Event price is not set for your category")
	}

	coupon, err := Retry(ctx, u.opts.Retry, "coupon.find", func(ctx context.Context) (*model.Coupon, error) {
		return u.repos.Coupons.FindActiveByCode(ctx, nil, req.EventID, code)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.E(domain.ErrCouponInvalid, "Invalid or expired coupon code")
	}
	if err != nil {
		return nil, err
	}
	if err := coupon.CheckRedeemable(now); err != nil {
		return nil, err
	}

	used, err := Retry(ctx, u.opts.Retry, "coupon_usage.finalized", func(ctx context.Context) (bool, error) {
		return u.repos.Coupons.HasFinalizedUsage(ctx, nil, coupon.ID, req.EventID, req.UserID)
	})
	if err != nil {
		return nil, err
	}
	if used {
		return nil, domain.E(domain.ErrCouponInvalid, "You have already used this coupon")
	}

	seats, err := Retry(ctx, u.opts.Retry, "event_member.list", func(ctx context.Context) ([]*model.EventMember, error) {
		return u.repos.EventMembers.ListByEventAndUser(ctx, nil, req.EventID, req.UserID)
	})
	if err != nil {
		return nil, err
	}
	if m := model.PickEventMember(seats); m != nil && m.IsPaid() {
		prior, err := u.repos.Coupons.HasAnyUsage(ctx, nil, coupon.ID, req.EventID, req.UserID)
		if err != nil {
			return nil, err
		}
		if prior {
			return nil, domain.E(domain.ErrCouponInvalid, "You have already used this coupon")
		}
	}

	discount, err := coupon.Discount(quote.Price)
	if err != nil {
		return nil, err
	}
	final := model.RoundBHD(quote.Price.Sub(discount))
	if !final.IsPositive() {
		// A zero invoice cannot be sent to the gateway.
		return nil, domain.E(domain.ErrCouponInvalid, "This coupon cannot be used for online payment")
	}

	usage := &model.CouponUsage{
		ID:             uuid.NewString(),
		CouponID:       coupon.ID,
		EventID:        req.EventID,
		UserID:         req.UserID,
		AmountBefore:   model.RoundBHD(quote.Price),
		DiscountAmount: discount,
		AmountAfter:    final,
		CreatedAt:      now,
	}
	if err := u.repos.Coupons.SaveProvisionalUsage(ctx, nil, usage); err != nil {
		return nil, err
	}

	l := logging.With(ctx, u.log)
	// Only the latest coupon prices the payment.
	if n, err := u.repos.Coupons.DiscardProvisionalUsages(ctx, nil, req.EventID, req.UserID, coupon.ID); err != nil {
		l.Warn().Err(err).Str("event_id", req.EventID).Msg("failed to discard superseded coupon usages")
	} else if n > 0 {
		l.Debug().Int64("discarded", n).Str("event_id", req.EventID).Msg("superseded coupon usages discarded")
	}
	l.Info().Str("event_id", req.EventID).Str("coupon", code).Str("discount", discount.StringFixed(3)).
		Str("final", final.StringFixed(3)).Msg("coupon applied")
	return &CouponQuote{
		Code:           code,
		OriginalPrice:  usage.AmountBefore,
		DiscountAmount: discount,
		FinalPrice:     final,
		Category:       quote.Category,
		Tier:           quote.Tier,
	}, nil
}
