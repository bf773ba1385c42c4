package usecase

import (
	"time"

	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/domain/ports/repository"
)

const (
	FlowSubscription = "subscription"
	FlowEvent        = "event"
)

// Repos bundles the persistence ports the payment use cases share.
type Repos struct {
	Payments      repository.PendingPaymentRepository
	Subscriptions repository.SubscriptionRepository
	Plans         repository.SubscriptionPlanRepository
	Users         repository.UserRepository
	Events        repository.EventRepository
	EventMembers  repository.EventMemberRepository
	Coupons       repository.CouponRepository
	History       repository.PaymentHistoryRepository
	Tx            repository.TransactionManager
}

// Gateways holds one client per merchant account. Event and membership
// payments settle into different accounts.
type Gateways struct {
	Subscription adapter.PaymentGateway
	Event        adapter.PaymentGateway
}

// Options carries tunables shared by the payment use cases.
type Options struct {
	BaseURL string // public site URL used to build callback links
	Retry   RetryPolicy
	Now     func() time.Time
}

func (o Options) normalized() Options {
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Retry.IsTransient == nil {
		o.Retry = DefaultRetryPolicy()
	}
	return o
}
