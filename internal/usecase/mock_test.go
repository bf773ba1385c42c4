//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/adapter"
	"bds-membership/internal/domain/ports/repository"
	"bds-membership/internal/usecase"
)

// -----------------------------
// Utilities: tiny helpers
// -----------------------------

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr[T any](v T) *T { return &v }

func fixedNow(t time.Time) func() time.Time { return func() time.Time { return t } }

// noWaitRetry retries like production but never sleeps; delays are recorded.
func noWaitRetry(delays *[]time.Duration) usecase.RetryPolicy {
	p := usecase.DefaultRetryPolicy()
	p.Sleep = func(ctx context.Context, d time.Duration) error {
		if delays != nil {
			*delays = append(*delays, d)
		}
		return nil
	}
	return p
}

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// =============================
// Adapters
// =============================

// ---- Mock PaymentGateway ----

type statusCall struct {
	Key     string
	KeyType adapter.KeyType
}

type MockGateway struct {
	mu sync.Mutex

	// Statuses answers GetStatus by "<KeyType>:<key>"; unknown keys fail.
	Statuses map[string]*adapter.PaymentStatus

	InitiateFunc  func(ctx context.Context, req adapter.InvoiceRequest) ([]adapter.PaymentMethod, error)
	ExecuteFunc   func(ctx context.Context, req adapter.InvoiceRequest, methodID int) (*adapter.ExecuteResult, error)
	GetStatusFunc func(ctx context.Context, key string, kt adapter.KeyType) (*adapter.PaymentStatus, error)

	Initiated   []adapter.InvoiceRequest
	Executed    []adapter.InvoiceRequest
	StatusCalls []statusCall
}

var _ adapter.PaymentGateway = (*MockGateway)(nil)

func NewMockGateway() *MockGateway {
	return &MockGateway{Statuses: map[string]*adapter.PaymentStatus{}}
}

// Paid registers a paid invoice answering to key under kt.
func (g *MockGateway) Paid(kt adapter.KeyType, key, amount string) {
	g.Statuses[string(kt)+":"+key] = &adapter.PaymentStatus{InvoiceID: key, Status: "Paid", Amount: dec(amount)}
}

func (g *MockGateway) Name() string { return "mock" }

func (g *MockGateway) Initiate(ctx context.Context, req adapter.InvoiceRequest) ([]adapter.PaymentMethod, error) {
	g.mu.Lock()
	g.Initiated = append(g.Initiated, req)
	g.mu.Unlock()
	if g.InitiateFunc != nil {
		return g.InitiateFunc(ctx, req)
	}
	return []adapter.PaymentMethod{
		{ID: 1, Name: "KNET", Code: "kn", TotalAmount: req.Amount, Currency: req.Currency},
		{ID: 2, Name: "VISA/MASTER", Code: "vm", TotalAmount: req.Amount, Currency: req.Currency},
	}, nil
}

func (g *MockGateway) Execute(ctx context.Context, req adapter.InvoiceRequest, methodID int) (*adapter.ExecuteResult, error) {
	g.mu.Lock()
	g.Executed = append(g.Executed, req)
	g.mu.Unlock()
	if g.ExecuteFunc != nil {
		return g.ExecuteFunc(ctx, req, methodID)
	}
	return &adapter.ExecuteResult{InvoiceID: "5550001", PaymentURL: "https://pay.example/5550001"}, nil
}

func (g *MockGateway) GetStatus(ctx context.Context, key string, kt adapter.KeyType) (*adapter.PaymentStatus, error) {
	g.mu.Lock()
	g.StatusCalls = append(g.StatusCalls, statusCall{Key: key, KeyType: kt})
	st, ok := g.Statuses[string(kt)+":"+key]
	g.mu.Unlock()
	if g.GetStatusFunc != nil {
		return g.GetStatusFunc(ctx, key, kt)
	}
	if !ok {
		return nil, fmt.Errorf("%w: invoice %s not found", domain.ErrGateway, key)
	}
	cp := *st
	return &cp, nil
}

// ---- Mock Notifier ----

type MockNotifier struct {
	mu sync.Mutex

	Fail bool

	Confirmations []adapter.PaymentConfirmation
	Welcomes      []adapter.Welcome
	EventJoins    []adapter.EventJoin
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (n *MockNotifier) result() adapter.NotificationResult {
	if n.Fail {
		return adapter.NotificationResult{Success: false, Error: "smtp: connection refused"}
	}
	return adapter.NotificationResult{Success: true, MessageID: "<msg@test>"}
}

func (n *MockNotifier) SendPaymentConfirmation(ctx context.Context, to string, data adapter.PaymentConfirmation) adapter.NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Confirmations = append(n.Confirmations, data)
	return n.result()
}

func (n *MockNotifier) SendWelcome(ctx context.Context, to string, data adapter.Welcome) adapter.NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Welcomes = append(n.Welcomes, data)
	return n.result()
}

func (n *MockNotifier) SendEventJoin(ctx context.Context, to string, data adapter.EventJoin) adapter.NotificationResult {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.EventJoins = append(n.EventJoins, data)
	return n.result()
}

// =============================
// Repositories
// =============================

// ---- Mock PendingPaymentRepository ----

type MockPaymentRepo struct {
	mu   sync.Mutex
	data map[string]*model.PendingPayment

	FindByIDFunc     func(ctx context.Context, tx repository.Tx, id string) (*model.PendingPayment, error)
	MarkPaidFunc     func(ctx context.Context, tx repository.Tx, id string) (bool, error)
	SetInvoiceIDFunc func(ctx context.Context, tx repository.Tx, id, invoiceID string) error
}

var _ repository.PendingPaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[string]*model.PendingPayment{}}
}

// Get returns a copy of the stored row, or nil.
func (r *MockPaymentRepo) Get(id string) *model.PendingPayment {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (r *MockPaymentRepo) All() []*model.PendingPayment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.PendingPayment, 0, len(r.data))
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PendingPayment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	if p := r.Get(id); p != nil {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PendingPayment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal, reference string, paidAt time.Time, note string) (bool, error) {
	if r.MarkPaidFunc != nil {
		return r.MarkPaidFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.Paid {
		return false, nil
	}
	p.Paid = true
	p.Amount = amount
	p.Reference = reference
	p.PaidAt = &paidAt
	if note != "" {
		p.Notes = appendNote(p.Notes, note)
	}
	return true, nil
}

func (r *MockPaymentRepo) SetInvoiceID(ctx context.Context, tx repository.Tx, id, invoiceID string) error {
	if r.SetInvoiceIDFunc != nil {
		return r.SetInvoiceIDFunc(ctx, tx, id, invoiceID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.InvoiceID = invoiceID
	return nil
}

func (r *MockPaymentRepo) AppendNote(ctx context.Context, tx repository.Tx, id, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Notes = appendNote(p.Notes, note)
	return nil
}

func appendNote(cur, note string) string {
	if cur == "" {
		return note
	}
	return cur + "\n" + note
}

func (r *MockPaymentRepo) ListUnpaidBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.PendingPayment, error) {
	var out []*model.PendingPayment
	for _, p := range r.All() {
		if !p.Paid && p.BelongsTo(subscriptionID) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ListStaleUnpaid(ctx context.Context, tx repository.Tx, since, before time.Time, limit int) ([]*model.PendingPayment, error) {
	var out []*model.PendingPayment
	for _, p := range r.All() {
		if !p.Paid && p.InvoiceID != "" && !p.CreatedAt.Before(since) && p.CreatedAt.Before(before) {
			out = append(out, p)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- Mock PaymentHistoryRepository ----

type MockHistoryRepo struct {
	mu      sync.Mutex
	Records []*model.PaymentHistoryRecord

	InsertErr error
}

var _ repository.PaymentHistoryRepository = (*MockHistoryRepo)(nil)

func (r *MockHistoryRepo) Insert(ctx context.Context, tx repository.Tx, rec *model.PaymentHistoryRecord) error {
	if r.InsertErr != nil {
		return r.InsertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *rec
	r.Records = append(r.Records, &cp)
	return nil
}

func (r *MockHistoryRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, limit int) ([]*model.PaymentHistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentHistoryRecord
	for i := len(r.Records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.Records[i].UserID == userID {
			out = append(out, r.Records[i])
		}
	}
	return out, nil
}

func (r *MockHistoryRepo) ByStatus(s model.HistoryStatus) []*model.PaymentHistoryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PaymentHistoryRecord
	for _, rec := range r.Records {
		if rec.Status == s {
			out = append(out, rec)
		}
	}
	return out
}

// ---- Mock SubscriptionRepository ----

type MockSubscriptionRepo struct {
	mu   sync.Mutex
	data map[string]*model.Subscription

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error)
	UpdateFunc   func(ctx context.Context, tx repository.Tx, s *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{data: map[string]*model.Subscription{}}
}

func (r *MockSubscriptionRepo) Put(s *model.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.data[s.ID] = &cp
}

func (r *MockSubscriptionRepo) Get(id string) *model.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (r *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	if s := r.Get(id); s != nil {
		return s, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockSubscriptionRepo) Update(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, tx, s)
	}
	r.Put(s)
	return nil
}

func (r *MockSubscriptionRepo) ListDueForExpiry(ctx context.Context, tx repository.Tx, now time.Time, limit int) ([]*model.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Subscription
	for _, s := range r.data {
		if s.Status != model.SubscriptionStatusExpired && s.ExpiresAt != nil && s.ExpiresAt.Before(now) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MockSubscriptionRepo) CountActiveByUser(ctx context.Context, tx repository.Tx, userID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.data {
		if s.UserID == userID && s.IsActive() {
			n++
		}
	}
	return n, nil
}

// ---- Mock SubscriptionPlanRepository ----

type MockPlanRepo struct {
	mu   sync.Mutex
	data map[string]*model.SubscriptionPlan
}

var _ repository.SubscriptionPlanRepository = (*MockPlanRepo)(nil)

func NewMockPlanRepo(plans ...*model.SubscriptionPlan) *MockPlanRepo {
	r := &MockPlanRepo{data: map[string]*model.SubscriptionPlan{}}
	for _, p := range plans {
		r.data[p.ID] = p
	}
	return r
}

func (r *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.data[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock UserRepository ----

type MockUserRepo struct {
	mu   sync.Mutex
	data map[string]*model.User

	FindByIDFunc func(ctx context.Context, tx repository.Tx, id string) (*model.User, error)
}

var _ repository.UserRepository = (*MockUserRepo)(nil)

func NewMockUserRepo(users ...*model.User) *MockUserRepo {
	r := &MockUserRepo{data: map[string]*model.User{}}
	for _, u := range users {
		r.data[u.ID] = u
	}
	return r
}

func (r *MockUserRepo) Get(id string) *model.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[id]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func (r *MockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	if u := r.Get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockUserRepo) UpdateMembership(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.data[u.ID] = &cp
	return nil
}

func (r *MockUserRepo) SetMembershipStatus(ctx context.Context, tx repository.Tx, userID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.data[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.MembershipStatus = status
	return nil
}

// ---- Mock EventRepository ----

type MockEventRepo struct {
	data map[string]*model.Event
}

var _ repository.EventRepository = (*MockEventRepo)(nil)

func NewMockEventRepo(events ...*model.Event) *MockEventRepo {
	r := &MockEventRepo{data: map[string]*model.Event{}}
	for _, e := range events {
		r.data[e.ID] = e
	}
	return r
}

func (r *MockEventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	if e, ok := r.data[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Mock EventMemberRepository ----

type MockEventMemberRepo struct {
	mu   sync.Mutex
	rows []*model.EventMember

	// BeforeList runs ahead of every ListByEventAndUser call.
	BeforeList func()
}

var _ repository.EventMemberRepository = (*MockEventMemberRepo)(nil)

func NewMockEventMemberRepo(rows ...*model.EventMember) *MockEventMemberRepo {
	return &MockEventMemberRepo{rows: rows}
}

func (r *MockEventMemberRepo) Rows() []*model.EventMember {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.EventMember, len(r.rows))
	for i, m := range r.rows {
		cp := *m
		out[i] = &cp
	}
	return out
}

func (r *MockEventMemberRepo) ListByEventAndUser(ctx context.Context, tx repository.Tx, eventID, userID string) ([]*model.EventMember, error) {
	if r.BeforeList != nil {
		r.BeforeList()
	}
	var out []*model.EventMember
	for _, m := range r.Rows() {
		if m.EventID == eventID && m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.After(out[j].JoinedAt) })
	return out, nil
}

func (r *MockEventMemberRepo) Save(ctx context.Context, tx repository.Tx, m *model.EventMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *m
	r.rows = append(r.rows, &cp)
	return nil
}

func (r *MockEventMemberRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal, category string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.ID != id {
			continue
		}
		if m.IsPaid() {
			return false, nil
		}
		m.PricePaid = amount
		m.PaymentStatus = model.EventPaymentCompleted
		m.RegistrationCategory = category
		return true, nil
	}
	return false, domain.ErrNotFound
}

// ---- Mock CouponRepository ----

type MockCouponRepo struct {
	mu      sync.Mutex
	coupons map[string]*model.Coupon
	usages  []*model.CouponUsage

	Increments map[string]int
}

var _ repository.CouponRepository = (*MockCouponRepo)(nil)

func NewMockCouponRepo(coupons ...*model.Coupon) *MockCouponRepo {
	r := &MockCouponRepo{coupons: map[string]*model.Coupon{}, Increments: map[string]int{}}
	for _, c := range coupons {
		r.coupons[c.ID] = c
	}
	return r
}

func (r *MockCouponRepo) AddUsage(u *model.CouponUsage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.usages = append(r.usages, &cp)
}

func (r *MockCouponRepo) Usages() []*model.CouponUsage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.CouponUsage, len(r.usages))
	for i, u := range r.usages {
		cp := *u
		out[i] = &cp
	}
	return out
}

func (r *MockCouponRepo) FindActiveByCode(ctx context.Context, tx repository.Tx, eventID, code string) (*model.Coupon, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.coupons {
		if c.EventID == eventID && c.Code == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockCouponRepo) IncrementUsed(ctx context.Context, tx repository.Tx, couponID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Increments[couponID]++
	if c, ok := r.coupons[couponID]; ok {
		c.UsedCount++
	}
	return nil
}

func (r *MockCouponRepo) SaveProvisionalUsage(ctx context.Context, tx repository.Tx, u *model.CouponUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.usages {
		if cur.IsProvisional() && cur.CouponID == u.CouponID && cur.EventID == u.EventID && cur.UserID == u.UserID {
			cp := *u
			r.usages[i] = &cp
			return nil
		}
	}
	cp := *u
	r.usages = append(r.usages, &cp)
	return nil
}

func (r *MockCouponRepo) ListProvisionalUsages(ctx context.Context, tx repository.Tx, eventID, userID string) ([]*model.CouponUsage, error) {
	var out []*model.CouponUsage
	for _, u := range r.Usages() {
		if u.IsProvisional() && u.EventID == eventID && u.UserID == userID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MockCouponRepo) FinalizeUsage(ctx context.Context, tx repository.Tx, u *model.CouponUsage) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cur := range r.usages {
		if cur.ID != u.ID {
			continue
		}
		if !cur.IsProvisional() {
			return false, nil
		}
		cur.EventMemberID = u.EventMemberID
		cur.PaymentID = u.PaymentID
		cur.InvoiceID = u.InvoiceID
		return true, nil
	}
	return false, domain.ErrNotFound
}

func (r *MockCouponRepo) DiscardProvisionalUsages(ctx context.Context, tx repository.Tx, eventID, userID, keepCouponID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.usages[:0]
	var n int64
	for _, u := range r.usages {
		if u.IsProvisional() && u.EventID == eventID && u.UserID == userID && u.CouponID != keepCouponID {
			n++
			continue
		}
		kept = append(kept, u)
	}
	r.usages = kept
	return n, nil
}

func (r *MockCouponRepo) HasFinalizedUsage(ctx context.Context, tx repository.Tx, couponID, eventID, userID string) (bool, error) {
	for _, u := range r.Usages() {
		if !u.IsProvisional() && u.CouponID == couponID && u.EventID == eventID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockCouponRepo) HasAnyUsage(ctx context.Context, tx repository.Tx, couponID, eventID, userID string) (bool, error) {
	for _, u := range r.Usages() {
		if u.CouponID == couponID && u.EventID == eventID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	mu sync.Mutex // transactions run one at a time, standing in for row locks

	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs fn immediately with NoTX unless WithTxFunc overrides it.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(ctx, repository.NoTX)
}

// =============================
// Fixture
// =============================

// fixture wires every fake into usecase.Repos so tests only set up rows.
type fixture struct {
	Payments      *MockPaymentRepo
	Subscriptions *MockSubscriptionRepo
	Plans         *MockPlanRepo
	Users         *MockUserRepo
	Events        *MockEventRepo
	EventMembers  *MockEventMemberRepo
	Coupons       *MockCouponRepo
	History       *MockHistoryRepo
	Tx            *MockTxManager

	SubGateway   *MockGateway
	EventGateway *MockGateway
	Notifier     *MockNotifier
	Now          time.Time
}

func newFixture(now time.Time) *fixture {
	return &fixture{
		Payments:      NewMockPaymentRepo(),
		Subscriptions: NewMockSubscriptionRepo(),
		Plans:         NewMockPlanRepo(),
		Users:         NewMockUserRepo(),
		Events:        NewMockEventRepo(),
		EventMembers:  NewMockEventMemberRepo(),
		Coupons:       NewMockCouponRepo(),
		History:       &MockHistoryRepo{},
		Tx:            NewMockTxManager(),
		SubGateway:    NewMockGateway(),
		EventGateway:  NewMockGateway(),
		Notifier:      &MockNotifier{},
		Now:           now,
	}
}

func (f *fixture) repos() usecase.Repos {
	return usecase.Repos{
		Payments:      f.Payments,
		Subscriptions: f.Subscriptions,
		Plans:         f.Plans,
		Users:         f.Users,
		Events:        f.Events,
		EventMembers:  f.EventMembers,
		Coupons:       f.Coupons,
		History:       f.History,
		Tx:            f.Tx,
	}
}

func (f *fixture) gateways() usecase.Gateways {
	return usecase.Gateways{Subscription: f.SubGateway, Event: f.EventGateway}
}

func (f *fixture) options() usecase.Options {
	return usecase.Options{BaseURL: "https://bds.example", Retry: noWaitRetry(nil), Now: fixedNow(f.Now)}
}

func (f *fixture) reconciler() usecase.ReconcileUseCase {
	return usecase.NewReconcileUseCase(f.repos(), f.gateways(), f.Notifier, f.options(), newTestLogger())
}

func (f *fixture) invoicer() usecase.InvoiceUseCase {
	return usecase.NewInvoiceUseCase(f.repos(), f.gateways(), f.options(), newTestLogger())
}

// Common rows.

func proPlan() *model.SubscriptionPlan {
	return &model.SubscriptionPlan{
		ID:              "plan-pro",
		Name:            "Professional",
		RegistrationFee: dec("10.000"),
		AnnualFee:       dec("30.000"),
		DurationMonths:  12,
	}
}

func member() *model.User {
	return &model.User{
		ID:             "user-1",
		FullName:       "Dr. Sara Ali",
		Email:          "sara@example.com",
		Mobile:         "+97333000000",
		MembershipType: model.MembershipTypeFree,
		Category:       "dentist",
	}
}
