package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"bds-membership/internal/domain"
	"bds-membership/internal/domain/model"
	"bds-membership/internal/domain/ports/repository"
)

var (
	_ repository.EventRepository       = (*eventRepo)(nil)
	_ repository.EventMemberRepository = (*eventMemberRepo)(nil)
)

type eventRepo struct{ pool *pgxpool.Pool }

func NewEventRepo(pool *pgxpool.Pool) *eventRepo {
	return &eventRepo{pool: pool}
}

// priceCategories is the column order of the price block in the events table.
var priceCategories = []model.PricingCategory{
	model.CategoryRegular, model.CategoryMember, model.CategoryStudent, model.CategoryHygienist,
}

func (r *eventRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Event, error) {
	const q = `
SELECT id, title, is_paid, start_datetime, end_datetime, early_bird_deadline, standard_deadline,
       regular_price, regular_standard_price, regular_onsite_price,
       member_price, member_standard_price, member_onsite_price,
       student_price, student_standard_price, student_onsite_price,
       hygienist_price, hygienist_standard_price, hygienist_onsite_price
  FROM events
 WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}

	e := &model.Event{}
	prices := make([]decimal.NullDecimal, 3*len(priceCategories))
	dest := []any{&e.ID, &e.Title, &e.IsPaid, &e.StartAt, &e.EndAt, &e.EarlyBirdDeadline, &e.StandardDeadline}
	for i := range prices {
		dest = append(dest, &prices[i])
	}
	if err := row.Scan(dest...); err != nil {
		return nil, scanErr(err)
	}
	e.Prices = make(map[model.PricingCategory]model.TierPrices, len(priceCategories))
	for i, c := range priceCategories {
		e.Prices[c] = model.TierPrices{EarlyBird: prices[3*i], Standard: prices[3*i+1], Onsite: prices[3*i+2]}
	}
	return e, nil
}

type eventMemberRepo struct{ pool *pgxpool.Pool }

func NewEventMemberRepo(pool *pgxpool.Pool) *eventMemberRepo {
	return &eventMemberRepo{pool: pool}
}

func (r *eventMemberRepo) ListByEventAndUser(ctx context.Context, tx repository.Tx, eventID, userID string) ([]*model.EventMember, error) {
	q := forUpdate(`
SELECT id, event_id, user_id, token, price_paid, payment_status, registration_category, is_member, joined_at
  FROM event_members
 WHERE event_id=$1 AND user_id=$2
 ORDER BY joined_at DESC`, tx)
	rows, err := queryRows(ctx, r.pool, tx, q, eventID, userID)
	if err != nil {
		return nil, opErr(err)
	}
	defer rows.Close()

	var out []*model.EventMember
	for rows.Next() {
		m, err := scanEventMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, scanErr(err)
	}
	return out, nil
}

func (r *eventMemberRepo) Save(ctx context.Context, tx repository.Tx, m *model.EventMember) error {
	const q = `
INSERT INTO event_members (id, event_id, user_id, token, price_paid, payment_status, registration_category, is_member, joined_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, m.ID, m.EventID, m.UserID, m.Token, m.PricePaid, string(m.PaymentStatus), m.RegistrationCategory, m.IsMember, m.JoinedAt)
	if isUniqueViolation(err) {
		return domain.Wrap(domain.ErrAlreadyExists, "event seat already exists", err)
	}
	return opErr(err)
}

func (r *eventMemberRepo) MarkPaid(ctx context.Context, tx repository.Tx, id string, amount decimal.Decimal, category string) (bool, error) {
	const q = `
UPDATE event_members
   SET price_paid=$2, payment_status='completed', registration_category=$3
 WHERE id=$1 AND price_paid <= 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, amount, category)
	if err != nil {
		return false, opErr(err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanEventMember(row pgx.Row) (*model.EventMember, error) {
	m := &model.EventMember{}
	var status string
	if err := row.Scan(&m.ID, &m.EventID, &m.UserID, &m.Token, &m.PricePaid, &status, &m.RegistrationCategory, &m.IsMember, &m.JoinedAt); err != nil {
		return nil, scanErr(err)
	}
	m.PaymentStatus = model.EventPaymentStatus(status)
	return m, nil
}
