package repo

import (
	"context"
	stdsql "database/sql"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// tierLockKey is the advisory lock id guarding commission tier writes.
const tierLockKey int64 = 0x6c656467657201

var tierColumns = []string{
	"id", "name", "min_amount", "max_amount", "percentage", "flat_fee",
	"freelancer_discount", "client_discount", "is_active", "created_at", "updated_at",
}

func scanTier(rows *entsql.Rows) (*CommissionTier, error) {
	var t CommissionTier
	err := rows.Scan(&t.ID, &t.Name, &t.MinAmount, &t.MaxAmount, &t.Percentage, &t.FlatFee,
		&t.FreelancerDiscount, &t.ClientDiscount, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan commission tier: %w", err)
	}
	return &t, nil
}

func (q *pgQueries) LockCommissionTiers(ctx context.Context) error {
	_, err := q.exec(ctx, rawQuery{query: "SELECT pg_advisory_xact_lock($1)", args: []any{tierLockKey}})
	if err != nil {
		return fmt.Errorf("lock commission tiers: %w", err)
	}
	return nil
}

func (q *pgQueries) tiers(ctx context.Context, p *entsql.Predicate) ([]*CommissionTier, error) {
	sel := builder().Select(tierColumns...).
		From(entsql.Table(CommissionTiersTable.Name)).
		OrderBy("min_amount")
	if p != nil {
		sel.Where(p)
	}

	var out []*CommissionTier
	err := q.each(ctx, sel, func(rows *entsql.Rows) error {
		t, err := scanTier(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list commission tiers: %w", err)
	}
	return out, nil
}

func (q *pgQueries) ListCommissionTiers(ctx context.Context, activeOnly bool) ([]*CommissionTier, error) {
	if activeOnly {
		return q.tiers(ctx, entsql.EQ("is_active", true))
	}
	return q.tiers(ctx, nil)
}

func (q *pgQueries) FindActiveTiersForAmount(ctx context.Context, amount decimal.Decimal) ([]*CommissionTier, error) {
	return q.tiers(ctx, entsql.And(
		entsql.EQ("is_active", true),
		entsql.LTE("min_amount", amount),
		entsql.GTE("max_amount", amount),
	))
}

func (q *pgQueries) FindOverlappingTiers(ctx context.Context, min, max decimal.Decimal) ([]*CommissionTier, error) {
	return q.tiers(ctx, entsql.And(
		entsql.EQ("is_active", true),
		entsql.LTE("min_amount", max),
		entsql.GTE("max_amount", min),
	))
}

func (q *pgQueries) GetCommissionTier(ctx context.Context, id uuid.UUID) (*CommissionTier, error) {
	ts, err := q.tiers(ctx, entsql.EQ("id", id))
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, fmt.Errorf("commission tier: %w", ErrNotFound)
	}
	return ts[0], nil
}

func (q *pgQueries) InsertCommissionTier(ctx context.Context, t *CommissionTier) error {
	ins := builder().Insert(CommissionTiersTable.Name).
		Columns(tierColumns...).
		Values(t.ID, t.Name, t.MinAmount, t.MaxAmount, t.Percentage, t.FlatFee,
			t.FreelancerDiscount, t.ClientDiscount, t.IsActive, t.CreatedAt, t.UpdatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert commission tier: %w", err)
	}
	return nil
}

func (q *pgQueries) UpdateCommissionTier(ctx context.Context, t *CommissionTier) error {
	upd := builder().Update(CommissionTiersTable.Name).
		Set("name", t.Name).
		Set("min_amount", t.MinAmount).
		Set("max_amount", t.MaxAmount).
		Set("percentage", t.Percentage).
		Set("flat_fee", t.FlatFee).
		Set("freelancer_discount", t.FreelancerDiscount).
		Set("client_discount", t.ClientDiscount).
		Set("is_active", t.IsActive).
		Set("updated_at", t.UpdatedAt).
		Where(entsql.EQ("id", t.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "commission tier")
}

var specialRateColumns = []string{
	"id", "user_id", "category_id", "percentage", "flat_fee", "reason",
	"starts_at", "ends_at", "is_active", "created_at",
}

func (q *pgQueries) InsertSpecialRate(ctx context.Context, r *SpecialCommissionRate) error {
	ins := builder().Insert(SpecialCommissionRatesTable.Name).
		Columns(specialRateColumns...).
		Values(r.ID, r.UserID, r.CategoryID, r.Percentage, r.FlatFee, r.Reason,
			r.StartsAt, r.EndsAt, r.IsActive, r.CreatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert special commission rate: %w", err)
	}
	return nil
}

func (q *pgQueries) ListSpecialRates(ctx context.Context, userID, categoryID uuid.NullUUID, at time.Time) ([]*SpecialCommissionRate, error) {
	var targets []*entsql.Predicate
	if userID.Valid {
		targets = append(targets, entsql.EQ("user_id", userID.UUID))
	}
	if categoryID.Valid {
		targets = append(targets, entsql.EQ("category_id", categoryID.UUID))
	}
	if len(targets) == 0 {
		return nil, nil
	}

	sel := builder().Select(specialRateColumns...).
		From(entsql.Table(SpecialCommissionRatesTable.Name)).
		Where(entsql.And(
			entsql.Or(targets...),
			entsql.EQ("is_active", true),
			entsql.LTE("starts_at", at),
			entsql.Or(entsql.IsNull("ends_at"), entsql.GTE("ends_at", at)),
		)).
		OrderBy(entsql.Desc("starts_at"))

	var out []*SpecialCommissionRate
	err := q.each(ctx, sel, func(rows *entsql.Rows) error {
		var (
			r    SpecialCommissionRate
			ends stdsql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.CategoryID, &r.Percentage, &r.FlatFee, &r.Reason,
			&r.StartsAt, &ends, &r.IsActive, &r.CreatedAt); err != nil {
			return fmt.Errorf("scan special commission rate: %w", err)
		}
		r.EndsAt = timePtr(ends)
		out = append(out, &r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list special commission rates: %w", err)
	}
	return out, nil
}
