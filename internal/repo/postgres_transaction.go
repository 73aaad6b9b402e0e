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

var transactionColumns = []string{
	"id", "transaction_id", "from_user_id", "to_user_id", "amount", "currency", "payment_type",
	"payment_method", "status", "platform_fee_amount", "tax_amount", "net_amount", "project_id",
	"task_id", "milestone_id", "parent_transaction_id", "commission_tier_id", "description", "notes",
	"metadata", "proof_verified", "proof_verified_by", "proof_verified_at", "id_verified",
	"id_verification_method", "id_verified_by", "id_verified_at", "completed_at", "created_at", "updated_at",
}

func scanTransaction(rows *entsql.Rows) (*Transaction, error) {
	var (
		t                          Transaction
		meta                       []byte
		proofAt, idAt, completedAt stdsql.NullTime
	)
	err := rows.Scan(&t.ID, &t.TransactionID, &t.FromUserID, &t.ToUserID, &t.Amount, &t.Currency,
		&t.PaymentType, &t.PaymentMethod, &t.Status, &t.PlatformFeeAmount, &t.TaxAmount, &t.NetAmount,
		&t.ProjectID, &t.TaskID, &t.MilestoneID, &t.ParentTransactionID, &t.CommissionTierID,
		&t.Description, &t.Notes, &meta, &t.ProofVerified, &t.ProofVerifiedBy, &proofAt, &t.IDVerified,
		&t.IDVerificationMethod, &t.IDVerifiedBy, &idAt, &completedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	t.ProofVerifiedAt = timePtr(proofAt)
	t.IDVerifiedAt = timePtr(idAt)
	t.CompletedAt = timePtr(completedAt)
	if t.Metadata, err = decodeJSON(meta); err != nil {
		return nil, err
	}
	return &t, nil
}

func (q *pgQueries) InsertTransaction(ctx context.Context, t *Transaction) error {
	meta, err := encodeJSON(t.Metadata)
	if err != nil {
		return err
	}
	ins := builder().Insert(TransactionsTable.Name).
		Columns(transactionColumns...).
		Values(t.ID, t.TransactionID, t.FromUserID, t.ToUserID, t.Amount, t.Currency, t.PaymentType,
			t.PaymentMethod, t.Status, t.PlatformFeeAmount, t.TaxAmount, t.NetAmount, t.ProjectID,
			t.TaskID, t.MilestoneID, t.ParentTransactionID, t.CommissionTierID, t.Description, t.Notes,
			meta, t.ProofVerified, t.ProofVerifiedBy, t.ProofVerifiedAt, t.IDVerified,
			t.IDVerificationMethod, t.IDVerifiedBy, t.IDVerifiedAt, t.CompletedAt, t.CreatedAt, t.UpdatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (q *pgQueries) transactionWhere(ctx context.Context, p *entsql.Predicate, lock bool) (*Transaction, error) {
	sel := builder().Select(transactionColumns...).
		From(entsql.Table(TransactionsTable.Name)).
		Where(p)
	if lock {
		sel.ForUpdate()
	}

	var t *Transaction
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		t, err = scanTransaction(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "transaction")
	}
	return t, nil
}

func (q *pgQueries) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return q.transactionWhere(ctx, entsql.EQ("id", id), false)
}

func (q *pgQueries) GetTransactionByTxnID(ctx context.Context, txnID string) (*Transaction, error) {
	return q.transactionWhere(ctx, entsql.EQ("transaction_id", txnID), false)
}

func (q *pgQueries) LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return q.transactionWhere(ctx, entsql.EQ("id", id), true)
}

// UpdateTransaction writes the mutable columns: status, fee breakdown,
// notes, verification stamps and completion time.
func (q *pgQueries) UpdateTransaction(ctx context.Context, t *Transaction) error {
	meta, err := encodeJSON(t.Metadata)
	if err != nil {
		return err
	}
	upd := builder().Update(TransactionsTable.Name).
		Set("status", t.Status).
		Set("platform_fee_amount", t.PlatformFeeAmount).
		Set("tax_amount", t.TaxAmount).
		Set("net_amount", t.NetAmount).
		Set("commission_tier_id", t.CommissionTierID).
		Set("notes", t.Notes).
		Set("metadata", meta).
		Set("proof_verified", t.ProofVerified).
		Set("proof_verified_by", t.ProofVerifiedBy).
		Set("proof_verified_at", t.ProofVerifiedAt).
		Set("id_verified", t.IDVerified).
		Set("id_verification_method", t.IDVerificationMethod).
		Set("id_verified_by", t.IDVerifiedBy).
		Set("id_verified_at", t.IDVerifiedAt).
		Set("completed_at", t.CompletedAt).
		Set("updated_at", t.UpdatedAt).
		Where(entsql.EQ("id", t.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "transaction")
}

func transactionPredicates(userID uuid.UUID, f TransactionFilter) *entsql.Predicate {
	ps := []*entsql.Predicate{entsql.Or(entsql.EQ("from_user_id", userID), entsql.EQ("to_user_id", userID))}
	if f.Status != "" {
		ps = append(ps, entsql.EQ("status", f.Status))
	}
	if f.PaymentType != "" {
		ps = append(ps, entsql.EQ("payment_type", f.PaymentType))
	}
	if !f.From.IsZero() {
		ps = append(ps, entsql.GTE("created_at", f.From))
	}
	if !f.To.IsZero() {
		ps = append(ps, entsql.LTE("created_at", f.To))
	}
	return entsql.And(ps...)
}

func (q *pgQueries) ListTransactionsForUser(ctx context.Context, userID uuid.UUID, f TransactionFilter) ([]*Transaction, int, error) {
	total, err := q.count(ctx, builder().Select("COUNT(*)").
		From(entsql.Table(TransactionsTable.Name)).
		Where(transactionPredicates(userID, f)))
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	sel := builder().Select(transactionColumns...).
		From(entsql.Table(TransactionsTable.Name)).
		Where(transactionPredicates(userID, f)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}

	var out []*Transaction
	err = q.each(ctx, sel, func(rows *entsql.Rows) error {
		t, err := scanTransaction(rows)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return out, total, nil
}

func unitColumn(kind UnitKind) string {
	if kind == UnitTask {
		return "task_id"
	}
	return "project_id"
}

func (q *pgQueries) HasSettledPaymentForUnit(ctx context.Context, kind UnitKind, unitID uuid.UUID) (bool, error) {
	n, err := q.count(ctx, builder().Select("COUNT(*)").
		From(entsql.Table(TransactionsTable.Name)).
		Where(entsql.And(
			entsql.EQ(unitColumn(kind), unitID),
			entsql.NEQ("payment_type", PaymentRefund),
			entsql.In("status", TxCompleted, TxRefunded),
		)))
	if err != nil {
		return false, fmt.Errorf("check unit payments: %w", err)
	}
	return n > 0, nil
}

// revenueExpr is platform fees on completed transactions plus subscription
// income.
var revenueExpr = "COALESCE(SUM(platform_fee_amount + CASE WHEN payment_type = '" +
	string(PaymentSubscription) + "' THEN amount ELSE 0 END), 0)"

func (q *pgQueries) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	ps := []*entsql.Predicate{entsql.EQ("status", TxCompleted)}
	if !from.IsZero() {
		ps = append(ps, entsql.GTE("created_at", from))
	}
	if !to.IsZero() {
		ps = append(ps, entsql.LTE("created_at", to))
	}
	sel := builder().Select(revenueExpr).
		From(entsql.Table(TransactionsTable.Name)).
		Where(entsql.And(ps...))

	var sum decimal.Decimal
	err := q.one(ctx, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&sum)
	})
	return sum, err
}

var commissionColumns = []string{
	"id", "transaction_id", "amount", "percentage", "flat_fee", "currency", "tier_id",
	"special_rate_id", "is_discounted", "original_amount", "discount_reason", "created_at", "updated_at",
}

func scanCommission(rows *entsql.Rows) (*Commission, error) {
	var c Commission
	err := rows.Scan(&c.ID, &c.TransactionID, &c.Amount, &c.Percentage, &c.FlatFee, &c.Currency,
		&c.TierID, &c.SpecialRateID, &c.IsDiscounted, &c.OriginalAmount, &c.DiscountReason,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan commission: %w", err)
	}
	return &c, nil
}

func (q *pgQueries) InsertCommission(ctx context.Context, c *Commission) error {
	ins := builder().Insert(CommissionsTable.Name).
		Columns(commissionColumns...).
		Values(c.ID, c.TransactionID, c.Amount, c.Percentage, c.FlatFee, c.Currency, c.TierID,
			c.SpecialRateID, c.IsDiscounted, c.OriginalAmount, c.DiscountReason, c.CreatedAt, c.UpdatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert commission: %w", err)
	}
	return nil
}

func (q *pgQueries) commissionWhere(ctx context.Context, p *entsql.Predicate, lock bool) (*Commission, error) {
	sel := builder().Select(commissionColumns...).
		From(entsql.Table(CommissionsTable.Name)).
		Where(p)
	if lock {
		sel.ForUpdate()
	}

	var c *Commission
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		c, err = scanCommission(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "commission")
	}
	return c, nil
}

func (q *pgQueries) GetCommission(ctx context.Context, id uuid.UUID) (*Commission, error) {
	return q.commissionWhere(ctx, entsql.EQ("id", id), false)
}

func (q *pgQueries) LockCommission(ctx context.Context, id uuid.UUID) (*Commission, error) {
	return q.commissionWhere(ctx, entsql.EQ("id", id), true)
}

func (q *pgQueries) GetCommissionByTransaction(ctx context.Context, transactionID uuid.UUID) (*Commission, error) {
	return q.commissionWhere(ctx, entsql.EQ("transaction_id", transactionID), false)
}

func (q *pgQueries) UpdateCommission(ctx context.Context, c *Commission) error {
	upd := builder().Update(CommissionsTable.Name).
		Set("amount", c.Amount).
		Set("is_discounted", c.IsDiscounted).
		Set("original_amount", c.OriginalAmount).
		Set("discount_reason", c.DiscountReason).
		Set("updated_at", c.UpdatedAt).
		Where(entsql.EQ("id", c.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "commission")
}

func (q *pgQueries) SumCommissions(ctx context.Context, from, to time.Time) (CommissionTotals, error) {
	var ps []*entsql.Predicate
	if !from.IsZero() {
		ps = append(ps, entsql.GTE("created_at", from))
	}
	if !to.IsZero() {
		ps = append(ps, entsql.LTE("created_at", to))
	}
	sel := builder().Select("COALESCE(SUM(amount), 0)", "COUNT(*)").
		From(entsql.Table(CommissionsTable.Name))
	if len(ps) > 0 {
		sel.Where(entsql.And(ps...))
	}

	var totals CommissionTotals
	err := q.one(ctx, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&totals.Total, &totals.Count)
	})
	return totals, err
}
