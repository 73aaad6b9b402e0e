package repo

import (
	"context"
	stdsql "database/sql"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var walletColumns = []string{
	"id", "user_id", "balance", "hold_balance", "currency", "is_active", "created_at", "updated_at",
}

func scanWallet(rows *entsql.Rows) (*Wallet, error) {
	var w Wallet
	err := rows.Scan(&w.ID, &w.UserID, &w.Balance, &w.HoldBalance, &w.Currency, &w.IsActive, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, nil
}

func (q *pgQueries) walletByUser(ctx context.Context, userID uuid.UUID, lock bool) (*Wallet, error) {
	sel := builder().Select(walletColumns...).
		From(entsql.Table(WalletsTable.Name)).
		Where(entsql.EQ("user_id", userID))
	if lock {
		sel.ForUpdate()
	}

	var w *Wallet
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		w, err = scanWallet(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "wallet")
	}
	return w, nil
}

func (q *pgQueries) GetWalletByUser(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return q.walletByUser(ctx, userID, false)
}

func (q *pgQueries) LockWalletByUser(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return q.walletByUser(ctx, userID, true)
}

func (q *pgQueries) CreateWallet(ctx context.Context, w *Wallet) (*Wallet, error) {
	ins := builder().Insert(WalletsTable.Name).
		Columns(walletColumns...).
		Values(w.ID, w.UserID, w.Balance, w.HoldBalance, w.Currency, w.IsActive, w.CreatedAt, w.UpdatedAt).
		OnConflict(entsql.ConflictColumns("user_id"), entsql.DoNothing())
	if _, err := q.exec(ctx, ins); err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}
	return q.GetWalletByUser(ctx, w.UserID)
}

func (q *pgQueries) UpdateWallet(ctx context.Context, w *Wallet) error {
	upd := builder().Update(WalletsTable.Name).
		Set("balance", w.Balance).
		Set("hold_balance", w.HoldBalance).
		Set("is_active", w.IsActive).
		Set("updated_at", w.UpdatedAt).
		Where(entsql.EQ("id", w.ID))
	return notFoundAs(q.execExpectOne(ctx, upd), "wallet")
}

var walletTxColumns = []string{
	"id", "wallet_id", "amount", "type", "status", "reference_id", "idempotency_key",
	"description", "balance_after", "hold_after", "related_id", "metadata", "created_at",
}

func scanWalletTx(rows *entsql.Rows) (*WalletTransaction, error) {
	var (
		e    WalletTransaction
		key  stdsql.NullString
		meta []byte
	)
	err := rows.Scan(&e.ID, &e.WalletID, &e.Amount, &e.Type, &e.Status, &e.ReferenceID, &key,
		&e.Description, &e.BalanceAfter, &e.HoldAfter, &e.RelatedID, &meta, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan wallet transaction: %w", err)
	}
	if key.Valid {
		e.IdempotencyKey = &key.String
	}
	if e.Metadata, err = decodeJSON(meta); err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *pgQueries) InsertWalletTransaction(ctx context.Context, e *WalletTransaction) error {
	meta, err := encodeJSON(e.Metadata)
	if err != nil {
		return err
	}
	ins := builder().Insert(WalletTransactionsTable.Name).
		Columns(walletTxColumns...).
		Values(e.ID, e.WalletID, e.Amount, e.Type, e.Status, e.ReferenceID, e.IdempotencyKey,
			e.Description, e.BalanceAfter, e.HoldAfter, e.RelatedID, meta, e.CreatedAt)
	if _, err := q.exec(ctx, ins); err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

func (q *pgQueries) walletTxWhere(ctx context.Context, p *entsql.Predicate) (*WalletTransaction, error) {
	sel := builder().Select(walletTxColumns...).
		From(entsql.Table(WalletTransactionsTable.Name)).
		Where(p)

	var e *WalletTransaction
	err := q.one(ctx, sel, func(rows *entsql.Rows) (err error) {
		e, err = scanWalletTx(rows)
		return err
	})
	if err != nil {
		return nil, notFoundAs(err, "wallet transaction")
	}
	return e, nil
}

func (q *pgQueries) GetWalletTransactionByReference(ctx context.Context, ref string) (*WalletTransaction, error) {
	return q.walletTxWhere(ctx, entsql.EQ("reference_id", ref))
}

func (q *pgQueries) GetWalletTransactionByIdempotencyKey(ctx context.Context, key string) (*WalletTransaction, error) {
	return q.walletTxWhere(ctx, entsql.EQ("idempotency_key", key))
}

func (q *pgQueries) UpdateWalletTransactionStatus(ctx context.Context, id uuid.UUID, status WalletTxStatus) error {
	// Only a pending row may move, and only once.
	upd := builder().Update(WalletTransactionsTable.Name).
		Set("status", status).
		Where(entsql.And(entsql.EQ("id", id), entsql.EQ("status", WalletTxPending)))
	return notFoundAs(q.execExpectOne(ctx, upd), "pending wallet transaction")
}

func walletTxPredicates(walletID uuid.UUID, f WalletTxFilter) *entsql.Predicate {
	ps := []*entsql.Predicate{entsql.EQ("wallet_id", walletID)}
	if f.Type != "" {
		ps = append(ps, entsql.EQ("type", f.Type))
	}
	if f.Status != "" {
		ps = append(ps, entsql.EQ("status", f.Status))
	}
	if !f.From.IsZero() {
		ps = append(ps, entsql.GTE("created_at", f.From))
	}
	if !f.To.IsZero() {
		ps = append(ps, entsql.LTE("created_at", f.To))
	}
	return entsql.And(ps...)
}

func (q *pgQueries) ListWalletTransactions(ctx context.Context, walletID uuid.UUID, f WalletTxFilter) ([]*WalletTransaction, int, error) {
	total, err := q.count(ctx, builder().Select("COUNT(*)").
		From(entsql.Table(WalletTransactionsTable.Name)).
		Where(walletTxPredicates(walletID, f)))
	if err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	sel := builder().Select(walletTxColumns...).
		From(entsql.Table(WalletTransactionsTable.Name)).
		Where(walletTxPredicates(walletID, f)).
		OrderBy(entsql.Desc("created_at"), entsql.Desc("id"))
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}

	var out []*WalletTransaction
	err = q.each(ctx, sel, func(rows *entsql.Rows) error {
		e, err := scanWalletTx(rows)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("list wallet transactions: %w", err)
	}
	return out, total, nil
}

func (q *pgQueries) SumRelated(ctx context.Context, relatedID uuid.UUID, t WalletTxType) (decimal.Decimal, error) {
	sel := builder().Select("COALESCE(SUM(amount), 0)").
		From(entsql.Table(WalletTransactionsTable.Name)).
		Where(entsql.And(
			entsql.EQ("related_id", relatedID),
			entsql.EQ("type", t),
			entsql.EQ("status", WalletTxCompleted),
		))

	var sum decimal.Decimal
	err := q.one(ctx, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&sum)
	})
	return sum, err
}

// rawQuery adapts a literal statement to entsql.Querier.
type rawQuery struct {
	query string
	args  []any
}

func (r rawQuery) Query() (string, []any) { return r.query, r.args }
