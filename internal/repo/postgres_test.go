package repo

import (
	"context"
	stdsql "database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedStmt struct {
	query string
	args  []any
}

// recordingConn captures every statement the queries send and answers with
// canned results.
type recordingConn struct {
	stmts    []recordedStmt
	affected int64
	execErr  error
	// results are handed out one per Query call; an exhausted queue yields no rows.
	results [][][]any
}

func (c *recordingConn) record(query string, args any) {
	a, _ := args.([]any)
	c.stmts = append(c.stmts, recordedStmt{query: query, args: a})
}

func (c *recordingConn) Exec(_ context.Context, query string, args, v any) error {
	c.record(query, args)
	if c.execErr != nil {
		return c.execErr
	}
	if res, ok := v.(*stdsql.Result); ok {
		*res = driver.RowsAffected(c.affected)
	}
	return nil
}

func (c *recordingConn) Query(_ context.Context, query string, args, v any) error {
	c.record(query, args)
	rows, ok := v.(*entsql.Rows)
	if !ok {
		return fmt.Errorf("unexpected scan target %T", v)
	}
	var next [][]any
	if len(c.results) > 0 {
		next, c.results = c.results[0], c.results[1:]
	}
	*rows = entsql.Rows{ColumnScanner: &cannedRows{rows: next}}
	return nil
}

func (c *recordingConn) last(t *testing.T) recordedStmt {
	t.Helper()
	require.NotEmpty(t, c.stmts)
	return c.stmts[len(c.stmts)-1]
}

type cannedRows struct {
	rows [][]any
	pos  int
}

func (r *cannedRows) Close() error                                { return nil }
func (r *cannedRows) ColumnTypes() ([]*stdsql.ColumnType, error) { return nil, nil }
func (r *cannedRows) Columns() ([]string, error)                 { return nil, nil }
func (r *cannedRows) Err() error                                  { return nil }
func (r *cannedRows) NextResultSet() bool                         { return false }

func (r *cannedRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *cannedRows) Scan(dest ...any) error {
	row := r.rows[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d targets for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		if sc, ok := d.(stdsql.Scanner); ok {
			if err := sc.Scan(row[i]); err != nil {
				return err
			}
			continue
		}
		target := reflect.ValueOf(d).Elem()
		target.Set(reflect.ValueOf(row[i]).Convert(target.Type()))
	}
	return nil
}

func newRecorded() (*pgQueries, *recordingConn) {
	conn := &recordingConn{}
	return &pgQueries{conn: conn}, conn
}

func TestPostgres_WalletReadLocksOnlyWhenAsked(t *testing.T) {
	ctx := context.Background()
	q, conn := newRecorded()
	user := NewID()

	_, err := q.GetWalletByUser(ctx, user)
	require.True(t, IsNotFound(err))
	read := conn.last(t)
	assert.Contains(t, read.query, `FROM "wallets"`)
	assert.Contains(t, read.query, `"user_id" = $1`)
	assert.NotContains(t, read.query, "FOR UPDATE")
	assert.Equal(t, []any{user}, read.args)

	_, err = q.LockWalletByUser(ctx, user)
	require.True(t, IsNotFound(err))
	assert.True(t, strings.HasSuffix(conn.last(t).query, "FOR UPDATE"))
}

func TestPostgres_SettlementRowsAreLockedForUpdate(t *testing.T) {
	ctx := context.Background()
	id := NewID()

	cases := map[string]struct {
		table string
		lock  func(*pgQueries) error
	}{
		"transaction": {`FROM "transactions"`, func(q *pgQueries) error { _, err := q.LockTransaction(ctx, id); return err }},
		"commission":  {`FROM "commissions"`, func(q *pgQueries) error { _, err := q.LockCommission(ctx, id); return err }},
		"milestone":   {`FROM "milestones"`, func(q *pgQueries) error { _, err := q.LockMilestone(ctx, id); return err }},
		"work unit":   {`FROM "work_units"`, func(q *pgQueries) error { _, err := q.LockWorkUnit(ctx, id); return err }},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			q, conn := newRecorded()
			err := tc.lock(q)
			assert.True(t, IsNotFound(err), "got %v", err)

			stmt := conn.last(t)
			assert.Contains(t, stmt.query, tc.table)
			assert.True(t, strings.HasSuffix(stmt.query, "FOR UPDATE"), stmt.query)
			assert.Contains(t, stmt.args, id)
		})
	}
}

func TestPostgres_LockCommissionTiersTakesAdvisoryLock(t *testing.T) {
	q, conn := newRecorded()
	require.NoError(t, q.LockCommissionTiers(context.Background()))

	stmt := conn.last(t)
	assert.Equal(t, "SELECT pg_advisory_xact_lock($1)", stmt.query)
	assert.Equal(t, []any{tierLockKey}, stmt.args)
}

func TestPostgres_CreateWalletDoesNothingOnDuplicateUser(t *testing.T) {
	ctx := context.Background()
	q, conn := newRecorded()
	existing := newWallet(NewID())
	now := time.Now().UTC()
	conn.results = [][][]any{{{
		existing.ID.String(), existing.UserID.String(), "25.5000", "0", "INR", true, now, now,
	}}}

	got, err := q.CreateWallet(ctx, newWallet(existing.UserID))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, got.ID)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("25.5")))

	require.Len(t, conn.stmts, 2)
	insert := conn.stmts[0].query
	assert.True(t, strings.HasPrefix(insert, `INSERT INTO "wallets"`), insert)
	assert.Contains(t, insert, `ON CONFLICT ("user_id") DO NOTHING`)
	assert.Contains(t, conn.stmts[1].query, `FROM "wallets"`)
}

func TestPostgres_UniqueViolationMapsToConflict(t *testing.T) {
	ctx := context.Background()
	key := "key-1"
	entry := &WalletTransaction{
		ID:             NewID(),
		WalletID:       NewID(),
		Amount:         decimal.NewFromInt(10),
		Type:           WalletTxDeposit,
		Status:         WalletTxCompleted,
		IdempotencyKey: &key,
		CreatedAt:      time.Now(),
	}

	q, conn := newRecorded()
	conn.execErr = &pq.Error{Code: pgUniqueViolation, Constraint: "wallet_transactions_idempotency_key"}
	err := q.InsertWalletTransaction(ctx, entry)
	require.Error(t, err)
	assert.True(t, IsConflict(err))

	conn.execErr = &pq.Error{Code: "23503"}
	err = q.InsertWalletTransaction(ctx, entry)
	require.Error(t, err)
	assert.False(t, IsConflict(err))
}

func TestPostgres_StatusTransitionNeedsPendingRow(t *testing.T) {
	ctx := context.Background()
	id := NewID()

	q, conn := newRecorded()
	err := q.UpdateWalletTransactionStatus(ctx, id, WalletTxCompleted)
	assert.True(t, IsNotFound(err))

	stmt := conn.last(t)
	assert.True(t, strings.HasPrefix(stmt.query, `UPDATE "wallet_transactions"`), stmt.query)
	assert.Equal(t, []any{WalletTxCompleted, id, WalletTxPending}, stmt.args)

	conn.affected = 1
	assert.NoError(t, q.UpdateWalletTransactionStatus(ctx, id, WalletTxCompleted))
}

func TestPostgres_RevenueSumsFeesAndSubscriptions(t *testing.T) {
	ctx := context.Background()
	q, conn := newRecorded()
	conn.results = [][][]any{{{"130.5000"}}}

	got, err := q.Revenue(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("130.5")))

	stmt := conn.last(t)
	assert.Contains(t, stmt.query, revenueExpr)
	assert.Contains(t, stmt.query, "platform_fee_amount")
	assert.Equal(t, []any{TxCompleted}, stmt.args)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	_, err = q.Revenue(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, []any{TxCompleted, from, to}, conn.last(t).args)
}

func TestPostgres_ListCountsBeforePaging(t *testing.T) {
	ctx := context.Background()
	q, conn := newRecorded()
	conn.results = [][][]any{{{int64(0)}}}
	wallet := uuid.New()

	_, total, err := q.ListWalletTransactions(ctx, wallet, WalletTxFilter{Type: WalletTxHold, Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	require.Len(t, conn.stmts, 2)
	assert.Contains(t, conn.stmts[0].query, "COUNT(*)")
	page := conn.stmts[1].query
	assert.Contains(t, page, "ORDER BY")
	assert.Contains(t, page, "LIMIT 5")
	assert.Contains(t, page, "OFFSET 10")
}
