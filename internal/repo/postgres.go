package repo

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
)

// PostgresStore implements Store on ent's SQL driver.
type PostgresStore struct {
	*pgQueries
	drv *entsql.Driver
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *stdsql.DB) *PostgresStore {
	drv := entsql.OpenDB(dialect.Postgres, db)
	return &PostgresStore{
		pgQueries: &pgQueries{conn: drv},
		drv:       drv,
	}
}

// Driver exposes the underlying ent driver for migrations.
func (s *PostgresStore) Driver() dialect.Driver {
	return s.drv
}

func (s *PostgresStore) Close() error {
	return s.drv.Close()
}

func (s *PostgresStore) InTx(ctx context.Context, fn TxFunc) (err error) {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &pgQueries{conn: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// pgQueries runs against either the pooled driver or an open transaction.
type pgQueries struct {
	conn dialect.ExecQuerier
}

func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.Postgres)
}

func (q *pgQueries) exec(ctx context.Context, b entsql.Querier) (int64, error) {
	query, args := b.Query()
	var res stdsql.Result
	if err := q.conn.Exec(ctx, query, args, &res); err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (q *pgQueries) execExpectOne(ctx context.Context, b entsql.Querier) error {
	n, err := q.exec(ctx, b)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// each runs the query and calls scan once per row.
func (q *pgQueries) each(ctx context.Context, b entsql.Querier, scan func(*entsql.Rows) error) error {
	query, args := b.Query()
	rows := &entsql.Rows{}
	if err := q.conn.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// one runs the query and scans the first row, or returns ErrNotFound.
func (q *pgQueries) one(ctx context.Context, b entsql.Querier, scan func(*entsql.Rows) error) error {
	found := false
	err := q.each(ctx, b, func(rows *entsql.Rows) error {
		if found {
			return nil
		}
		found = true
		return scan(rows)
	})
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

func (q *pgQueries) count(ctx context.Context, sel *entsql.Selector) (int, error) {
	var n int
	err := q.one(ctx, sel, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	return n, err
}

func timePtr(t stdsql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func encodeJSON(m map[string]any) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeJSON(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func notFoundAs(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
