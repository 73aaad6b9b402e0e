package repo

import (
	"context"
	stdsql "database/sql"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// testDSNEnv names a disposable Postgres database; the tests below are
// skipped when it is unset.
const testDSNEnv = "LEDGER_TEST_DSN"

func openTestPostgres(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", testDSNEnv)
	}
	db, err := stdsql.Open("postgres", dsn)
	require.NoError(t, err)

	s := NewPostgresStore(db)
	t.Cleanup(func() { _ = s.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, Migrate(ctx, s.Driver()))
	return s
}

func TestPostgresIntegration_CreateWalletOncePerUser(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()
	user := NewID()

	first, err := s.CreateWallet(ctx, newWallet(user))
	require.NoError(t, err)
	second, err := s.CreateWallet(ctx, newWallet(user))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestPostgresIntegration_DuplicateIdempotencyKeyConflicts(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()
	w, err := s.CreateWallet(ctx, newWallet(NewID()))
	require.NoError(t, err)

	key := "dup-" + NewID().String()
	entry := func() *WalletTransaction {
		return &WalletTransaction{
			ID:             NewID(),
			WalletID:       w.ID,
			Amount:         decimal.NewFromInt(5),
			Type:           WalletTxDeposit,
			Status:         WalletTxCompleted,
			ReferenceID:    NewID().String(),
			IdempotencyKey: &key,
			BalanceAfter:   decimal.NewFromInt(5),
			HoldAfter:      decimal.Zero,
			CreatedAt:      time.Now(),
		}
	}
	require.NoError(t, s.InsertWalletTransaction(ctx, entry()))
	assert.True(t, IsConflict(s.InsertWalletTransaction(ctx, entry())))
}

// Concurrent debits serialize on the wallet row lock, so the balance never
// goes below zero and exactly balance/amount debits succeed.
func TestPostgresIntegration_ConcurrentDebitsSerializeOnRowLock(t *testing.T) {
	s := openTestPostgres(t)
	ctx := context.Background()
	user := NewID()

	w, err := s.CreateWallet(ctx, newWallet(user))
	require.NoError(t, err)
	w.Balance = decimal.NewFromInt(100)
	require.NoError(t, s.UpdateWallet(ctx, w))

	errShort := errors.New("insufficient balance")
	step := decimal.NewFromInt(10)
	var debited atomic.Int32

	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			err := s.InTx(ctx, func(ctx context.Context, q Queries) error {
				locked, err := q.LockWalletByUser(ctx, user)
				if err != nil {
					return err
				}
				if locked.Balance.LessThan(step) {
					return errShort
				}
				locked.Balance = locked.Balance.Sub(step)
				locked.UpdatedAt = time.Now()
				return q.UpdateWallet(ctx, locked)
			})
			if errors.Is(err, errShort) {
				return nil
			}
			if err == nil {
				debited.Add(1)
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := s.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.True(t, got.Balance.IsZero(), "balance %s", got.Balance)
	assert.EqualValues(t, 10, debited.Load())
}
