package wallet

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestService(t *testing.T) (Service, *repo.MemoryStore) {
	t.Helper()
	store := repo.NewMemoryStore()
	return New(store, "INR", 5, nil), store
}

func fund(t *testing.T, svc Service, user uuid.UUID, amount string) {
	t.Helper()
	_, err := svc.Deposit(context.Background(), user, dec(amount), Options{})
	require.NoError(t, err)
}

func TestDeposit_CreditsBalanceAndAppendsEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()

	res, err := svc.Deposit(ctx, user, dec("150.25"), Options{Description: "top up"})
	require.NoError(t, err)

	assert.True(t, res.Wallet.Balance.Equal(dec("150.25")))
	assert.True(t, res.Wallet.HoldBalance.IsZero())
	assert.Equal(t, repo.WalletTxDeposit, res.Entry.Type)
	assert.Equal(t, repo.WalletTxCompleted, res.Entry.Status)
	assert.Regexp(t, `^WAL-[0-9A-F]{12}-\d+$`, res.Entry.ReferenceID)
	assert.True(t, res.Entry.BalanceAfter.Equal(dec("150.25")))
	assert.False(t, res.Replayed)
}

func TestMutations_RejectInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "100")

	tests := []struct {
		name   string
		amount string
	}{
		{"zero", "0"},
		{"negative", "-5"},
		{"too many decimals", "1.005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Deposit(ctx, user, dec(tt.amount), Options{})
			assert.ErrorIs(t, err, ErrInvalidAmount)
			_, err = svc.Withdraw(ctx, user, dec(tt.amount), Options{})
			assert.ErrorIs(t, err, ErrInvalidAmount)
			_, err = svc.Hold(ctx, user, dec(tt.amount), Options{})
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}

	w, err := svc.GetOrCreate(ctx, user)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("100")))
}

func TestWithdraw_InsufficientFundsLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "40")

	_, err := svc.Withdraw(ctx, user, dec("40.01"), Options{})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	w, err := store.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("40")))

	_, total, err := store.ListWalletTransactions(ctx, w.ID, repo.WalletTxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestHoldRelease_RoundTripRestoresBalance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "300")

	held, err := svc.Hold(ctx, user, dec("120"), Options{})
	require.NoError(t, err)
	assert.True(t, held.Wallet.Balance.Equal(dec("180")))
	assert.True(t, held.Wallet.HoldBalance.Equal(dec("120")))
	assert.Equal(t, repo.WalletTxPending, held.Entry.Status)
	assert.True(t, held.Wallet.TotalBalance().Equal(dec("300")))

	_, err = svc.Release(ctx, user, dec("120.01"), Options{})
	require.ErrorIs(t, err, ErrInvalidHoldAmount)

	released, err := svc.Release(ctx, user, dec("120"), Options{})
	require.NoError(t, err)
	assert.True(t, released.Wallet.Balance.Equal(dec("300")))
	assert.True(t, released.Wallet.HoldBalance.IsZero())
}

func TestRelease_ByHoldReferenceSettlesHold(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "100")

	held, err := svc.Hold(ctx, user, dec("60"), Options{})
	require.NoError(t, err)
	ref := held.Entry.ReferenceID

	_, err = svc.Release(ctx, user, dec("61"), Options{HoldReference: ref})
	require.ErrorIs(t, err, ErrInvalidHoldAmount)

	first, err := svc.Release(ctx, user, dec("25"), Options{HoldReference: ref})
	require.NoError(t, err)
	assert.Equal(t, held.Entry.ID, first.Entry.RelatedID.UUID)

	hold, err := store.GetWalletTransactionByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, repo.WalletTxPending, hold.Status)

	_, err = svc.Release(ctx, user, dec("35"), Options{HoldReference: ref})
	require.NoError(t, err)

	hold, err = store.GetWalletTransactionByReference(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, repo.WalletTxCompleted, hold.Status)

	_, err = svc.Release(ctx, user, dec("1"), Options{HoldReference: ref})
	assert.ErrorIs(t, err, ErrInvalidHoldAmount)

	_, err = svc.Release(ctx, user, dec("1"), Options{HoldReference: "WAL-UNKNOWN-1"})
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestRelease_UnknownReferenceIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "100")

	// nothing is held, the reference still decides the error
	_, err := svc.Release(ctx, user, dec("10"), Options{HoldReference: "WAL-000000000000-1"})
	assert.ErrorIs(t, err, ErrHoldNotFound)

	other := repo.NewID()
	fund(t, svc, other, "50")
	theirs, err := svc.Hold(ctx, other, dec("50"), Options{})
	require.NoError(t, err)
	_, err = svc.Release(ctx, user, dec("10"), Options{HoldReference: theirs.Entry.ReferenceID})
	assert.ErrorIs(t, err, ErrHoldNotFound)
}

func TestRelease_WithoutReferenceSettlesHolds(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "300")

	older, err := svc.Hold(ctx, user, dec("40"), Options{})
	require.NoError(t, err)
	newer, err := svc.Hold(ctx, user, dec("100"), Options{})
	require.NoError(t, err)

	status := func(ref string) repo.WalletTxStatus {
		t.Helper()
		h, err := store.GetWalletTransactionByReference(ctx, ref)
		require.NoError(t, err)
		return h.Status
	}

	// the oldest hold that still covers the amount takes the release
	first, err := svc.Release(ctx, user, dec("40"), Options{})
	require.NoError(t, err)
	assert.Equal(t, older.Entry.ID, first.Entry.RelatedID.UUID)
	assert.Equal(t, repo.WalletTxCompleted, status(older.Entry.ReferenceID))
	assert.Equal(t, repo.WalletTxPending, status(newer.Entry.ReferenceID))

	third, err := svc.Hold(ctx, user, dec("30"), Options{})
	require.NoError(t, err)

	// no single hold covers 130; emptying the hold balance settles them all
	last, err := svc.Release(ctx, user, dec("130"), Options{})
	require.NoError(t, err)
	assert.False(t, last.Entry.RelatedID.Valid)
	assert.True(t, last.Wallet.HoldBalance.IsZero())
	assert.Equal(t, repo.WalletTxCompleted, status(newer.Entry.ReferenceID))
	assert.Equal(t, repo.WalletTxCompleted, status(third.Entry.ReferenceID))
}

func TestTransfer_ConservesTotal(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	alice, bob := repo.NewID(), repo.NewID()
	fund(t, svc, alice, "500")
	fund(t, svc, bob, "20")

	res, err := svc.Transfer(ctx, alice, bob, dec("125.50"), Options{Description: "split"})
	require.NoError(t, err)

	assert.True(t, res.From.Wallet.Balance.Equal(dec("374.50")))
	assert.True(t, res.To.Wallet.Balance.Equal(dec("145.50")))
	assert.True(t, res.From.Wallet.Balance.Add(res.To.Wallet.Balance).Equal(dec("520")))
	assert.Equal(t, res.From.Entry.ID, res.To.Entry.RelatedID.UUID)
	assert.Equal(t, repo.WalletTxTransfer, res.From.Entry.Type)
	assert.Equal(t, repo.WalletTxTransfer, res.To.Entry.Type)
}

func TestTransfer_Guards(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	alice, bob := repo.NewID(), repo.NewID()
	fund(t, svc, alice, "10")

	_, err := svc.Transfer(ctx, alice, alice, dec("1"), Options{})
	assert.ErrorIs(t, err, ErrSameWallet)

	_, err = svc.Transfer(ctx, alice, bob, dec("10.01"), Options{})
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	// The failed transfer must not leave a half-applied debit behind.
	w, err := svc.GetOrCreate(ctx, alice)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("10")))

	_, err = svc.GetOrCreate(ctx, bob)
	require.NoError(t, err)
	_, err = svc.Deactivate(ctx, bob)
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, alice, bob, dec("1"), Options{})
	assert.ErrorIs(t, err, ErrWalletInactive)
}

func TestIdempotency_ReplayAndConflict(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()

	first, err := svc.Deposit(ctx, user, dec("50"), Options{IdempotencyKey: "dep-1"})
	require.NoError(t, err)

	again, err := svc.Deposit(ctx, user, dec("50"), Options{IdempotencyKey: "dep-1"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Equal(t, first.Entry.ReferenceID, again.Entry.ReferenceID)
	assert.True(t, again.Wallet.Balance.Equal(dec("50")))

	_, err = svc.Deposit(ctx, user, dec("51"), Options{IdempotencyKey: "dep-1"})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)

	_, err = svc.Withdraw(ctx, user, dec("50"), Options{IdempotencyKey: "dep-1"})
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestTransfer_IdempotentReplay(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	alice, bob := repo.NewID(), repo.NewID()
	fund(t, svc, alice, "100")

	_, err := svc.Transfer(ctx, alice, bob, dec("30"), Options{IdempotencyKey: "t-1"})
	require.NoError(t, err)

	again, err := svc.Transfer(ctx, alice, bob, dec("30"), Options{IdempotencyKey: "t-1"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)

	w, err := svc.GetOrCreate(ctx, bob)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("30")))
}

func TestWithdraw_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "100")

	var ok atomic.Int32
	var g errgroup.Group
	for i := 0; i < 25; i++ {
		g.Go(func() error {
			_, err := svc.Withdraw(ctx, user, dec("10"), Options{})
			if err == nil {
				ok.Add(1)
				return nil
			}
			if errors.Is(err, ErrInsufficientFunds) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(10), ok.Load())
	w, err := store.GetWalletByUser(ctx, user)
	require.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
}

func TestDeactivate_RefusesMutationsWithoutLedgerRow(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	user := repo.NewID()
	fund(t, svc, user, "10")

	w, err := svc.Deactivate(ctx, user)
	require.NoError(t, err)
	assert.False(t, w.IsActive)

	_, err = svc.Deposit(ctx, user, dec("1"), Options{})
	assert.ErrorIs(t, err, ErrWalletInactive)
	_, err = svc.Withdraw(ctx, user, dec("1"), Options{})
	assert.ErrorIs(t, err, ErrWalletInactive)

	_, total, err := store.ListWalletTransactions(ctx, w.ID, repo.WalletTxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	_, err = svc.Deactivate(ctx, repo.NewID())
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestSummary_ReturnsRecentEntriesNewestFirst(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()
	for i := 0; i < 7; i++ {
		fund(t, svc, user, "1")
	}
	_, err := svc.Withdraw(ctx, user, dec("2"), Options{})
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, user)
	require.NoError(t, err)
	assert.Len(t, sum.Recent, 5)
	assert.Equal(t, repo.WalletTxWithdrawal, sum.Recent[0].Type)
	assert.True(t, sum.TotalBalance.Equal(dec("5")))
}

func TestHistory_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	user := repo.NewID()

	rows, total, err := svc.History(ctx, user, repo.WalletTxFilter{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)

	for i := 0; i < 4; i++ {
		fund(t, svc, user, "10")
	}
	_, err = svc.Withdraw(ctx, user, dec("5"), Options{})
	require.NoError(t, err)

	rows, total, err = svc.History(ctx, user, repo.WalletTxFilter{Type: repo.WalletTxDeposit, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, rows, 3)

	rows, _, err = svc.History(ctx, user, repo.WalletTxFilter{Type: repo.WalletTxDeposit, Limit: 3, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	rows, total, err = svc.History(ctx, user, repo.WalletTxFilter{})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, repo.WalletTxWithdrawal, rows[0].Type)
}
