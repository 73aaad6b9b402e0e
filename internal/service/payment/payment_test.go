package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store    *repo.MemoryStore
	wallets  wallet.Service
	comm     commission.Service
	events   *events.Recorder
	svc      Service
	platform uuid.UUID
	client   uuid.UUID
	worker   uuid.UUID
}

func newFixture(t *testing.T, withTier bool) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store:    repo.NewMemoryStore(),
		events:   &events.Recorder{},
		platform: repo.NewID(),
		client:   repo.NewID(),
		worker:   repo.NewID(),
	}
	f.wallets = wallet.New(f.store, "INR", 5, nil)
	f.comm = commission.New(f.store, nil, "INR")
	f.svc = New(f.store, f.wallets.Ledger(), f.comm, f.events, nil, f.platform)

	if withTier {
		_, err := f.comm.CreateTier(ctx, commission.TierInput{
			Name: "all", MinAmount: dec("0"), MaxAmount: dec("100000"), Percentage: dec("10"),
		})
		require.NoError(t, err)
	}
	_, err := f.wallets.Deposit(ctx, f.client, dec("1000"), wallet.Options{})
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, user uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetOrCreate(context.Background(), user)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) pay(amount string) CreateRequest {
	return CreateRequest{
		From:        f.client,
		To:          f.worker,
		Amount:      dec(amount),
		PaymentType: repo.PaymentProject,
		Method:      repo.MethodWallet,
		Description: "project payment",
	}
}

func TestCreate_WalletPaymentSplitsFee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	txn, err := f.svc.Create(ctx, f.pay("500"))
	require.NoError(t, err)

	assert.Equal(t, repo.TxCompleted, txn.Status)
	assert.NotNil(t, txn.CompletedAt)
	assert.Regexp(t, `^TXN-\d+-[0-9A-F]{8}$`, txn.TransactionID)
	assert.True(t, txn.PlatformFeeAmount.Equal(dec("50")))
	assert.True(t, txn.NetAmount.Equal(dec("450")))
	assert.True(t, txn.CommissionTierID.Valid)

	assert.True(t, f.balance(t, f.client).Equal(dec("500")))
	assert.True(t, f.balance(t, f.worker).Equal(dec("450")))
	assert.True(t, f.balance(t, f.platform).Equal(dec("50")))

	c, err := f.svc.CommissionFor(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, c.Amount.Equal(dec("50")))
	assert.True(t, c.Percentage.Equal(dec("10")))

	assert.Equal(t, []string{events.ActionCreated, events.ActionCompleted}, f.events.Actions(txn.TransactionID))
}

func TestCreate_TaxGoesToPlatform(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	req := f.pay("100")
	req.TaxAmount = dec("5")
	txn, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.True(t, txn.NetAmount.Equal(dec("85")))
	assert.True(t, f.balance(t, f.worker).Equal(dec("85")))
	assert.True(t, f.balance(t, f.platform).Equal(dec("15")))
}

func TestCreate_NoTierFailsTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.Create(ctx, f.pay("500"))
	require.ErrorIs(t, err, commission.ErrNoApplicableTier)

	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, repo.TxFailed, failed.Transaction.Status)
	assert.Contains(t, failed.Transaction.Notes, "Failure reason")

	stored, err := f.svc.Get(ctx, failed.Transaction.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.TxFailed, stored.Status)

	_, err = f.svc.CommissionFor(ctx, stored.ID)
	assert.ErrorIs(t, err, commission.ErrCommissionNotFound)

	assert.True(t, f.balance(t, f.client).Equal(dec("1000")))
	assert.Equal(t, []string{events.ActionFailed}, f.events.Actions(stored.TransactionID))

	list, total, err := f.svc.ListForUser(ctx, f.client, repo.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, repo.TxFailed, list[0].Status)
}

func TestCreate_InsufficientFundsFailsTransaction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	_, err := f.svc.Create(ctx, f.pay("1000.01"))
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, repo.TxFailed, failed.Transaction.Status)
	assert.True(t, f.balance(t, f.client).Equal(dec("1000")))
	assert.True(t, f.balance(t, f.worker).IsZero())
}

func TestCreate_RejectsBadRequestsWithoutRows(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	tests := []struct {
		name string
		mut  func(r *CreateRequest)
		want error
	}{
		{"zero amount", func(r *CreateRequest) { r.Amount = dec("0") }, ErrInvalidAmount},
		{"sub-minor amount", func(r *CreateRequest) { r.Amount = dec("1.001") }, ErrInvalidAmount},
		{"same party", func(r *CreateRequest) { r.To = r.From }, ErrSameParty},
		{"refund type", func(r *CreateRequest) { r.PaymentType = repo.PaymentRefund }, ErrInvalidPaymentType},
		{"unknown method", func(r *CreateRequest) { r.Method = "cash" }, ErrInvalidMethod},
		{"negative tax", func(r *CreateRequest) { r.TaxAmount = dec("-1") }, ErrInvalidTax},
		{"hold on gateway", func(r *CreateRequest) {
			r.Method = repo.MethodGateway
			r.ReleaseHoldReference = "WAL-X"
		}, ErrHoldRequiresWallet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := f.pay("10")
			tt.mut(&req)
			_, err := f.svc.Create(ctx, req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, total, err := f.svc.ListForUser(ctx, f.client, repo.TransactionFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestRefund_Symmetry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	orig, err := f.svc.Create(ctx, f.pay("500"))
	require.NoError(t, err)

	res, err := f.svc.Refund(ctx, orig.ID, "client changed mind")
	require.NoError(t, err)

	assert.Equal(t, repo.TxRefunded, res.Original.Status)
	assert.True(t, res.Original.Amount.Equal(dec("500")))

	refund := res.Refund
	assert.True(t, refund.Amount.Equal(dec("500")))
	assert.Equal(t, f.worker, refund.FromUserID)
	assert.Equal(t, f.client, refund.ToUserID)
	assert.Equal(t, orig.ID, refund.ParentTransactionID.UUID)
	assert.Equal(t, repo.PaymentRefund, refund.PaymentType)
	assert.Equal(t, repo.TxCompleted, refund.Status)
	assert.True(t, refund.PlatformFeeAmount.IsZero())

	_, err = f.svc.CommissionFor(ctx, refund.ID)
	assert.ErrorIs(t, err, commission.ErrCommissionNotFound)

	assert.True(t, f.balance(t, f.client).Equal(dec("1000")))
	assert.True(t, f.balance(t, f.worker).IsZero())
	assert.True(t, f.balance(t, f.platform).IsZero())

	_, total, err := f.svc.ListForUser(ctx, f.client, repo.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	stored, err := f.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.TxRefunded, stored.Status)
	assert.True(t, stored.Amount.Equal(dec("500")))

	_, err = f.svc.Refund(ctx, orig.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)
	_, err = f.svc.Refund(ctx, refund.ID, "")
	assert.ErrorIs(t, err, ErrNotRefundable)

	assert.Equal(t, []string{events.ActionCreated, events.ActionCompleted, events.ActionRefunded}, f.events.Actions(orig.TransactionID))
}

func TestRefund_PayeeSpentFundsRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	orig, err := f.svc.Create(ctx, f.pay("500"))
	require.NoError(t, err)
	_, err = f.wallets.Withdraw(ctx, f.worker, dec("450"), wallet.Options{})
	require.NoError(t, err)

	_, err = f.svc.Refund(ctx, orig.ID, "")
	require.ErrorIs(t, err, wallet.ErrInsufficientFunds)

	stored, err := f.svc.Get(ctx, orig.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.TxCompleted, stored.Status)
}

func TestGateway_PendingThenTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	req := f.pay("200")
	req.Method = repo.MethodGateway
	txn, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, repo.TxPending, txn.Status)
	assert.True(t, txn.PlatformFeeAmount.Equal(dec("20")))
	assert.True(t, f.balance(t, f.client).Equal(dec("1000")))

	done, err := f.svc.Complete(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, repo.TxCompleted, done.Status)

	_, err = f.svc.Complete(ctx, txn.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.svc.Fail(ctx, txn.ID, "late")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	other, err := f.svc.Create(ctx, req)
	require.NoError(t, err)
	disputed, err := f.svc.Dispute(ctx, other.ID, "chargeback")
	require.NoError(t, err)
	assert.Equal(t, repo.TxDisputed, disputed.Status)
	failed, err := f.svc.Fail(ctx, other.ID, "gateway declined")
	require.NoError(t, err)
	assert.Equal(t, repo.TxFailed, failed.Status)
	assert.Contains(t, failed.Notes, "gateway declined")

	_, err = f.svc.Complete(ctx, repo.NewID())
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestVerify_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	admin := repo.NewID()

	txn, err := f.svc.Create(ctx, f.pay("50"))
	require.NoError(t, err)

	first, err := f.svc.VerifyProof(ctx, txn.ID, admin)
	require.NoError(t, err)
	require.True(t, first.ProofVerified)
	second, err := f.svc.VerifyProof(ctx, txn.ID, repo.NewID())
	require.NoError(t, err)
	assert.Equal(t, first.ProofVerifiedAt, second.ProofVerifiedAt)
	assert.Equal(t, admin, second.ProofVerifiedBy.UUID)

	_, err = f.svc.VerifyID(ctx, txn.ID, " ", admin)
	assert.ErrorIs(t, err, ErrVerificationMethod)
	v, err := f.svc.VerifyID(ctx, txn.ID, "passport", admin)
	require.NoError(t, err)
	assert.True(t, v.IDVerified)
	assert.Equal(t, "passport", v.IDVerificationMethod)

	assert.True(t, v.Amount.Equal(dec("50")))
	assert.Equal(t, repo.TxCompleted, v.Status)
}

func TestCreate_ReleasesFundingHold(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	held, err := f.wallets.Hold(ctx, f.client, dec("300"), wallet.Options{})
	require.NoError(t, err)

	req := f.pay("300")
	req.ReleaseHoldReference = held.Entry.ReferenceID
	_, err = f.svc.Create(ctx, req)
	require.NoError(t, err)

	w, err := f.wallets.GetOrCreate(ctx, f.client)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(dec("700")))
	assert.True(t, w.HoldBalance.IsZero())

	hold, err := f.store.GetWalletTransactionByReference(ctx, held.Entry.ReferenceID)
	require.NoError(t, err)
	assert.Equal(t, repo.WalletTxCompleted, hold.Status)
}

func TestRevenue_CountsCompletedPlatformIncome(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	paid, err := f.svc.Create(ctx, f.pay("300"))
	require.NoError(t, err)
	require.True(t, paid.PlatformFeeAmount.Equal(dec("30")))

	sub := f.pay("100")
	sub.To = f.platform
	sub.PaymentType = repo.PaymentSubscription
	_, err = f.svc.Create(ctx, sub)
	require.NoError(t, err)

	refunded, err := f.svc.Create(ctx, f.pay("200"))
	require.NoError(t, err)
	_, err = f.svc.Refund(ctx, refunded.ID, "cancelled order")
	require.NoError(t, err)

	pending := f.pay("50")
	pending.To = f.platform
	pending.PaymentType = repo.PaymentSubscription
	pending.Method = repo.MethodGateway
	_, err = f.svc.Create(ctx, pending)
	require.NoError(t, err)

	total, err := f.svc.Revenue(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, total.Equal(dec("130")), total.String())

	total, err = f.svc.Revenue(ctx, time.Now().Add(time.Hour), time.Time{})
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestCreate_PaymentToPlatformBearsNoCommission(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)

	req := f.pay("100")
	req.To = f.platform
	req.PaymentType = repo.PaymentSubscription
	txn, err := f.svc.Create(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, repo.TxCompleted, txn.Status)
	assert.True(t, txn.PlatformFeeAmount.IsZero())
	assert.True(t, txn.NetAmount.Equal(dec("100")))
	assert.False(t, txn.CommissionTierID.Valid)
	assert.True(t, f.balance(t, f.platform).Equal(dec("100")))

	_, err = f.svc.CommissionFor(ctx, txn.ID)
	assert.ErrorIs(t, err, commission.ErrCommissionNotFound)
}
