package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/observability"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// Create settles a payment in one atomic scope. On failure the attempt
	// is rolled back and a failed row is appended; the error is a
	// *FailedError carrying it.
	Create(ctx context.Context, req CreateRequest) (*repo.Transaction, error)

	Complete(ctx context.Context, id uuid.UUID) (*repo.Transaction, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) (*repo.Transaction, error)
	Dispute(ctx context.Context, id uuid.UUID, reason string) (*repo.Transaction, error)
	Refund(ctx context.Context, id uuid.UUID, reason string) (*RefundResult, error)

	VerifyProof(ctx context.Context, id, actor uuid.UUID) (*repo.Transaction, error)
	VerifyID(ctx context.Context, id uuid.UUID, method string, actor uuid.UUID) (*repo.Transaction, error)

	Get(ctx context.Context, id uuid.UUID) (*repo.Transaction, error)
	GetByTransactionID(ctx context.Context, txnID string) (*repo.Transaction, error)
	CommissionFor(ctx context.Context, id uuid.UUID) (*repo.Commission, error)
	ListForUser(ctx context.Context, userID uuid.UUID, f repo.TransactionFilter) ([]*repo.Transaction, int, error)
	Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)

	// Settle, RecordFailure and Announce are the pieces of Create for flows
	// that settle inside their own atomic scope.
	Settle(ctx context.Context, q repo.Queries, req CreateRequest) (*Settlement, error)
	RecordFailure(ctx context.Context, req CreateRequest, cause error) (*repo.Transaction, error)
	Announce(ctx context.Context, s *Settlement)
}

type CreateRequest struct {
	From        uuid.UUID          `json:"from_user"`
	To          uuid.UUID          `json:"to_user"`
	Amount      decimal.Decimal    `json:"amount"`
	Currency    string             `json:"currency"`
	PaymentType repo.PaymentType   `json:"payment_type"`
	Method      repo.PaymentMethod `json:"payment_method"`
	TaxAmount   decimal.Decimal    `json:"tax_amount"`

	ProjectID   uuid.NullUUID `json:"project_id"`
	TaskID      uuid.NullUUID `json:"task_id"`
	MilestoneID uuid.NullUUID `json:"milestone_id"`
	CategoryID  uuid.NullUUID `json:"category_id"`

	// UserType selects the tier discount for the payee, who bears the fee.
	UserType    commission.UserType `json:"user_type"`
	Description string              `json:"description"`
	Metadata    map[string]any      `json:"metadata"`

	// ReleaseHoldReference names a hold on the payer that funds this
	// payment; it is released before the debit.
	ReleaseHoldReference string          `json:"release_hold_reference"`
	ReleaseHoldAmount    decimal.Decimal `json:"release_hold_amount"`
}

// Settlement is the committed outcome of Settle, to be announced once the
// surrounding scope commits.
type Settlement struct {
	Transaction *repo.Transaction
	Commission  *repo.Commission
	Source      string
}

type RefundResult struct {
	Original *repo.Transaction `json:"original"`
	Refund   *repo.Transaction `json:"refund"`
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type paymentService struct {
	store      repo.Store
	ledger     *wallet.Ledger
	commission commission.Service
	publisher  events.Publisher
	metrics    *observability.LedgerMetrics

	platform uuid.UUID
	currency string
	now      func() time.Time
}

func New(
	store repo.Store,
	ledger *wallet.Ledger,
	commissions commission.Service,
	publisher events.Publisher,
	metrics *observability.LedgerMetrics,
	platform uuid.UUID,
) Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if metrics == nil {
		metrics = observability.NewLedgerMetrics()
	}
	return &paymentService{
		store:      store,
		ledger:     ledger,
		commission: commissions,
		publisher:  publisher,
		metrics:    metrics,
		platform:   platform,
		currency:   ledger.Currency(),
		now:        time.Now,
	}
}

// NewTransactionID returns a TXN-<unix>-<8 hex> id.
func NewTransactionID(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("TXN-%d-%s", now.Unix(), strings.ToUpper(hex[:8]))
}

func (s *paymentService) normalize(req *CreateRequest) error {
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = s.currency
	}
	if req.Method == "" {
		req.Method = repo.MethodWallet
	}

	switch {
	case !wallet.ValidAmount(req.Amount, req.Currency):
		return ErrInvalidAmount
	case req.From == uuid.Nil || req.To == uuid.Nil || req.From == req.To:
		return ErrSameParty
	case !req.PaymentType.Valid() || req.PaymentType == repo.PaymentRefund:
		return ErrInvalidPaymentType
	case req.Method != repo.MethodWallet && req.Method != repo.MethodGateway:
		return ErrInvalidMethod
	case req.TaxAmount.IsNegative() || !req.TaxAmount.Equal(money.Round(req.TaxAmount, req.Currency)):
		return ErrInvalidTax
	case req.ReleaseHoldReference != "" && req.Method != repo.MethodWallet:
		return ErrHoldRequiresWallet
	}
	if req.ReleaseHoldReference != "" && req.ReleaseHoldAmount.IsZero() {
		req.ReleaseHoldAmount = req.Amount
	}
	return nil
}

func (s *paymentService) newTransaction(req CreateRequest) *repo.Transaction {
	now := s.now()
	return &repo.Transaction{
		ID:                repo.NewID(),
		TransactionID:     NewTransactionID(now),
		FromUserID:        req.From,
		ToUserID:          req.To,
		Amount:            req.Amount,
		Currency:          req.Currency,
		PaymentType:       req.PaymentType,
		PaymentMethod:     req.Method,
		Status:            repo.TxPending,
		PlatformFeeAmount: decimal.Zero,
		TaxAmount:         req.TaxAmount,
		NetAmount:         req.Amount.Sub(req.TaxAmount),
		ProjectID:         req.ProjectID,
		TaskID:            req.TaskID,
		MilestoneID:       req.MilestoneID,
		Description:       req.Description,
		Metadata:          req.Metadata,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func (s *paymentService) Create(ctx context.Context, req CreateRequest) (out *repo.Transaction, err error) {
	ctx, span := s.metrics.Start(ctx, "payment.create",
		attribute.String("payment_type", string(req.PaymentType)),
		attribute.String("amount", req.Amount.String()),
	)
	defer func() { observability.End(span, err) }()

	if err := s.normalize(&req); err != nil {
		return nil, err
	}

	var settled *Settlement
	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		var err error
		settled, err = s.Settle(ctx, q, req)
		return err
	})
	if err != nil {
		failed, ferr := s.RecordFailure(ctx, req, err)
		if ferr != nil {
			return nil, errors.Join(err, ferr)
		}
		return nil, &FailedError{Transaction: failed, Err: err}
	}

	s.Announce(ctx, settled)
	return settled.Transaction, nil
}

// Settle creates the pending transaction and its commission and, for wallet
// payments, moves the money and completes it, all through q.
func (s *paymentService) Settle(ctx context.Context, q repo.Queries, req CreateRequest) (*Settlement, error) {
	if err := s.normalize(&req); err != nil {
		return nil, err
	}
	txn := s.newTransaction(req)

	// Payments to the platform itself (subscriptions, fees) bear no commission.
	var quote *commission.Quote
	if req.To != s.platform {
		var err error
		quote, err = s.commission.Resolve(ctx, q, commission.QuoteRequest{
			Amount:     req.Amount,
			Currency:   req.Currency,
			UserID:     req.To,
			CategoryID: req.CategoryID,
			UserType:   req.UserType,
			At:         txn.CreatedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("resolve commission: %w", err)
		}
		txn.PlatformFeeAmount = quote.Amount
		txn.CommissionTierID = quote.TierID
	}
	txn.ComputeNet()
	if txn.NetAmount.IsNegative() {
		return nil, ErrInvalidTax
	}

	if err := q.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	settled := &Settlement{Transaction: txn}
	if quote != nil {
		settled.Commission = quote.Record(txn.ID, txn.CreatedAt)
		settled.Source = quote.Source()
		if err := q.InsertCommission(ctx, settled.Commission); err != nil {
			return nil, fmt.Errorf("insert commission: %w", err)
		}
	}

	if txn.PaymentMethod == repo.MethodWallet {
		if err := s.moveFunds(ctx, q, txn, req); err != nil {
			return nil, err
		}
		now := s.now()
		txn.Status = repo.TxCompleted
		txn.CompletedAt = &now
		txn.UpdatedAt = now
		if err := q.UpdateTransaction(ctx, txn); err != nil {
			return nil, fmt.Errorf("complete transaction: %w", err)
		}
	}

	return settled, nil
}

// moveFunds debits the payer the full amount and credits the payee the net,
// the platform the fee and the tax.
func (s *paymentService) moveFunds(ctx context.Context, q repo.Queries, txn *repo.Transaction, req CreateRequest) error {
	wallets, err := s.ledger.LockMany(ctx, q, txn.FromUserID, txn.ToUserID, s.platform)
	if err != nil {
		return err
	}
	payer, payee, platform := wallets[txn.FromUserID], wallets[txn.ToUserID], wallets[s.platform]
	for _, w := range []*repo.Wallet{payer, payee, platform} {
		if w.Currency != txn.Currency {
			return wallet.ErrCurrencyMismatch
		}
	}

	meta := map[string]any{"transaction_id": txn.TransactionID}
	opts := wallet.Options{Description: txn.Description, Metadata: meta}

	if req.ReleaseHoldReference != "" {
		release := wallet.Options{Description: "release for " + txn.TransactionID, Metadata: meta, HoldReference: req.ReleaseHoldReference}
		if _, err := s.ledger.Apply(ctx, q, payer, wallet.Movement{
			Kind: wallet.Release, Type: repo.WalletTxRelease, Amount: req.ReleaseHoldAmount, Options: release,
		}); err != nil {
			return fmt.Errorf("release hold: %w", err)
		}
	}

	debit, err := s.ledger.Apply(ctx, q, payer, wallet.Movement{
		Kind: wallet.Debit, Type: repo.WalletTxPayment, Amount: txn.Amount, Options: opts,
	})
	if err != nil {
		return fmt.Errorf("debit payer: %w", err)
	}
	related := uuid.NullUUID{UUID: debit.ID, Valid: true}

	legs := []struct {
		w      *repo.Wallet
		typ    repo.WalletTxType
		amount decimal.Decimal
		desc   string
	}{
		{payee, repo.WalletTxPayment, txn.NetAmount, txn.Description},
		{platform, repo.WalletTxCommission, txn.PlatformFeeAmount, "commission on " + txn.TransactionID},
		{platform, repo.WalletTxPayment, txn.TaxAmount, "tax on " + txn.TransactionID},
	}
	for _, leg := range legs {
		if !leg.amount.IsPositive() {
			continue
		}
		if _, err := s.ledger.Apply(ctx, q, leg.w, wallet.Movement{
			Kind: wallet.Credit, Type: leg.typ, Amount: leg.amount, RelatedID: related,
			Options: wallet.Options{Description: leg.desc, Metadata: meta},
		}); err != nil {
			return fmt.Errorf("credit %s: %w", leg.typ, err)
		}
	}
	return nil
}

// RecordFailure appends a failed transaction for an attempt whose scope
// rolled back. Nothing else is written.
func (s *paymentService) RecordFailure(ctx context.Context, req CreateRequest, cause error) (*repo.Transaction, error) {
	_ = s.normalize(&req)
	txn := s.newTransaction(req)
	txn.Status = repo.TxFailed
	txn.Notes = "Failure reason: " + cause.Error()

	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("record failed transaction: %w", err)
	}

	level := slog.LevelWarn
	if errors.Is(cause, commission.ErrNoApplicableTier) {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "payment failed",
		"transaction_id", txn.TransactionID,
		"from_user", txn.FromUserID,
		"to_user", txn.ToUserID,
		"amount", txn.Amount.String(),
		"error", cause,
	)

	s.metrics.Transaction(ctx, string(txn.PaymentType), string(txn.Status))
	s.publish(ctx, events.ActionFailed, txn)
	return txn, nil
}

func (s *paymentService) Announce(ctx context.Context, st *Settlement) {
	if st == nil {
		return
	}
	txn := st.Transaction
	s.metrics.Transaction(ctx, string(txn.PaymentType), string(txn.Status))
	if st.Commission != nil {
		s.metrics.Commission(ctx, st.Commission.Amount, st.Source)
	}

	s.publish(ctx, events.ActionCreated, txn)
	if txn.Status == repo.TxCompleted {
		s.publish(ctx, events.ActionCompleted, txn)
	}

	slog.Info("payment settled",
		"transaction_id", txn.TransactionID,
		"payment_type", txn.PaymentType,
		"status", txn.Status,
		"amount", txn.Amount.String(),
		"fee", txn.PlatformFeeAmount.String(),
		"net", txn.NetAmount.String(),
	)
}

func (s *paymentService) publish(ctx context.Context, action string, txn *repo.Transaction) {
	err := s.publisher.PublishTransaction(ctx, action, events.TransactionEvent{
		TransactionID: txn.TransactionID,
		FromUser:      txn.FromUserID,
		ToUser:        txn.ToUserID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Status:        string(txn.Status),
		PaymentType:   string(txn.PaymentType),
		OccurredAt:    s.now(),
	})
	if err != nil {
		slog.Warn("publish transaction event failed", "transaction_id", txn.TransactionID, "action", action, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Transitions
// ---------------------------------------------------------------------------

// transition locks the transaction, applies fn and saves it.
func (s *paymentService) transition(ctx context.Context, id uuid.UUID, fn func(t *repo.Transaction) (bool, error)) (*repo.Transaction, bool, error) {
	var (
		out     *repo.Transaction
		changed bool
	)
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		t, err := q.LockTransaction(ctx, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrTransactionNotFound
			}
			return err
		}
		if changed, err = fn(t); err != nil {
			return err
		}
		if changed {
			t.UpdatedAt = s.now()
			if err := q.UpdateTransaction(ctx, t); err != nil {
				return fmt.Errorf("update transaction: %w", err)
			}
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, changed, nil
}

func appendNote(notes, line string) string {
	return strings.TrimSpace(notes + "\n" + line)
}

func (s *paymentService) Complete(ctx context.Context, id uuid.UUID) (*repo.Transaction, error) {
	t, _, err := s.transition(ctx, id, func(t *repo.Transaction) (bool, error) {
		if t.Status.Terminal() {
			return false, ErrInvalidTransition
		}
		now := s.now()
		t.Status = repo.TxCompleted
		t.CompletedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transaction(ctx, string(t.PaymentType), string(t.Status))
	s.publish(ctx, events.ActionCompleted, t)
	return t, nil
}

func (s *paymentService) Fail(ctx context.Context, id uuid.UUID, reason string) (*repo.Transaction, error) {
	t, _, err := s.transition(ctx, id, func(t *repo.Transaction) (bool, error) {
		if t.Status.Terminal() {
			return false, ErrInvalidTransition
		}
		t.Status = repo.TxFailed
		if reason = strings.TrimSpace(reason); reason != "" {
			t.Notes = appendNote(t.Notes, "Failure reason: "+reason)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Transaction(ctx, string(t.PaymentType), string(t.Status))
	s.publish(ctx, events.ActionFailed, t)
	return t, nil
}

func (s *paymentService) Dispute(ctx context.Context, id uuid.UUID, reason string) (*repo.Transaction, error) {
	t, _, err := s.transition(ctx, id, func(t *repo.Transaction) (bool, error) {
		if t.Status.Terminal() {
			return false, ErrInvalidTransition
		}
		if t.Status == repo.TxDisputed {
			return false, nil
		}
		t.Status = repo.TxDisputed
		if reason = strings.TrimSpace(reason); reason != "" {
			t.Notes = appendNote(t.Notes, "Dispute: "+reason)
		}
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("transaction disputed", "transaction_id", t.TransactionID)
	return t, nil
}

// ---------------------------------------------------------------------------
// Refund
// ---------------------------------------------------------------------------

// Refund appends a reversing transaction and flips the original to refunded.
// No commission is charged on the refund.
func (s *paymentService) Refund(ctx context.Context, id uuid.UUID, reason string) (res *RefundResult, err error) {
	ctx, span := s.metrics.Start(ctx, "payment.refund", attribute.String("id", id.String()))
	defer func() { observability.End(span, err) }()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Customer requested refund"
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		orig, err := q.LockTransaction(ctx, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrTransactionNotFound
			}
			return err
		}
		if orig.Status != repo.TxCompleted || orig.PaymentType == repo.PaymentRefund {
			return ErrNotRefundable
		}

		now := s.now()
		refund := &repo.Transaction{
			ID:                  repo.NewID(),
			TransactionID:       NewTransactionID(now),
			FromUserID:          orig.ToUserID,
			ToUserID:            orig.FromUserID,
			Amount:              orig.Amount,
			Currency:            orig.Currency,
			PaymentType:         repo.PaymentRefund,
			PaymentMethod:       orig.PaymentMethod,
			Status:              repo.TxPending,
			PlatformFeeAmount:   decimal.Zero,
			TaxAmount:           decimal.Zero,
			ProjectID:           orig.ProjectID,
			TaskID:              orig.TaskID,
			MilestoneID:         orig.MilestoneID,
			ParentTransactionID: uuid.NullUUID{UUID: orig.ID, Valid: true},
			Description:         "Refund for transaction " + orig.TransactionID,
			Notes:               reason,
			Metadata: map[string]any{
				"original_transaction": orig.TransactionID,
				"refund_reason":        reason,
			},
			CreatedAt: now,
			UpdatedAt: now,
		}
		refund.ComputeNet()
		if err := q.InsertTransaction(ctx, refund); err != nil {
			return fmt.Errorf("insert refund: %w", err)
		}

		if orig.PaymentMethod == repo.MethodWallet {
			if err := s.reverseFunds(ctx, q, orig, refund); err != nil {
				return err
			}
			refund.Status = repo.TxCompleted
			refund.CompletedAt = &now
			if err := q.UpdateTransaction(ctx, refund); err != nil {
				return fmt.Errorf("complete refund: %w", err)
			}
		}

		orig.Status = repo.TxRefunded
		orig.UpdatedAt = now
		if err := q.UpdateTransaction(ctx, orig); err != nil {
			return fmt.Errorf("flip original: %w", err)
		}

		res = &RefundResult{Original: orig, Refund: refund}
		return nil
	})
	if err != nil {
		slog.Warn("refund failed", "id", id, "error", err)
		return nil, err
	}

	s.metrics.Transaction(ctx, string(res.Refund.PaymentType), string(res.Refund.Status))
	s.publish(ctx, events.ActionCreated, res.Refund)
	if res.Refund.Status == repo.TxCompleted {
		s.publish(ctx, events.ActionCompleted, res.Refund)
	}
	s.publish(ctx, events.ActionRefunded, res.Original)

	slog.Info("payment refunded",
		"transaction_id", res.Original.TransactionID,
		"refund_transaction_id", res.Refund.TransactionID,
		"amount", res.Refund.Amount.String(),
	)
	return res, nil
}

// reverseFunds takes the net back from the payee and the fee and tax back
// from the platform, and credits the payer the full amount.
func (s *paymentService) reverseFunds(ctx context.Context, q repo.Queries, orig, refund *repo.Transaction) error {
	wallets, err := s.ledger.LockMany(ctx, q, orig.FromUserID, orig.ToUserID, s.platform)
	if err != nil {
		return err
	}
	payer, payee, platform := wallets[orig.FromUserID], wallets[orig.ToUserID], wallets[s.platform]

	meta := map[string]any{"transaction_id": refund.TransactionID, "original_transaction": orig.TransactionID}
	opts := wallet.Options{Description: refund.Description, Metadata: meta}

	var first uuid.NullUUID
	debits := []struct {
		w      *repo.Wallet
		amount decimal.Decimal
	}{
		{payee, orig.NetAmount},
		{platform, orig.PlatformFeeAmount.Add(orig.TaxAmount)},
	}
	for _, d := range debits {
		if !d.amount.IsPositive() {
			continue
		}
		e, err := s.ledger.Apply(ctx, q, d.w, wallet.Movement{
			Kind: wallet.Debit, Type: repo.WalletTxRefund, Amount: d.amount, RelatedID: first, Options: opts,
		})
		if err != nil {
			return fmt.Errorf("reverse leg: %w", err)
		}
		if !first.Valid {
			first = uuid.NullUUID{UUID: e.ID, Valid: true}
		}
	}

	if _, err := s.ledger.Apply(ctx, q, payer, wallet.Movement{
		Kind: wallet.Credit, Type: repo.WalletTxRefund, Amount: orig.Amount, RelatedID: first, Options: opts,
	}); err != nil {
		return fmt.Errorf("credit payer: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Verification
// ---------------------------------------------------------------------------

func (s *paymentService) VerifyProof(ctx context.Context, id, actor uuid.UUID) (*repo.Transaction, error) {
	t, changed, err := s.transition(ctx, id, func(t *repo.Transaction) (bool, error) {
		if t.ProofVerified {
			return false, nil
		}
		now := s.now()
		t.ProofVerified = true
		t.ProofVerifiedBy = uuid.NullUUID{UUID: actor, Valid: actor != uuid.Nil}
		t.ProofVerifiedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		slog.Info("payment proof verified", "transaction_id", t.TransactionID, "actor", actor)
	}
	return t, nil
}

func (s *paymentService) VerifyID(ctx context.Context, id uuid.UUID, method string, actor uuid.UUID) (*repo.Transaction, error) {
	method = strings.TrimSpace(method)
	if method == "" {
		return nil, ErrVerificationMethod
	}
	t, changed, err := s.transition(ctx, id, func(t *repo.Transaction) (bool, error) {
		if t.IDVerified {
			return false, nil
		}
		now := s.now()
		t.IDVerified = true
		t.IDVerificationMethod = method
		t.IDVerifiedBy = uuid.NullUUID{UUID: actor, Valid: actor != uuid.Nil}
		t.IDVerifiedAt = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		slog.Info("payer identity verified", "transaction_id", t.TransactionID, "method", method, "actor", actor)
	}
	return t, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

func (s *paymentService) Get(ctx context.Context, id uuid.UUID) (*repo.Transaction, error) {
	t, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *paymentService) GetByTransactionID(ctx context.Context, txnID string) (*repo.Transaction, error) {
	t, err := s.store.GetTransactionByTxnID(ctx, txnID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (s *paymentService) CommissionFor(ctx context.Context, id uuid.UUID) (*repo.Commission, error) {
	c, err := s.store.GetCommissionByTransaction(ctx, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, commission.ErrCommissionNotFound
		}
		return nil, fmt.Errorf("get commission: %w", err)
	}
	return c, nil
}

func (s *paymentService) ListForUser(ctx context.Context, userID uuid.UUID, f repo.TransactionFilter) ([]*repo.Transaction, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.store.ListTransactionsForUser(ctx, userID, f)
}

func (s *paymentService) Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return s.store.Revenue(ctx, from, to)
}
