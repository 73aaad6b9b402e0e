package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/observability"
)

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*repo.Wallet, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	History(ctx context.Context, userID uuid.UUID, f repo.WalletTxFilter) ([]*repo.WalletTransaction, int, error)

	Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error)
	Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error)
	Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error)
	Release(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error)
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, opts Options) (*TransferResult, error)

	Deactivate(ctx context.Context, userID uuid.UUID) (*repo.Wallet, error)

	// Ledger exposes the scope-level primitives for flows that move money
	// as part of a larger atomic unit.
	Ledger() *Ledger
}

// Summary is the wallet query view.
type Summary struct {
	Wallet       *repo.Wallet              `json:"wallet"`
	TotalBalance decimal.Decimal           `json:"total_balance"`
	Recent       []*repo.WalletTransaction `json:"recent_transactions"`
}

// Result is the outcome of a single-wallet mutation.
type Result struct {
	Wallet *repo.Wallet            `json:"wallet"`
	Entry  *repo.WalletTransaction `json:"entry"`
	// Replayed is set when an idempotency key matched an earlier call.
	Replayed bool `json:"replayed"`
}

type TransferResult struct {
	From     *Result `json:"from"`
	To       *Result `json:"to"`
	Replayed bool    `json:"replayed"`
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type walletService struct {
	store   repo.Store
	ledger  *Ledger
	metrics *observability.LedgerMetrics
	recent  int
}

func New(store repo.Store, currency string, recent int, metrics *observability.LedgerMetrics) Service {
	if recent <= 0 {
		recent = 5
	}
	if metrics == nil {
		metrics = observability.NewLedgerMetrics()
	}
	return &walletService{
		store:   store,
		ledger:  NewLedger(currency),
		metrics: metrics,
		recent:  recent,
	}
}

func (s *walletService) Ledger() *Ledger { return s.ledger }

func (s *walletService) GetOrCreate(ctx context.Context, userID uuid.UUID) (*repo.Wallet, error) {
	if userID == uuid.Nil {
		return nil, ErrWalletNotFound
	}
	w, err := s.store.GetWalletByUser(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !repo.IsNotFound(err) {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	w, err = s.store.CreateWallet(ctx, s.ledger.newWallet(userID))
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	slog.Info("wallet opened", "user_id", userID, "wallet_id", w.ID, "currency", w.Currency)
	return w, nil
}

func (s *walletService) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	w, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, _, err := s.store.ListWalletTransactions(ctx, w.ID, repo.WalletTxFilter{Limit: s.recent})
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	return &Summary{Wallet: w, TotalBalance: w.TotalBalance(), Recent: recent}, nil
}

func (s *walletService) History(ctx context.Context, userID uuid.UUID, f repo.WalletTxFilter) ([]*repo.WalletTransaction, int, error) {
	w, err := s.store.GetWalletByUser(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("get wallet: %w", err)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	return s.store.ListWalletTransactions(ctx, w.ID, f)
}

// ---------------------------------------------------------------------------
// Single-wallet mutations
// ---------------------------------------------------------------------------

func (s *walletService) Deposit(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error) {
	return s.mutate(ctx, "deposit", userID, Movement{Kind: Credit, Type: repo.WalletTxDeposit, Amount: amount, Options: opts})
}

func (s *walletService) Withdraw(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error) {
	return s.mutate(ctx, "withdraw", userID, Movement{Kind: Debit, Type: repo.WalletTxWithdrawal, Amount: amount, Options: opts})
}

func (s *walletService) Hold(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error) {
	return s.mutate(ctx, "hold", userID, Movement{Kind: Reserve, Type: repo.WalletTxHold, Amount: amount, Options: opts})
}

func (s *walletService) Release(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, opts Options) (*Result, error) {
	return s.mutate(ctx, "release", userID, Movement{Kind: Release, Type: repo.WalletTxRelease, Amount: amount, Options: opts})
}

func (s *walletService) mutate(ctx context.Context, op string, userID uuid.UUID, m Movement) (res *Result, err error) {
	ctx, span := s.metrics.Start(ctx, "wallet."+op,
		attribute.String("user_id", userID.String()),
		attribute.String("amount", m.Amount.String()),
	)
	defer func() {
		s.metrics.WalletOp(ctx, op, err)
		observability.End(span, err)
	}()

	if !m.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if m.IdempotencyKey != "" {
		if res, err := s.replay(ctx, userID, m); res != nil || err != nil {
			return res, err
		}
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		w, err := s.ledger.Lock(ctx, q, userID)
		if err != nil {
			return err
		}
		entry, err := s.ledger.Apply(ctx, q, w, m)
		if err != nil {
			return err
		}
		res = &Result{Wallet: w, Entry: entry}
		return nil
	})
	if err != nil {
		if m.IdempotencyKey != "" && repo.IsConflict(err) {
			// Lost a race with a concurrent call carrying the same key.
			if res, rerr := s.replay(ctx, userID, m); res != nil || rerr != nil {
				return res, rerr
			}
		}
		slog.Warn("wallet operation failed", "op", op, "user_id", userID, "amount", m.Amount.String(), "error", err)
		return nil, err
	}

	slog.Info("wallet operation",
		"op", op,
		"user_id", userID,
		"amount", m.Amount.String(),
		"reference_id", res.Entry.ReferenceID,
		"balance", res.Wallet.Balance.String(),
		"hold_balance", res.Wallet.HoldBalance.String(),
	)
	return res, nil
}

// replay returns the earlier result for a reused idempotency key, or
// (nil, nil) when the key is fresh.
func (s *walletService) replay(ctx context.Context, userID uuid.UUID, m Movement) (*Result, error) {
	entry, err := s.store.GetWalletTransactionByIdempotencyKey(ctx, m.IdempotencyKey)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lookup idempotency key: %w", err)
	}

	w, err := s.store.GetWalletByUser(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrIdempotencyConflict
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if entry.WalletID != w.ID || entry.Type != m.Type || !entry.Amount.Equal(m.Amount) {
		return nil, ErrIdempotencyConflict
	}
	return &Result{Wallet: w, Entry: entry, Replayed: true}, nil
}

// ---------------------------------------------------------------------------
// Transfer
// ---------------------------------------------------------------------------

func creditKey(key string) string {
	if key == "" {
		return ""
	}
	return key + "#credit"
}

func (s *walletService) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount decimal.Decimal, opts Options) (res *TransferResult, err error) {
	ctx, span := s.metrics.Start(ctx, "wallet.transfer",
		attribute.String("from_user_id", fromUserID.String()),
		attribute.String("to_user_id", toUserID.String()),
		attribute.String("amount", amount.String()),
	)
	defer func() {
		s.metrics.WalletOp(ctx, "transfer", err)
		observability.End(span, err)
	}()

	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return nil, ErrSameWallet
	}

	debit := Movement{Kind: Debit, Type: repo.WalletTxTransfer, Amount: amount, Options: opts}
	credit := Movement{Kind: Credit, Type: repo.WalletTxTransfer, Amount: amount, Options: opts}
	credit.IdempotencyKey = creditKey(opts.IdempotencyKey)

	if opts.IdempotencyKey != "" {
		if res, err := s.replayTransfer(ctx, fromUserID, toUserID, debit, credit); res != nil || err != nil {
			return res, err
		}
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		wallets, err := s.ledger.LockMany(ctx, q, fromUserID, toUserID)
		if err != nil {
			return err
		}
		from, to := wallets[fromUserID], wallets[toUserID]
		if from.Currency != to.Currency {
			return ErrCurrencyMismatch
		}
		if !to.IsActive {
			return ErrWalletInactive
		}

		out, err := s.ledger.Apply(ctx, q, from, debit)
		if err != nil {
			return err
		}
		credit.RelatedID = uuid.NullUUID{UUID: out.ID, Valid: true}
		in, err := s.ledger.Apply(ctx, q, to, credit)
		if err != nil {
			return err
		}

		res = &TransferResult{
			From: &Result{Wallet: from, Entry: out},
			To:   &Result{Wallet: to, Entry: in},
		}
		return nil
	})
	if err != nil {
		if opts.IdempotencyKey != "" && repo.IsConflict(err) {
			if res, rerr := s.replayTransfer(ctx, fromUserID, toUserID, debit, credit); res != nil || rerr != nil {
				return res, rerr
			}
		}
		slog.Warn("wallet transfer failed", "from_user_id", fromUserID, "to_user_id", toUserID, "amount", amount.String(), "error", err)
		return nil, err
	}

	slog.Info("wallet transfer",
		"from_user_id", fromUserID,
		"to_user_id", toUserID,
		"amount", amount.String(),
		"reference_id", res.From.Entry.ReferenceID,
	)
	return res, nil
}

func (s *walletService) replayTransfer(ctx context.Context, fromUserID, toUserID uuid.UUID, debit, credit Movement) (*TransferResult, error) {
	from, err := s.replay(ctx, fromUserID, debit)
	if err != nil || from == nil {
		return nil, err
	}
	to, err := s.replay(ctx, toUserID, credit)
	if err != nil {
		return nil, err
	}
	if to == nil {
		return nil, ErrIdempotencyConflict
	}
	return &TransferResult{From: from, To: to, Replayed: true}, nil
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Deactivate freezes the wallet. Balances stay; every mutation is refused.
func (s *walletService) Deactivate(ctx context.Context, userID uuid.UUID) (*repo.Wallet, error) {
	var out *repo.Wallet
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		w, err := q.LockWalletByUser(ctx, userID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrWalletNotFound
			}
			return err
		}
		if !w.IsActive {
			out = w
			return nil
		}
		w.IsActive = false
		w.UpdatedAt = s.ledger.now()
		if err := q.UpdateWallet(ctx, w); err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrWalletNotFound) {
			slog.Warn("wallet deactivate failed", "user_id", userID, "error", err)
		}
		return nil, err
	}
	slog.Info("wallet deactivated", "user_id", userID, "wallet_id", out.ID)
	return out, nil
}
