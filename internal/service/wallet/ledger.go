package wallet

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
)

// Kind is the balance effect of a movement.
type Kind int

const (
	Credit  Kind = iota // balance += amount
	Debit               // balance -= amount
	Reserve             // balance -> hold_balance
	Release             // hold_balance -> balance
)

func (k Kind) String() string {
	switch k {
	case Credit:
		return "credit"
	case Debit:
		return "debit"
	case Reserve:
		return "hold"
	case Release:
		return "release"
	}
	return "unknown"
}

// Options carries the caller-supplied attributes of a wallet mutation.
type Options struct {
	Description    string
	IdempotencyKey string
	Metadata       map[string]any
	// HoldReference names the hold a release settles.
	HoldReference string
}

// Movement is one balance mutation plus the ledger row it produces.
type Movement struct {
	Kind      Kind
	Type      repo.WalletTxType
	Amount    decimal.Decimal
	RelatedID uuid.NullUUID
	Options
}

// Ledger applies movements inside a caller-owned atomic scope. The caller
// must hold the wallet lock (see Lock and LockMany) before calling Apply.
type Ledger struct {
	currency string
	now      func() time.Time
}

func NewLedger(currency string) *Ledger {
	return &Ledger{currency: strings.ToUpper(currency), now: time.Now}
}

// Currency is the currency new wallets are opened in.
func (l *Ledger) Currency() string { return l.currency }

// NewReference returns a fresh ledger reference id.
func NewReference(now time.Time) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("WAL-%s-%d", strings.ToUpper(hex[:12]), now.Unix())
}

// ValidAmount reports whether amount is positive and has no more decimal
// places than currency allows.
func ValidAmount(amount decimal.Decimal, currency string) bool {
	return money.Positive(amount) && amount.Equal(money.Round(amount, currency))
}

// Lock opens the user's wallet if needed and takes its row lock.
func (l *Ledger) Lock(ctx context.Context, q repo.Queries, userID uuid.UUID) (*repo.Wallet, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty user id", ErrWalletNotFound)
	}
	if _, err := q.CreateWallet(ctx, l.newWallet(userID)); err != nil {
		return nil, fmt.Errorf("open wallet: %w", err)
	}
	w, err := q.LockWalletByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

// LockMany locks the wallets of all users in ascending user-id order so that
// concurrent scopes touching the same wallets cannot deadlock.
func (l *Ledger) LockMany(ctx context.Context, q repo.Queries, userIDs ...uuid.UUID) (map[uuid.UUID]*repo.Wallet, error) {
	ids := make([]uuid.UUID, 0, len(userIDs))
	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })

	out := make(map[uuid.UUID]*repo.Wallet, len(ids))
	for _, id := range ids {
		w, err := l.Lock(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out[id] = w
	}
	return out, nil
}

func (l *Ledger) newWallet(userID uuid.UUID) *repo.Wallet {
	now := l.now()
	return &repo.Wallet{
		ID:          repo.NewID(),
		UserID:      userID,
		Balance:     decimal.Zero,
		HoldBalance: decimal.Zero,
		Currency:    l.currency,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Apply mutates w by m and appends the matching ledger row. The balance
// check runs against w, which must have been read under lock in this scope.
func (l *Ledger) Apply(ctx context.Context, q repo.Queries, w *repo.Wallet, m Movement) (*repo.WalletTransaction, error) {
	if !ValidAmount(m.Amount, w.Currency) {
		return nil, ErrInvalidAmount
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}

	status := repo.WalletTxCompleted
	var hold *repo.WalletTransaction

	switch m.Kind {
	case Credit:
		w.Balance = w.Balance.Add(m.Amount)
	case Debit:
		if w.Balance.LessThan(m.Amount) {
			return nil, ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(m.Amount)
	case Reserve:
		if w.Balance.LessThan(m.Amount) {
			return nil, ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(m.Amount)
		w.HoldBalance = w.HoldBalance.Add(m.Amount)
		status = repo.WalletTxPending
	case Release:
		var err error
		if m.HoldReference != "" {
			hold, err = l.openHold(ctx, q, w, m)
		} else {
			hold, err = l.oldestCoveringHold(ctx, q, w, m.Amount)
		}
		if err != nil {
			return nil, err
		}
		if w.HoldBalance.LessThan(m.Amount) {
			return nil, ErrInvalidHoldAmount
		}
		if hold != nil {
			m.RelatedID = uuid.NullUUID{UUID: hold.ID, Valid: true}
		}
		w.HoldBalance = w.HoldBalance.Sub(m.Amount)
		w.Balance = w.Balance.Add(m.Amount)
	default:
		return nil, fmt.Errorf("unknown movement kind %d", m.Kind)
	}

	now := l.now()
	w.UpdatedAt = now
	if err := q.UpdateWallet(ctx, w); err != nil {
		return nil, fmt.Errorf("update wallet: %w", err)
	}

	entry := &repo.WalletTransaction{
		ID:           repo.NewID(),
		WalletID:     w.ID,
		Amount:       m.Amount,
		Type:         m.Type,
		Status:       status,
		ReferenceID:  NewReference(now),
		Description:  m.Description,
		BalanceAfter: w.Balance,
		HoldAfter:    w.HoldBalance,
		RelatedID:    m.RelatedID,
		Metadata:     m.Metadata,
		CreatedAt:    now,
	}
	if m.IdempotencyKey != "" {
		key := m.IdempotencyKey
		entry.IdempotencyKey = &key
	}
	if err := q.InsertWalletTransaction(ctx, entry); err != nil {
		return nil, fmt.Errorf("append ledger row: %w", err)
	}

	if hold != nil {
		released, err := q.SumRelated(ctx, hold.ID, repo.WalletTxRelease)
		if err != nil {
			return nil, fmt.Errorf("sum releases: %w", err)
		}
		if released.GreaterThanOrEqual(hold.Amount) {
			if err := q.UpdateWalletTransactionStatus(ctx, hold.ID, repo.WalletTxCompleted); err != nil {
				return nil, fmt.Errorf("settle hold: %w", err)
			}
		}
	}
	if m.Kind == Release && w.HoldBalance.IsZero() {
		if err := l.settleAllHolds(ctx, q, w); err != nil {
			return nil, err
		}
	}

	return entry, nil
}

func (l *Ledger) pendingHolds(ctx context.Context, q repo.Queries, w *repo.Wallet) ([]*repo.WalletTransaction, error) {
	holds, _, err := q.ListWalletTransactions(ctx, w.ID, repo.WalletTxFilter{
		Type:   repo.WalletTxHold,
		Status: repo.WalletTxPending,
	})
	if err != nil {
		return nil, fmt.Errorf("list pending holds: %w", err)
	}
	// newest first from the store
	for i, j := 0, len(holds)-1; i < j; i, j = i+1, j-1 {
		holds[i], holds[j] = holds[j], holds[i]
	}
	return holds, nil
}

// oldestCoveringHold picks the oldest pending hold whose unreleased part
// covers amount, so an unreferenced release still settles hold rows. It
// returns nil when no single hold fits.
func (l *Ledger) oldestCoveringHold(ctx context.Context, q repo.Queries, w *repo.Wallet, amount decimal.Decimal) (*repo.WalletTransaction, error) {
	holds, err := l.pendingHolds(ctx, q, w)
	if err != nil {
		return nil, err
	}
	for _, h := range holds {
		released, err := q.SumRelated(ctx, h.ID, repo.WalletTxRelease)
		if err != nil {
			return nil, fmt.Errorf("sum releases: %w", err)
		}
		if h.Amount.Sub(released).GreaterThanOrEqual(amount) {
			return h, nil
		}
	}
	return nil, nil
}

// settleAllHolds completes every pending hold once nothing is held.
func (l *Ledger) settleAllHolds(ctx context.Context, q repo.Queries, w *repo.Wallet) error {
	holds, err := l.pendingHolds(ctx, q, w)
	if err != nil {
		return err
	}
	for _, h := range holds {
		if err := q.UpdateWalletTransactionStatus(ctx, h.ID, repo.WalletTxCompleted); err != nil {
			return fmt.Errorf("settle hold: %w", err)
		}
	}
	return nil
}

// openHold finds the pending hold a release points at and checks the
// release fits in what is still held against it.
func (l *Ledger) openHold(ctx context.Context, q repo.Queries, w *repo.Wallet, m Movement) (*repo.WalletTransaction, error) {
	hold, err := q.GetWalletTransactionByReference(ctx, m.HoldReference)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrHoldNotFound
		}
		return nil, err
	}
	if hold.WalletID != w.ID || hold.Type != repo.WalletTxHold {
		return nil, ErrHoldNotFound
	}
	if hold.Status != repo.WalletTxPending {
		// fully released already
		return nil, ErrInvalidHoldAmount
	}

	released, err := q.SumRelated(ctx, hold.ID, repo.WalletTxRelease)
	if err != nil {
		return nil, fmt.Errorf("sum releases: %w", err)
	}
	if released.Add(m.Amount).GreaterThan(hold.Amount) {
		return nil, ErrInvalidHoldAmount
	}
	return hold, nil
}
