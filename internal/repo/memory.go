package repo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store. Atomic scopes are serialized and run
// against a private copy of the data that replaces the live copy only when
// the scope succeeds.
type MemoryStore struct {
	*memQueries

	mu   sync.Mutex
	data *memData
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{data: newMemData()}
	s.memQueries = &memQueries{store: s}
	return s
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) InTx(ctx context.Context, fn TxFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &memQueries{store: s, tx: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

type memData struct {
	wallets      map[uuid.UUID]*Wallet
	walletByUser map[uuid.UUID]uuid.UUID
	walletTxs    []*WalletTransaction
	transactions []*Transaction
	commissions  []*Commission
	tiers        []*CommissionTier
	rates        []*SpecialCommissionRate
	units        map[uuid.UUID]*WorkUnit
	milestones   []*Milestone
}

func newMemData() *memData {
	return &memData{
		wallets:      map[uuid.UUID]*Wallet{},
		walletByUser: map[uuid.UUID]uuid.UUID{},
		units:        map[uuid.UUID]*WorkUnit{},
	}
}

func cloneSlice[T any](in []*T) []*T {
	out := make([]*T, len(in))
	for i, v := range in {
		c := *v
		out[i] = &c
	}
	return out
}

func (d *memData) clone() *memData {
	c := newMemData()
	for id, w := range d.wallets {
		cp := *w
		c.wallets[id] = &cp
	}
	for u, id := range d.walletByUser {
		c.walletByUser[u] = id
	}
	for id, u := range d.units {
		cp := *u
		c.units[id] = &cp
	}
	c.walletTxs = cloneSlice(d.walletTxs)
	c.transactions = cloneSlice(d.transactions)
	c.commissions = cloneSlice(d.commissions)
	c.tiers = cloneSlice(d.tiers)
	c.rates = cloneSlice(d.rates)
	c.milestones = cloneSlice(d.milestones)
	return c
}

// memQueries reads and writes either the scope's private copy (tx) or,
// outside a scope, the live data under the store mutex.
type memQueries struct {
	store *MemoryStore
	tx    *memData
}

func (q *memQueries) begin() (*memData, func()) {
	if q.tx != nil {
		return q.tx, func() {}
	}
	q.store.mu.Lock()
	return q.store.data, q.store.mu.Unlock
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

// ---- wallets ----

func (q *memQueries) GetWalletByUser(_ context.Context, userID uuid.UUID) (*Wallet, error) {
	d, done := q.begin()
	defer done()

	id, ok := d.walletByUser[userID]
	if !ok {
		return nil, fmt.Errorf("wallet: %w", ErrNotFound)
	}
	return copyOf(d.wallets[id]), nil
}

func (q *memQueries) LockWalletByUser(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return q.GetWalletByUser(ctx, userID)
}

func (q *memQueries) CreateWallet(_ context.Context, w *Wallet) (*Wallet, error) {
	d, done := q.begin()
	defer done()

	if id, ok := d.walletByUser[w.UserID]; ok {
		return copyOf(d.wallets[id]), nil
	}
	d.wallets[w.ID] = copyOf(w)
	d.walletByUser[w.UserID] = w.ID
	return copyOf(w), nil
}

func (q *memQueries) UpdateWallet(_ context.Context, w *Wallet) error {
	d, done := q.begin()
	defer done()

	if _, ok := d.wallets[w.ID]; !ok {
		return fmt.Errorf("wallet: %w", ErrNotFound)
	}
	if w.Balance.IsNegative() || w.HoldBalance.IsNegative() {
		return fmt.Errorf("wallet %s: negative balance rejected", w.ID)
	}
	d.wallets[w.ID] = copyOf(w)
	return nil
}

// ---- wallet transactions ----

func (q *memQueries) InsertWalletTransaction(_ context.Context, e *WalletTransaction) error {
	d, done := q.begin()
	defer done()

	for _, x := range d.walletTxs {
		if x.ReferenceID == e.ReferenceID {
			return fmt.Errorf("reference_id %q: %w", e.ReferenceID, ErrConflict)
		}
		if e.IdempotencyKey != nil && x.IdempotencyKey != nil && *x.IdempotencyKey == *e.IdempotencyKey {
			return fmt.Errorf("idempotency_key: %w", ErrConflict)
		}
	}
	d.walletTxs = append(d.walletTxs, copyOf(e))
	return nil
}

func (q *memQueries) findWalletTx(match func(*WalletTransaction) bool) (*WalletTransaction, error) {
	d, done := q.begin()
	defer done()

	for _, x := range d.walletTxs {
		if match(x) {
			return copyOf(x), nil
		}
	}
	return nil, fmt.Errorf("wallet transaction: %w", ErrNotFound)
}

func (q *memQueries) GetWalletTransactionByReference(_ context.Context, ref string) (*WalletTransaction, error) {
	return q.findWalletTx(func(x *WalletTransaction) bool { return x.ReferenceID == ref })
}

func (q *memQueries) GetWalletTransactionByIdempotencyKey(_ context.Context, key string) (*WalletTransaction, error) {
	return q.findWalletTx(func(x *WalletTransaction) bool {
		return x.IdempotencyKey != nil && *x.IdempotencyKey == key
	})
}

func (q *memQueries) UpdateWalletTransactionStatus(_ context.Context, id uuid.UUID, status WalletTxStatus) error {
	d, done := q.begin()
	defer done()

	for _, x := range d.walletTxs {
		if x.ID == id && x.Status == WalletTxPending {
			x.Status = status
			return nil
		}
	}
	return fmt.Errorf("pending wallet transaction: %w", ErrNotFound)
}

func inWindow(at, from, to time.Time) bool {
	if !from.IsZero() && at.Before(from) {
		return false
	}
	if !to.IsZero() && at.After(to) {
		return false
	}
	return true
}

func page[T any](in []*T, limit, offset int) []*T {
	if offset >= len(in) {
		return nil
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (q *memQueries) ListWalletTransactions(_ context.Context, walletID uuid.UUID, f WalletTxFilter) ([]*WalletTransaction, int, error) {
	d, done := q.begin()
	defer done()

	var matched []*WalletTransaction
	for i := len(d.walletTxs) - 1; i >= 0; i-- {
		x := d.walletTxs[i]
		if x.WalletID != walletID ||
			(f.Type != "" && x.Type != f.Type) ||
			(f.Status != "" && x.Status != f.Status) ||
			!inWindow(x.CreatedAt, f.From, f.To) {
			continue
		}
		matched = append(matched, copyOf(x))
	}
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func (q *memQueries) SumRelated(_ context.Context, relatedID uuid.UUID, t WalletTxType) (decimal.Decimal, error) {
	d, done := q.begin()
	defer done()

	sum := decimal.Zero
	for _, x := range d.walletTxs {
		if x.RelatedID.Valid && x.RelatedID.UUID == relatedID && x.Type == t && x.Status == WalletTxCompleted {
			sum = sum.Add(x.Amount)
		}
	}
	return sum, nil
}

// ---- transactions ----

func (q *memQueries) InsertTransaction(_ context.Context, t *Transaction) error {
	d, done := q.begin()
	defer done()

	for _, x := range d.transactions {
		if x.ID == t.ID || x.TransactionID == t.TransactionID {
			return fmt.Errorf("transaction %q: %w", t.TransactionID, ErrConflict)
		}
	}
	d.transactions = append(d.transactions, copyOf(t))
	return nil
}

func (q *memQueries) findTransaction(match func(*Transaction) bool) (*Transaction, error) {
	d, done := q.begin()
	defer done()

	for _, x := range d.transactions {
		if match(x) {
			return copyOf(x), nil
		}
	}
	return nil, fmt.Errorf("transaction: %w", ErrNotFound)
}

func (q *memQueries) GetTransaction(_ context.Context, id uuid.UUID) (*Transaction, error) {
	return q.findTransaction(func(x *Transaction) bool { return x.ID == id })
}

func (q *memQueries) GetTransactionByTxnID(_ context.Context, txnID string) (*Transaction, error) {
	return q.findTransaction(func(x *Transaction) bool { return x.TransactionID == txnID })
}

func (q *memQueries) LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	return q.GetTransaction(ctx, id)
}

func (q *memQueries) UpdateTransaction(_ context.Context, t *Transaction) error {
	d, done := q.begin()
	defer done()

	for i, x := range d.transactions {
		if x.ID == t.ID {
			d.transactions[i] = copyOf(t)
			return nil
		}
	}
	return fmt.Errorf("transaction: %w", ErrNotFound)
}

func (q *memQueries) ListTransactionsForUser(_ context.Context, userID uuid.UUID, f TransactionFilter) ([]*Transaction, int, error) {
	d, done := q.begin()
	defer done()

	var matched []*Transaction
	for i := len(d.transactions) - 1; i >= 0; i-- {
		x := d.transactions[i]
		if (x.FromUserID != userID && x.ToUserID != userID) ||
			(f.Status != "" && x.Status != f.Status) ||
			(f.PaymentType != "" && x.PaymentType != f.PaymentType) ||
			!inWindow(x.CreatedAt, f.From, f.To) {
			continue
		}
		matched = append(matched, copyOf(x))
	}
	return page(matched, f.Limit, f.Offset), len(matched), nil
}

func (q *memQueries) HasSettledPaymentForUnit(_ context.Context, kind UnitKind, unitID uuid.UUID) (bool, error) {
	d, done := q.begin()
	defer done()

	for _, x := range d.transactions {
		link := x.ProjectID
		if kind == UnitTask {
			link = x.TaskID
		}
		if !link.Valid || link.UUID != unitID || x.PaymentType == PaymentRefund {
			continue
		}
		if x.Status == TxCompleted || x.Status == TxRefunded {
			return true, nil
		}
	}
	return false, nil
}

func (q *memQueries) Revenue(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	d, done := q.begin()
	defer done()

	sum := decimal.Zero
	for _, x := range d.transactions {
		if x.Status != TxCompleted || !inWindow(x.CreatedAt, from, to) {
			continue
		}
		sum = sum.Add(x.PlatformFeeAmount)
		if x.PaymentType == PaymentSubscription {
			sum = sum.Add(x.Amount)
		}
	}
	return sum, nil
}

// ---- commissions ----

func (q *memQueries) InsertCommission(_ context.Context, c *Commission) error {
	d, done := q.begin()
	defer done()

	for _, x := range d.commissions {
		if x.TransactionID == c.TransactionID {
			return fmt.Errorf("commission for transaction %s: %w", c.TransactionID, ErrConflict)
		}
	}
	d.commissions = append(d.commissions, copyOf(c))
	return nil
}

func (q *memQueries) findCommission(match func(*Commission) bool) (*Commission, error) {
	d, done := q.begin()
	defer done()

	for _, x := range d.commissions {
		if match(x) {
			return copyOf(x), nil
		}
	}
	return nil, fmt.Errorf("commission: %w", ErrNotFound)
}

func (q *memQueries) GetCommission(_ context.Context, id uuid.UUID) (*Commission, error) {
	return q.findCommission(func(x *Commission) bool { return x.ID == id })
}

func (q *memQueries) LockCommission(ctx context.Context, id uuid.UUID) (*Commission, error) {
	return q.GetCommission(ctx, id)
}

func (q *memQueries) GetCommissionByTransaction(_ context.Context, transactionID uuid.UUID) (*Commission, error) {
	return q.findCommission(func(x *Commission) bool { return x.TransactionID == transactionID })
}

func (q *memQueries) UpdateCommission(_ context.Context, c *Commission) error {
	d, done := q.begin()
	defer done()

	for i, x := range d.commissions {
		if x.ID == c.ID {
			d.commissions[i] = copyOf(c)
			return nil
		}
	}
	return fmt.Errorf("commission: %w", ErrNotFound)
}

func (q *memQueries) SumCommissions(_ context.Context, from, to time.Time) (CommissionTotals, error) {
	d, done := q.begin()
	defer done()

	totals := CommissionTotals{Total: decimal.Zero}
	for _, x := range d.commissions {
		if inWindow(x.CreatedAt, from, to) {
			totals.Total = totals.Total.Add(x.Amount)
			totals.Count++
		}
	}
	return totals, nil
}

// ---- commission tiers ----

// LockCommissionTiers is a no-op: memory scopes are already serialized.
func (q *memQueries) LockCommissionTiers(context.Context) error { return nil }

func (q *memQueries) filterTiers(match func(*CommissionTier) bool) []*CommissionTier {
	d, done := q.begin()
	defer done()

	var out []*CommissionTier
	for _, t := range d.tiers {
		if match(t) {
			out = append(out, copyOf(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MinAmount.LessThan(out[j].MinAmount) })
	return out
}

func (q *memQueries) ListCommissionTiers(_ context.Context, activeOnly bool) ([]*CommissionTier, error) {
	return q.filterTiers(func(t *CommissionTier) bool { return !activeOnly || t.IsActive }), nil
}

func (q *memQueries) FindActiveTiersForAmount(_ context.Context, amount decimal.Decimal) ([]*CommissionTier, error) {
	return q.filterTiers(func(t *CommissionTier) bool { return t.IsActive && t.Contains(amount) }), nil
}

func (q *memQueries) FindOverlappingTiers(_ context.Context, min, max decimal.Decimal) ([]*CommissionTier, error) {
	return q.filterTiers(func(t *CommissionTier) bool { return t.IsActive && t.Overlaps(min, max) }), nil
}

func (q *memQueries) GetCommissionTier(_ context.Context, id uuid.UUID) (*CommissionTier, error) {
	ts := q.filterTiers(func(t *CommissionTier) bool { return t.ID == id })
	if len(ts) == 0 {
		return nil, fmt.Errorf("commission tier: %w", ErrNotFound)
	}
	return ts[0], nil
}

func (q *memQueries) InsertCommissionTier(_ context.Context, t *CommissionTier) error {
	d, done := q.begin()
	defer done()

	d.tiers = append(d.tiers, copyOf(t))
	return nil
}

func (q *memQueries) UpdateCommissionTier(_ context.Context, t *CommissionTier) error {
	d, done := q.begin()
	defer done()

	for i, x := range d.tiers {
		if x.ID == t.ID {
			d.tiers[i] = copyOf(t)
			return nil
		}
	}
	return fmt.Errorf("commission tier: %w", ErrNotFound)
}

// ---- special rates ----

func (q *memQueries) InsertSpecialRate(_ context.Context, r *SpecialCommissionRate) error {
	d, done := q.begin()
	defer done()

	d.rates = append(d.rates, copyOf(r))
	return nil
}

func (q *memQueries) ListSpecialRates(_ context.Context, userID, categoryID uuid.NullUUID, at time.Time) ([]*SpecialCommissionRate, error) {
	d, done := q.begin()
	defer done()

	var out []*SpecialCommissionRate
	for _, r := range d.rates {
		userMatch := userID.Valid && r.UserID.Valid && r.UserID.UUID == userID.UUID
		catMatch := categoryID.Valid && r.CategoryID.Valid && r.CategoryID.UUID == categoryID.UUID
		if (userMatch || catMatch) && r.ActiveAt(at) {
			out = append(out, copyOf(r))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartsAt.After(out[j].StartsAt) })
	return out, nil
}

// ---- work units ----

func (q *memQueries) UpsertWorkUnit(_ context.Context, u *WorkUnit) error {
	d, done := q.begin()
	defer done()

	if cur, ok := d.units[u.ID]; ok {
		cur.AssigneeID = u.AssigneeID
		cur.CategoryID = u.CategoryID
		cur.Title = u.Title
		cur.Budget = u.Budget
		cur.UpdatedAt = u.UpdatedAt
		return nil
	}
	d.units[u.ID] = copyOf(u)
	return nil
}

func (q *memQueries) GetWorkUnit(_ context.Context, id uuid.UUID) (*WorkUnit, error) {
	d, done := q.begin()
	defer done()

	u, ok := d.units[id]
	if !ok {
		return nil, fmt.Errorf("work unit: %w", ErrNotFound)
	}
	return copyOf(u), nil
}

func (q *memQueries) LockWorkUnit(ctx context.Context, id uuid.UUID) (*WorkUnit, error) {
	return q.GetWorkUnit(ctx, id)
}

func (q *memQueries) UpdateWorkUnit(_ context.Context, u *WorkUnit) error {
	d, done := q.begin()
	defer done()

	cur, ok := d.units[u.ID]
	if !ok {
		return fmt.Errorf("work unit: %w", ErrNotFound)
	}
	cur.Status = u.Status
	cur.PaymentStatus = u.PaymentStatus
	cur.PaymentStrategy = u.PaymentStrategy
	cur.AutoPaid = u.AutoPaid
	cur.CompletedAt = u.CompletedAt
	cur.UpdatedAt = u.UpdatedAt
	return nil
}

func (q *memQueries) ListTasks(_ context.Context, projectID uuid.UUID) ([]*WorkUnit, error) {
	d, done := q.begin()
	defer done()

	var out []*WorkUnit
	for _, u := range d.units {
		if u.Kind == UnitTask && u.ProjectID.Valid && u.ProjectID.UUID == projectID {
			out = append(out, copyOf(u))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ---- milestones ----

func (q *memQueries) InsertMilestone(_ context.Context, m *Milestone) error {
	d, done := q.begin()
	defer done()

	d.milestones = append(d.milestones, copyOf(m))
	return nil
}

func (q *memQueries) GetMilestone(_ context.Context, id uuid.UUID) (*Milestone, error) {
	d, done := q.begin()
	defer done()

	for _, m := range d.milestones {
		if m.ID == id {
			return copyOf(m), nil
		}
	}
	return nil, fmt.Errorf("milestone: %w", ErrNotFound)
}

func (q *memQueries) LockMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error) {
	return q.GetMilestone(ctx, id)
}

func (q *memQueries) UpdateMilestone(_ context.Context, m *Milestone) error {
	d, done := q.begin()
	defer done()

	for i, x := range d.milestones {
		if x.ID == m.ID {
			d.milestones[i] = copyOf(m)
			return nil
		}
	}
	return fmt.Errorf("milestone: %w", ErrNotFound)
}

func (q *memQueries) ListMilestones(_ context.Context, kind UnitKind, unitID uuid.UUID) ([]*Milestone, error) {
	d, done := q.begin()
	defer done()

	var out []*Milestone
	for _, m := range d.milestones {
		owner, id := m.Owner()
		if owner == kind && id == unitID {
			out = append(out, copyOf(m))
		}
	}
	return out, nil
}
