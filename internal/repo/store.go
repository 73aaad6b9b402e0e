package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletTxFilter narrows a wallet history query. Zero values mean "any".
type WalletTxFilter struct {
	Type   WalletTxType
	Status WalletTxStatus
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

// TransactionFilter narrows a per-user transaction listing.
type TransactionFilter struct {
	Status      TransactionStatus
	PaymentType PaymentType
	From        time.Time
	To          time.Time
	Limit       int
	Offset      int
}

// Queries is the set of reads and writes the ledger services need. Lock*
// methods take a row-level exclusive lock and are only meaningful inside
// Store.InTx.
type Queries interface {
	GetWalletByUser(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	LockWalletByUser(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// CreateWallet inserts w unless the user already owns a wallet, and
	// returns whichever row exists afterwards.
	CreateWallet(ctx context.Context, w *Wallet) (*Wallet, error)
	UpdateWallet(ctx context.Context, w *Wallet) error

	InsertWalletTransaction(ctx context.Context, e *WalletTransaction) error
	GetWalletTransactionByReference(ctx context.Context, ref string) (*WalletTransaction, error)
	GetWalletTransactionByIdempotencyKey(ctx context.Context, key string) (*WalletTransaction, error)
	UpdateWalletTransactionStatus(ctx context.Context, id uuid.UUID, status WalletTxStatus) error
	ListWalletTransactions(ctx context.Context, walletID uuid.UUID, f WalletTxFilter) ([]*WalletTransaction, int, error)
	// SumRelated totals completed rows of type t that point at relatedID.
	SumRelated(ctx context.Context, relatedID uuid.UUID, t WalletTxType) (decimal.Decimal, error)

	InsertTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetTransactionByTxnID(ctx context.Context, txnID string) (*Transaction, error)
	LockTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	ListTransactionsForUser(ctx context.Context, userID uuid.UUID, f TransactionFilter) ([]*Transaction, int, error)
	// HasSettledPaymentForUnit reports whether a non-refund transaction
	// linked to the unit reached completed (or was later refunded).
	HasSettledPaymentForUnit(ctx context.Context, kind UnitKind, unitID uuid.UUID) (bool, error)
	// Revenue sums platform fees of completed transactions plus completed
	// subscription payments.
	Revenue(ctx context.Context, from, to time.Time) (decimal.Decimal, error)

	InsertCommission(ctx context.Context, c *Commission) error
	GetCommission(ctx context.Context, id uuid.UUID) (*Commission, error)
	LockCommission(ctx context.Context, id uuid.UUID) (*Commission, error)
	GetCommissionByTransaction(ctx context.Context, transactionID uuid.UUID) (*Commission, error)
	UpdateCommission(ctx context.Context, c *Commission) error
	SumCommissions(ctx context.Context, from, to time.Time) (CommissionTotals, error)

	// LockCommissionTiers serializes tier writes for the rest of the scope.
	LockCommissionTiers(ctx context.Context) error
	ListCommissionTiers(ctx context.Context, activeOnly bool) ([]*CommissionTier, error)
	FindActiveTiersForAmount(ctx context.Context, amount decimal.Decimal) ([]*CommissionTier, error)
	FindOverlappingTiers(ctx context.Context, min, max decimal.Decimal) ([]*CommissionTier, error)
	GetCommissionTier(ctx context.Context, id uuid.UUID) (*CommissionTier, error)
	InsertCommissionTier(ctx context.Context, t *CommissionTier) error
	UpdateCommissionTier(ctx context.Context, t *CommissionTier) error

	InsertSpecialRate(ctx context.Context, r *SpecialCommissionRate) error
	// ListSpecialRates returns active rates for the user or the category
	// that are in effect at the given instant.
	ListSpecialRates(ctx context.Context, userID, categoryID uuid.NullUUID, at time.Time) ([]*SpecialCommissionRate, error)

	UpsertWorkUnit(ctx context.Context, u *WorkUnit) error
	GetWorkUnit(ctx context.Context, id uuid.UUID) (*WorkUnit, error)
	LockWorkUnit(ctx context.Context, id uuid.UUID) (*WorkUnit, error)
	UpdateWorkUnit(ctx context.Context, u *WorkUnit) error
	ListTasks(ctx context.Context, projectID uuid.UUID) ([]*WorkUnit, error)

	InsertMilestone(ctx context.Context, m *Milestone) error
	GetMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error)
	LockMilestone(ctx context.Context, id uuid.UUID) (*Milestone, error)
	UpdateMilestone(ctx context.Context, m *Milestone) error
	ListMilestones(ctx context.Context, kind UnitKind, unitID uuid.UUID) ([]*Milestone, error)
}

// TxFunc runs inside one atomic scope. Returning an error rolls the scope back.
type TxFunc func(ctx context.Context, q Queries) error

// Store is the ledger's persistence port.
type Store interface {
	Queries

	// InTx runs fn in one atomic scope: everything fn writes through q
	// commits together or not at all.
	InTx(ctx context.Context, fn TxFunc) error

	Close() error
}

// NewID returns a time-ordered row id.
func NewID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}
