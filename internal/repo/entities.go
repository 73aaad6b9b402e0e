// Package repo holds the ledger's persisted entities and the storage ports
// the services run against.
package repo

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet is a user's spendable and earmarked funds.
type Wallet struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Balance     decimal.Decimal `json:"balance"`
	HoldBalance decimal.Decimal `json:"hold_balance"`
	Currency    string          `json:"currency"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TotalBalance is balance plus hold balance.
func (w *Wallet) TotalBalance() decimal.Decimal {
	return w.Balance.Add(w.HoldBalance)
}

type WalletTxType string

const (
	WalletTxDeposit      WalletTxType = "deposit"
	WalletTxWithdrawal   WalletTxType = "withdrawal"
	WalletTxTransfer     WalletTxType = "transfer"
	WalletTxPayment      WalletTxType = "payment"
	WalletTxRefund       WalletTxType = "refund"
	WalletTxHold         WalletTxType = "hold"
	WalletTxRelease      WalletTxType = "release"
	WalletTxCommission   WalletTxType = "commission"
	WalletTxSubscription WalletTxType = "subscription"
)

func (t WalletTxType) Valid() bool {
	switch t {
	case WalletTxDeposit, WalletTxWithdrawal, WalletTxTransfer, WalletTxPayment, WalletTxRefund,
		WalletTxHold, WalletTxRelease, WalletTxCommission, WalletTxSubscription:
		return true
	}
	return false
}

type WalletTxStatus string

const (
	WalletTxPending   WalletTxStatus = "pending"
	WalletTxCompleted WalletTxStatus = "completed"
	WalletTxFailed    WalletTxStatus = "failed"
	WalletTxCancelled WalletTxStatus = "cancelled"
)

// Terminal reports whether no further status change is allowed.
func (s WalletTxStatus) Terminal() bool {
	return s != WalletTxPending
}

// WalletTransaction is one immutable ledger row. Only a pending row's status
// may change, and only once.
type WalletTransaction struct {
	ID             uuid.UUID       `json:"id"`
	WalletID       uuid.UUID       `json:"wallet_id"`
	Amount         decimal.Decimal `json:"amount"`
	Type           WalletTxType    `json:"type"`
	Status         WalletTxStatus  `json:"status"`
	ReferenceID    string          `json:"reference_id"`
	IdempotencyKey *string         `json:"-"`
	Description    string          `json:"description,omitempty"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	HoldAfter      decimal.Decimal `json:"hold_balance_after"`
	RelatedID      uuid.NullUUID   `json:"related_id"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

type PaymentType string

const (
	PaymentProject      PaymentType = "project"
	PaymentMilestone    PaymentType = "milestone"
	PaymentTask         PaymentType = "task"
	PaymentWithdrawal   PaymentType = "withdrawal"
	PaymentRefund       PaymentType = "refund"
	PaymentSubscription PaymentType = "subscription"
	PaymentDeposit      PaymentType = "deposit"
	PaymentEscrow       PaymentType = "escrow"
	PaymentCommission   PaymentType = "commission"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentProject, PaymentMilestone, PaymentTask, PaymentWithdrawal, PaymentRefund,
		PaymentSubscription, PaymentDeposit, PaymentEscrow, PaymentCommission:
		return true
	}
	return false
}

type TransactionStatus string

const (
	TxPending    TransactionStatus = "pending"
	TxProcessing TransactionStatus = "processing"
	TxCompleted  TransactionStatus = "completed"
	TxFailed     TransactionStatus = "failed"
	TxRefunded   TransactionStatus = "refunded"
	TxCancelled  TransactionStatus = "cancelled"
	TxDisputed   TransactionStatus = "disputed"
)

// Terminal reports whether the status admits no further transition.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TxCompleted, TxFailed, TxRefunded, TxCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodWallet  PaymentMethod = "wallet"
	MethodGateway PaymentMethod = "gateway"
)

// Transaction is the canonical cross-party payment entry.
type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	TransactionID        string            `json:"transaction_id"`
	FromUserID           uuid.UUID         `json:"from_user"`
	ToUserID             uuid.UUID         `json:"to_user"`
	Amount               decimal.Decimal   `json:"amount"`
	Currency             string            `json:"currency"`
	PaymentType          PaymentType       `json:"payment_type"`
	PaymentMethod        PaymentMethod     `json:"payment_method"`
	Status               TransactionStatus `json:"status"`
	PlatformFeeAmount    decimal.Decimal   `json:"platform_fee_amount"`
	TaxAmount            decimal.Decimal   `json:"tax_amount"`
	NetAmount            decimal.Decimal   `json:"net_amount"`
	ProjectID            uuid.NullUUID     `json:"project_id"`
	TaskID               uuid.NullUUID     `json:"task_id"`
	MilestoneID          uuid.NullUUID     `json:"milestone_id"`
	ParentTransactionID  uuid.NullUUID     `json:"parent_transaction_id"`
	CommissionTierID     uuid.NullUUID     `json:"commission_tier_id"`
	Description          string            `json:"description,omitempty"`
	Notes                string            `json:"notes,omitempty"`
	Metadata             map[string]any    `json:"metadata,omitempty"`
	ProofVerified        bool              `json:"proof_verified"`
	ProofVerifiedBy      uuid.NullUUID     `json:"proof_verified_by"`
	ProofVerifiedAt      *time.Time        `json:"proof_verified_at,omitempty"`
	IDVerified           bool              `json:"id_verified"`
	IDVerificationMethod string            `json:"id_verification_method,omitempty"`
	IDVerifiedBy         uuid.NullUUID     `json:"id_verified_by"`
	IDVerifiedAt         *time.Time        `json:"id_verified_at,omitempty"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// ComputeNet sets NetAmount from amount, fee and tax.
func (t *Transaction) ComputeNet() {
	t.NetAmount = t.Amount.Sub(t.PlatformFeeAmount).Sub(t.TaxAmount)
}

// CommissionTier is a fee schedule for amounts in [MinAmount, MaxAmount].
type CommissionTier struct {
	ID                 uuid.UUID       `json:"id"`
	Name               string          `json:"name"`
	MinAmount          decimal.Decimal `json:"min_amount"`
	MaxAmount          decimal.Decimal `json:"max_amount"`
	Percentage         decimal.Decimal `json:"percentage"`
	FlatFee            decimal.Decimal `json:"flat_fee"`
	FreelancerDiscount decimal.Decimal `json:"freelancer_discount"`
	ClientDiscount     decimal.Decimal `json:"client_discount"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Contains reports whether amount lies inside the tier's closed range.
func (t *CommissionTier) Contains(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(t.MinAmount) && amount.LessThanOrEqual(t.MaxAmount)
}

// Overlaps reports whether the closed ranges [t.Min, t.Max] and [min, max]
// share any amount.
func (t *CommissionTier) Overlaps(min, max decimal.Decimal) bool {
	return t.MinAmount.LessThanOrEqual(max) && t.MaxAmount.GreaterThanOrEqual(min)
}

// SpecialCommissionRate overrides tier lookup for a user or a category.
type SpecialCommissionRate struct {
	ID         uuid.UUID       `json:"id"`
	UserID     uuid.NullUUID   `json:"user_id"`
	CategoryID uuid.NullUUID   `json:"category_id"`
	Percentage decimal.Decimal `json:"percentage"`
	FlatFee    decimal.Decimal `json:"flat_fee"`
	Reason     string          `json:"reason,omitempty"`
	StartsAt   time.Time       `json:"starts_at"`
	EndsAt     *time.Time      `json:"ends_at,omitempty"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ActiveAt reports whether the rate applies at instant at.
func (r *SpecialCommissionRate) ActiveAt(at time.Time) bool {
	if !r.IsActive || at.Before(r.StartsAt) {
		return false
	}
	return r.EndsAt == nil || !at.After(*r.EndsAt)
}

// Commission is the realized fee captured against one Transaction.
type Commission struct {
	ID             uuid.UUID           `json:"id"`
	TransactionID  uuid.UUID           `json:"transaction_id"`
	Amount         decimal.Decimal     `json:"amount"`
	Percentage     decimal.Decimal     `json:"percentage"`
	FlatFee        decimal.Decimal     `json:"flat_fee"`
	Currency       string              `json:"currency"`
	TierID         uuid.NullUUID       `json:"tier_id"`
	SpecialRateID  uuid.NullUUID       `json:"special_rate_id"`
	IsDiscounted   bool                `json:"is_discounted"`
	OriginalAmount decimal.NullDecimal `json:"original_amount"`
	DiscountReason string              `json:"discount_reason,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// CommissionTotals aggregates realized commission over a period.
type CommissionTotals struct {
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type UnitKind string

const (
	UnitProject UnitKind = "project"
	UnitTask    UnitKind = "task"
)

func (k UnitKind) Valid() bool {
	return k == UnitProject || k == UnitTask
}

type PaymentStrategy string

const (
	StrategyLumpSum           PaymentStrategy = "lump_sum"
	StrategyTaskMilestones    PaymentStrategy = "task_milestones"
	StrategyProjectMilestones PaymentStrategy = "project_milestones"
)

type UnitPaymentStatus string

const (
	UnitPaymentPending   UnitPaymentStatus = "pending"
	UnitPaymentPartial   UnitPaymentStatus = "partial"
	UnitPaymentCompleted UnitPaymentStatus = "completed"
)

// UnitStatusCompleted is the lifecycle status that triggers lump-sum payment.
const UnitStatusCompleted = "completed"

// WorkUnit is the ledger's projection of a project or task owned by the
// marketplace catalog: just enough to route payment.
type WorkUnit struct {
	ID              uuid.UUID         `json:"id"`
	Kind            UnitKind          `json:"kind"`
	ProjectID       uuid.NullUUID     `json:"project_id"`
	ClientID        uuid.UUID         `json:"client_id"`
	AssigneeID      uuid.NullUUID     `json:"assignee_id"`
	CategoryID      uuid.NullUUID     `json:"category_id"`
	Title           string            `json:"title"`
	Budget          decimal.Decimal   `json:"budget"`
	Currency        string            `json:"currency"`
	Status          string            `json:"status"`
	PaymentStatus   UnitPaymentStatus `json:"payment_status"`
	PaymentStrategy PaymentStrategy   `json:"payment_strategy"`
	// AutoPaid is set when the lump-sum path paid this unit.
	AutoPaid    bool       `json:"auto_paid"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type MilestoneType string

const (
	MilestonePayment  MilestoneType = "payment"
	MilestoneProgress MilestoneType = "progress"
	MilestoneHybrid   MilestoneType = "hybrid"
)

func (t MilestoneType) Valid() bool {
	return t == MilestonePayment || t == MilestoneProgress || t == MilestoneHybrid
}

// CarriesPayment reports whether milestones of this type move money.
func (t MilestoneType) CarriesPayment() bool {
	return t == MilestonePayment || t == MilestoneHybrid
}

type MilestoneStatus string

const (
	MilestonePending  MilestoneStatus = "pending"
	MilestoneApproved MilestoneStatus = "approved"
	MilestonePaid     MilestoneStatus = "paid"
)

// Milestone belongs to exactly one of a project or a task.
type Milestone struct {
	ID            uuid.UUID       `json:"id"`
	ProjectID     uuid.NullUUID   `json:"project_id"`
	TaskID        uuid.NullUUID   `json:"task_id"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	Type          MilestoneType   `json:"milestone_type"`
	Status        MilestoneStatus `json:"status"`
	DueDate       *time.Time      `json:"due_date,omitempty"`
	IsAutomated   bool            `json:"is_automated"`
	HoldReference string          `json:"hold_reference,omitempty"`
	TransactionID uuid.NullUUID   `json:"transaction_id"`
	ApprovedAt    *time.Time      `json:"approved_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Owner returns the kind and id of the unit owning the milestone.
func (m *Milestone) Owner() (UnitKind, uuid.UUID) {
	if m.TaskID.Valid {
		return UnitTask, m.TaskID.UUID
	}
	return UnitProject, m.ProjectID.UUID
}
