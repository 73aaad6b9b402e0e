package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// SubscriptionDiscounts reports the transaction-fee discount percentage a
// user's subscription plan grants. Billing itself lives elsewhere.
type SubscriptionDiscounts interface {
	FeeDiscount(ctx context.Context, userID uuid.UUID) (decimal.Decimal, error)
}

// NoSubscriptions grants no discount to anyone.
type NoSubscriptions struct{}

func (NoSubscriptions) FeeDiscount(context.Context, uuid.UUID) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

// StaticDiscounts is a fixed user -> percentage table.
type StaticDiscounts map[uuid.UUID]decimal.Decimal

func (s StaticDiscounts) FeeDiscount(_ context.Context, userID uuid.UUID) (decimal.Decimal, error) {
	return s[userID], nil
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	CreateTier(ctx context.Context, in TierInput) (*repo.CommissionTier, error)
	DeactivateTier(ctx context.Context, id uuid.UUID) (*repo.CommissionTier, error)
	ListTiers(ctx context.Context, activeOnly bool) ([]*repo.CommissionTier, error)
	ApplicableTier(ctx context.Context, amount decimal.Decimal) (*repo.CommissionTier, error)
	// Seed installs tiers that do not overlap the active schedule and
	// returns how many were created.
	Seed(ctx context.Context, tiers []TierInput) (int, error)

	CreateSpecialRate(ctx context.Context, in SpecialRateInput) (*repo.SpecialCommissionRate, error)

	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
	// Resolve is Quote inside a caller-owned atomic scope.
	Resolve(ctx context.Context, q repo.Queries, req QuoteRequest) (*Quote, error)

	ApplyDiscount(ctx context.Context, commissionID uuid.UUID, percentage decimal.Decimal, reason string) (*repo.Commission, error)
	Summary(ctx context.Context, from, to time.Time) (repo.CommissionTotals, error)
}

// QuoteRequest describes the fee being priced. UserID is the party the fee
// is charged to; special rates are looked up for it and for CategoryID.
type QuoteRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	UserID     uuid.UUID       `json:"user_id"`
	CategoryID uuid.NullUUID   `json:"category_id"`
	UserType   UserType        `json:"user_type"`
	At         time.Time       `json:"-"`
}

// Quote is a resolved commission, not yet attached to a transaction.
type Quote struct {
	Amount         decimal.Decimal     `json:"amount"`
	Percentage     decimal.Decimal     `json:"percentage"`
	FlatFee        decimal.Decimal     `json:"flat_fee"`
	Currency       string              `json:"currency"`
	TierID         uuid.NullUUID       `json:"tier_id"`
	SpecialRateID  uuid.NullUUID       `json:"special_rate_id"`
	IsDiscounted   bool                `json:"is_discounted"`
	OriginalAmount decimal.NullDecimal `json:"original_amount"`
	DiscountReason string              `json:"discount_reason,omitempty"`
}

// Source names where the rate came from.
func (qt *Quote) Source() string {
	if qt.SpecialRateID.Valid {
		return "special_rate"
	}
	return "tier"
}

// Record turns the quote into the Commission row of transaction txID.
func (qt *Quote) Record(txID uuid.UUID, now time.Time) *repo.Commission {
	return &repo.Commission{
		ID:             repo.NewID(),
		TransactionID:  txID,
		Amount:         qt.Amount,
		Percentage:     qt.Percentage,
		FlatFee:        qt.FlatFee,
		Currency:       qt.Currency,
		TierID:         qt.TierID,
		SpecialRateID:  qt.SpecialRateID,
		IsDiscounted:   qt.IsDiscounted,
		OriginalAmount: qt.OriginalAmount,
		DiscountReason: qt.DiscountReason,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type commissionService struct {
	store    repo.Store
	subs     SubscriptionDiscounts
	currency string
	now      func() time.Time
}

func New(store repo.Store, subs SubscriptionDiscounts, defaultCurrency string) Service {
	if subs == nil {
		subs = NoSubscriptions{}
	}
	return &commissionService{
		store:    store,
		subs:     subs,
		currency: strings.ToUpper(defaultCurrency),
		now:      time.Now,
	}
}

// ---------------------------------------------------------------------------
// Tiers
// ---------------------------------------------------------------------------

func (s *commissionService) CreateTier(ctx context.Context, in TierInput) (*repo.CommissionTier, error) {
	tier, err := NewTier(in, s.now())
	if err != nil {
		return nil, err
	}

	err = s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		return insertTier(ctx, q, tier)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("commission tier created",
		"tier_id", tier.ID,
		"name", tier.Name,
		"min_amount", tier.MinAmount.String(),
		"max_amount", tier.MaxAmount.String(),
		"percentage", tier.Percentage.String(),
	)
	return tier, nil
}

func insertTier(ctx context.Context, q repo.Queries, tier *repo.CommissionTier) error {
	if err := q.LockCommissionTiers(ctx); err != nil {
		return fmt.Errorf("lock tiers: %w", err)
	}
	overlapping, err := q.FindOverlappingTiers(ctx, tier.MinAmount, tier.MaxAmount)
	if err != nil {
		return fmt.Errorf("find overlapping tiers: %w", err)
	}
	if len(overlapping) > 0 {
		return fmt.Errorf("%w: %s", ErrOverlappingTierRange, overlapping[0].Name)
	}
	if err := q.InsertCommissionTier(ctx, tier); err != nil {
		return fmt.Errorf("insert tier: %w", err)
	}
	return nil
}

func (s *commissionService) DeactivateTier(ctx context.Context, id uuid.UUID) (*repo.CommissionTier, error) {
	var out *repo.CommissionTier
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		if err := q.LockCommissionTiers(ctx); err != nil {
			return fmt.Errorf("lock tiers: %w", err)
		}
		tier, err := q.GetCommissionTier(ctx, id)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrTierNotFound
			}
			return err
		}
		if tier.IsActive {
			tier.IsActive = false
			tier.UpdatedAt = s.now()
			if err := q.UpdateCommissionTier(ctx, tier); err != nil {
				return fmt.Errorf("update tier: %w", err)
			}
		}
		out = tier
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("commission tier deactivated", "tier_id", id)
	return out, nil
}

func (s *commissionService) ListTiers(ctx context.Context, activeOnly bool) ([]*repo.CommissionTier, error) {
	return s.store.ListCommissionTiers(ctx, activeOnly)
}

func (s *commissionService) ApplicableTier(ctx context.Context, amount decimal.Decimal) (*repo.CommissionTier, error) {
	return applicableTier(ctx, s.store, amount)
}

// applicableTier never falls back to a zero fee: no match is an operator
// problem and is logged as such.
func applicableTier(ctx context.Context, q repo.Queries, amount decimal.Decimal) (*repo.CommissionTier, error) {
	tiers, err := q.FindActiveTiersForAmount(ctx, amount)
	if err != nil {
		return nil, fmt.Errorf("find tiers: %w", err)
	}
	switch len(tiers) {
	case 0:
		slog.Error("no commission tier covers amount", "amount", amount.String())
		return nil, fmt.Errorf("%w for %s", ErrNoApplicableTier, amount.String())
	case 1:
		return tiers[0], nil
	default:
		slog.Error("overlapping active commission tiers", "amount", amount.String(), "matches", len(tiers))
		return nil, ErrAmbiguousTier
	}
}

func (s *commissionService) Seed(ctx context.Context, inputs []TierInput) (int, error) {
	tiers := make([]*repo.CommissionTier, 0, len(inputs))
	for _, in := range inputs {
		t, err := NewTier(in, s.now())
		if err != nil {
			return 0, fmt.Errorf("tier %q: %w", in.Name, err)
		}
		tiers = append(tiers, t)
	}

	created := 0
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		for _, t := range tiers {
			err := insertTier(ctx, q, t)
			if errors.Is(err, ErrOverlappingTierRange) {
				slog.Info("seed tier skipped", "name", t.Name, "reason", err.Error())
				continue
			}
			if err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// ---------------------------------------------------------------------------
// Special rates
// ---------------------------------------------------------------------------

func (s *commissionService) CreateSpecialRate(ctx context.Context, in SpecialRateInput) (*repo.SpecialCommissionRate, error) {
	rate, err := NewSpecialRate(in, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertSpecialRate(ctx, rate); err != nil {
		return nil, fmt.Errorf("insert special rate: %w", err)
	}
	slog.Info("special commission rate created",
		"rate_id", rate.ID,
		"user_id", rate.UserID.UUID,
		"category_id", rate.CategoryID.UUID,
		"percentage", rate.Percentage.String(),
	)
	return rate, nil
}

// pickRate prefers a user rate over a category rate; rates arrive newest
// first.
func pickRate(rates []*repo.SpecialCommissionRate, userID uuid.UUID) *repo.SpecialCommissionRate {
	var category *repo.SpecialCommissionRate
	for _, r := range rates {
		if r.UserID.Valid && r.UserID.UUID == userID {
			return r
		}
		if category == nil && r.CategoryID.Valid && !r.UserID.Valid {
			category = r
		}
	}
	return category
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

func (s *commissionService) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	return s.Resolve(ctx, s.store, req)
}

func (s *commissionService) Resolve(ctx context.Context, q repo.Queries, req QuoteRequest) (*Quote, error) {
	if !money.Positive(req.Amount) {
		return nil, ErrInvalidAmount
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.currency
	}
	at := req.At
	if at.IsZero() {
		at = s.now()
	}

	quote := &Quote{Currency: currency}

	user := uuid.NullUUID{UUID: req.UserID, Valid: req.UserID != uuid.Nil}
	rates, err := q.ListSpecialRates(ctx, user, req.CategoryID, at)
	if err != nil {
		return nil, fmt.Errorf("list special rates: %w", err)
	}

	if rate := pickRate(rates, req.UserID); rate != nil {
		quote.Amount = RateCommission(rate, req.Amount, currency)
		quote.Percentage = rate.Percentage
		quote.FlatFee = rate.FlatFee
		quote.SpecialRateID = uuid.NullUUID{UUID: rate.ID, Valid: true}
	} else {
		tier, err := applicableTier(ctx, q, req.Amount)
		if err != nil {
			return nil, err
		}
		quote.Amount = TierCommission(tier, req.Amount, req.UserType, currency)
		quote.Percentage = tier.Percentage
		quote.FlatFee = tier.FlatFee
		quote.TierID = uuid.NullUUID{UUID: tier.ID, Valid: true}
	}

	if req.UserID != uuid.Nil {
		discount, err := s.subs.FeeDiscount(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("subscription discount: %w", err)
		}
		if discount.IsPositive() && money.ValidPercentage(discount) {
			quote.OriginalAmount = decimal.NewNullDecimal(quote.Amount)
			quote.Amount = money.Round(quote.Amount.Sub(money.Percent(quote.Amount, discount)), currency)
			quote.IsDiscounted = true
			quote.DiscountReason = "subscription"
		}
	}

	if quote.Amount.GreaterThan(req.Amount) {
		return nil, ErrCommissionExceedsAmount
	}
	return quote, nil
}

// ---------------------------------------------------------------------------
// Records
// ---------------------------------------------------------------------------

// ApplyDiscount is the one mutation a Commission row admits.
func (s *commissionService) ApplyDiscount(ctx context.Context, commissionID uuid.UUID, percentage decimal.Decimal, reason string) (*repo.Commission, error) {
	if !money.ValidPercentage(percentage) {
		return nil, invalid("percentage", ErrInvalidPercentage)
	}

	var out *repo.Commission
	err := s.store.InTx(ctx, func(ctx context.Context, q repo.Queries) error {
		c, err := q.LockCommission(ctx, commissionID)
		if err != nil {
			if repo.IsNotFound(err) {
				return ErrCommissionNotFound
			}
			return err
		}
		if c.IsDiscounted {
			return ErrAlreadyDiscounted
		}

		c.OriginalAmount = decimal.NewNullDecimal(c.Amount)
		c.Amount = money.Round(c.Amount.Sub(money.Percent(c.Amount, percentage)), c.Currency)
		c.IsDiscounted = true
		c.DiscountReason = strings.TrimSpace(reason)
		c.UpdatedAt = s.now()
		if err := q.UpdateCommission(ctx, c); err != nil {
			return fmt.Errorf("update commission: %w", err)
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("commission discounted",
		"commission_id", out.ID,
		"transaction_id", out.TransactionID,
		"original_amount", out.OriginalAmount.Decimal.String(),
		"amount", out.Amount.String(),
	)
	return out, nil
}

func (s *commissionService) Summary(ctx context.Context, from, to time.Time) (repo.CommissionTotals, error) {
	return s.store.SumCommissions(ctx, from, to)
}
