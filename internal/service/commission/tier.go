package commission

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
)

type TierInput struct {
	Name               string          `json:"name"`
	MinAmount          decimal.Decimal `json:"min_amount"`
	MaxAmount          decimal.Decimal `json:"max_amount"`
	Percentage         decimal.Decimal `json:"percentage"`
	FlatFee            decimal.Decimal `json:"flat_fee"`
	FreelancerDiscount decimal.Decimal `json:"freelancer_discount"`
	ClientDiscount     decimal.Decimal `json:"client_discount"`
}

// NewTier builds an active tier from in, or returns a *ValidationError.
// Overlap with stored tiers is checked by Service.CreateTier.
func NewTier(in TierInput, now time.Time) (*repo.CommissionTier, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return nil, invalid("name", ErrInvalidTier)
	case in.MinAmount.IsNegative():
		return nil, invalid("min_amount", ErrInvalidTier)
	case !in.MaxAmount.GreaterThan(in.MinAmount):
		return nil, invalid("max_amount", ErrInvalidTier)
	case !money.ValidPercentage(in.Percentage):
		return nil, invalid("percentage", ErrInvalidPercentage)
	case in.FlatFee.IsNegative():
		return nil, invalid("flat_fee", ErrInvalidTier)
	case !money.ValidPercentage(in.FreelancerDiscount):
		return nil, invalid("freelancer_discount", ErrInvalidPercentage)
	case !money.ValidPercentage(in.ClientDiscount):
		return nil, invalid("client_discount", ErrInvalidPercentage)
	}

	return &repo.CommissionTier{
		ID:                 repo.NewID(),
		Name:               name,
		MinAmount:          in.MinAmount,
		MaxAmount:          in.MaxAmount,
		Percentage:         in.Percentage,
		FlatFee:            in.FlatFee,
		FreelancerDiscount: in.FreelancerDiscount,
		ClientDiscount:     in.ClientDiscount,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// TierInputFromSeed parses a configured tier.
func TierInputFromSeed(s config.TierSeed) (TierInput, error) {
	in := TierInput{Name: s.Name}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"min_amount", s.MinAmount, &in.MinAmount},
		{"max_amount", s.MaxAmount, &in.MaxAmount},
		{"percentage", s.Percentage, &in.Percentage},
		{"flat_fee", s.FlatFee, &in.FlatFee},
		{"freelancer_discount", s.FreelancerDiscount, &in.FreelancerDiscount},
		{"client_discount", s.ClientDiscount, &in.ClientDiscount},
	}
	for _, f := range fields {
		d, err := money.Parse(f.raw)
		if err != nil {
			return TierInput{}, invalid(f.name, err)
		}
		*f.dst = d
	}
	return in, nil
}

type SpecialRateInput struct {
	UserID     uuid.NullUUID   `json:"user_id"`
	CategoryID uuid.NullUUID   `json:"category_id"`
	Percentage decimal.Decimal `json:"percentage"`
	FlatFee    decimal.Decimal `json:"flat_fee"`
	Reason     string          `json:"reason"`
	StartsAt   *time.Time      `json:"starts_at"`
	EndsAt     *time.Time      `json:"ends_at"`
}

// NewSpecialRate builds an active override. A missing start means now.
func NewSpecialRate(in SpecialRateInput, now time.Time) (*repo.SpecialCommissionRate, error) {
	if !in.UserID.Valid && !in.CategoryID.Valid {
		return nil, invalid("user_id", ErrSpecialRateTarget)
	}
	if !money.ValidPercentage(in.Percentage) {
		return nil, invalid("percentage", ErrInvalidPercentage)
	}
	if in.FlatFee.IsNegative() {
		return nil, invalid("flat_fee", ErrInvalidTier)
	}

	starts := now
	if in.StartsAt != nil {
		starts = *in.StartsAt
	}
	if in.EndsAt != nil && !in.EndsAt.After(starts) {
		return nil, invalid("ends_at", ErrInvalidTier)
	}

	return &repo.SpecialCommissionRate{
		ID:         repo.NewID(),
		UserID:     in.UserID,
		CategoryID: in.CategoryID,
		Percentage: in.Percentage,
		FlatFee:    in.FlatFee,
		Reason:     strings.TrimSpace(in.Reason),
		StartsAt:   starts,
		EndsAt:     in.EndsAt,
		IsActive:   true,
		CreatedAt:  now,
	}, nil
}
