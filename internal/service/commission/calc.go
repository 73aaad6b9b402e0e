package commission

import (
	"github.com/shopspring/decimal"

	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
)

// UserType selects which tier discount applies to the payer of the fee.
type UserType string

const (
	UserFreelancer UserType = "freelancer"
	UserClient     UserType = "client"
)

// Calculate returns amount*percentage/100 + flatFee, less discount percent
// of that result, rounded half up to the currency's minor unit.
func Calculate(amount, percentage, flatFee, discount decimal.Decimal, currency string) decimal.Decimal {
	fee := money.Percent(amount, percentage).Add(flatFee)
	if discount.IsPositive() {
		fee = fee.Sub(money.Percent(fee, discount))
	}
	return money.Round(fee, currency)
}

// TierDiscount is the tier's discount percentage for the given user type.
func TierDiscount(t *repo.CommissionTier, ut UserType) decimal.Decimal {
	switch ut {
	case UserFreelancer:
		return t.FreelancerDiscount
	case UserClient:
		return t.ClientDiscount
	}
	return decimal.Zero
}

// TierCommission applies tier t to amount.
func TierCommission(t *repo.CommissionTier, amount decimal.Decimal, ut UserType, currency string) decimal.Decimal {
	return Calculate(amount, t.Percentage, t.FlatFee, TierDiscount(t, ut), currency)
}

// RateCommission applies a special rate to amount. Special rates carry no
// user-type discount.
func RateCommission(r *repo.SpecialCommissionRate, amount decimal.Decimal, currency string) decimal.Decimal {
	return Calculate(amount, r.Percentage, r.FlatFee, decimal.Zero, currency)
}
