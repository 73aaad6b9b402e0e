package commission

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func tierInput(name, min, max, pct string) TierInput {
	return TierInput{Name: name, MinAmount: dec(min), MaxAmount: dec(max), Percentage: dec(pct)}
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		pct      string
		flat     string
		discount string
		currency string
		want     string
	}{
		{"plain percentage", "100.00", "2.5", "0", "0", "INR", "2.50"},
		{"freelancer discount", "100.00", "2.5", "0", "10", "INR", "2.25"},
		{"flat fee added before discount", "200", "5", "1", "50", "INR", "5.50"},
		{"half up", "0.10", "5", "0", "0", "INR", "0.01"},
		{"zero minor units", "1001", "2.5", "0", "0", "JPY", "25"},
		{"three minor units", "10.001", "10", "0", "0", "KWD", "1.000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(dec(tt.amount), dec(tt.pct), dec(tt.flat), dec(tt.discount), tt.currency)
			assert.True(t, got.Equal(dec(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestNewTier_Validation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		in    TierInput
		field string
	}{
		{"empty name", tierInput("", "0", "10", "5"), "name"},
		{"negative min", tierInput("t", "-1", "10", "5"), "min_amount"},
		{"max equal to min", tierInput("t", "10", "10", "5"), "max_amount"},
		{"percentage above 100", tierInput("t", "0", "10", "100.01"), "percentage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTier(tt.in, now)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}

	tier, err := NewTier(tierInput("ok", "0", "10", "5"), now)
	require.NoError(t, err)
	assert.True(t, tier.IsActive)
}

func TestCreateTier_RejectsOverlap(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")

	_, err := svc.CreateTier(ctx, tierInput("small", "0", "500", "10"))
	require.NoError(t, err)

	_, err = svc.CreateTier(ctx, tierInput("edge", "500", "1000", "5"))
	assert.ErrorIs(t, err, ErrOverlappingTierRange)

	_, err = svc.CreateTier(ctx, tierInput("mid", "500.01", "1000", "5"))
	require.NoError(t, err)

	tiers, err := svc.ListTiers(ctx, true)
	require.NoError(t, err)
	assert.Len(t, tiers, 2)
}

func TestApplicableTier_ExactlyOneOrFailure(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")

	small, err := svc.CreateTier(ctx, tierInput("small", "0", "500", "10"))
	require.NoError(t, err)
	mid, err := svc.CreateTier(ctx, tierInput("mid", "500.01", "10000", "5"))
	require.NoError(t, err)

	tests := []struct {
		amount string
		want   uuid.UUID
		err    error
	}{
		{"0.01", small.ID, nil},
		{"500", small.ID, nil},
		{"500.01", mid.ID, nil},
		{"10000", mid.ID, nil},
		{"10000.01", uuid.Nil, ErrNoApplicableTier},
	}

	for _, tt := range tests {
		t.Run(tt.amount, func(t *testing.T) {
			tier, err := svc.ApplicableTier(ctx, dec(tt.amount))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, tier.ID)
		})
	}

	_, err = svc.DeactivateTier(ctx, small.ID)
	require.NoError(t, err)
	_, err = svc.ApplicableTier(ctx, dec("100"))
	assert.ErrorIs(t, err, ErrNoApplicableTier)
}

func TestQuote_Precedence(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")
	freelancer, category := repo.NewID(), repo.NewID()

	tier, err := svc.CreateTier(ctx, TierInput{
		Name: "all", MinAmount: dec("0"), MaxAmount: dec("100000"),
		Percentage: dec("2.5"), FreelancerDiscount: dec("10"),
	})
	require.NoError(t, err)

	q, err := svc.Quote(ctx, QuoteRequest{Amount: dec("100"), UserID: freelancer, UserType: UserFreelancer})
	require.NoError(t, err)
	assert.True(t, q.Amount.Equal(dec("2.25")))
	assert.Equal(t, tier.ID, q.TierID.UUID)
	assert.Equal(t, "tier", q.Source())

	past := time.Now().Add(-time.Hour)
	_, err = svc.CreateSpecialRate(ctx, SpecialRateInput{
		CategoryID: uuid.NullUUID{UUID: category, Valid: true},
		Percentage: dec("1"), StartsAt: &past,
	})
	require.NoError(t, err)

	q, err = svc.Quote(ctx, QuoteRequest{
		Amount: dec("100"), UserID: freelancer, UserType: UserFreelancer,
		CategoryID: uuid.NullUUID{UUID: category, Valid: true},
	})
	require.NoError(t, err)
	assert.True(t, q.Amount.Equal(dec("1.00")))
	assert.Equal(t, "special_rate", q.Source())

	userRate, err := svc.CreateSpecialRate(ctx, SpecialRateInput{
		UserID:     uuid.NullUUID{UUID: freelancer, Valid: true},
		Percentage: dec("0.5"), FlatFee: dec("0.25"), StartsAt: &past,
	})
	require.NoError(t, err)

	q, err = svc.Quote(ctx, QuoteRequest{
		Amount: dec("100"), UserID: freelancer,
		CategoryID: uuid.NullUUID{UUID: category, Valid: true},
	})
	require.NoError(t, err)
	assert.True(t, q.Amount.Equal(dec("0.75")))
	assert.Equal(t, userRate.ID, q.SpecialRateID.UUID)
	assert.False(t, q.TierID.Valid)
}

func TestQuote_ExpiredRateFallsBackToTier(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")
	user := repo.NewID()

	_, err := svc.CreateTier(ctx, tierInput("all", "0", "1000", "10"))
	require.NoError(t, err)

	start := time.Now().Add(-48 * time.Hour)
	end := time.Now().Add(-24 * time.Hour)
	_, err = svc.CreateSpecialRate(ctx, SpecialRateInput{
		UserID:     uuid.NullUUID{UUID: user, Valid: true},
		Percentage: dec("0"), StartsAt: &start, EndsAt: &end,
	})
	require.NoError(t, err)

	q, err := svc.Quote(ctx, QuoteRequest{Amount: dec("50"), UserID: user})
	require.NoError(t, err)
	assert.True(t, q.Amount.Equal(dec("5")))
}

func TestQuote_SubscriptionDiscountStacks(t *testing.T) {
	ctx := context.Background()
	user := repo.NewID()
	svc := New(repo.NewMemoryStore(), StaticDiscounts{user: dec("20")}, "INR")

	_, err := svc.CreateTier(ctx, TierInput{
		Name: "all", MinAmount: dec("0"), MaxAmount: dec("1000"),
		Percentage: dec("10"), ClientDiscount: dec("50"),
	})
	require.NoError(t, err)

	q, err := svc.Quote(ctx, QuoteRequest{Amount: dec("100"), UserID: user, UserType: UserClient})
	require.NoError(t, err)
	assert.True(t, q.OriginalAmount.Decimal.Equal(dec("5")))
	assert.True(t, q.Amount.Equal(dec("4")))
	assert.True(t, q.IsDiscounted)
}

func TestQuote_Failures(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")

	_, err := svc.Quote(ctx, QuoteRequest{Amount: dec("0")})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Quote(ctx, QuoteRequest{Amount: dec("10")})
	assert.ErrorIs(t, err, ErrNoApplicableTier)

	_, err = svc.CreateTier(ctx, TierInput{Name: "flat", MinAmount: dec("0"), MaxAmount: dec("10"), FlatFee: dec("5")})
	require.NoError(t, err)
	_, err = svc.Quote(ctx, QuoteRequest{Amount: dec("2")})
	assert.ErrorIs(t, err, ErrCommissionExceedsAmount)
}

func TestCreateSpecialRate_NeedsTarget(t *testing.T) {
	svc := New(repo.NewMemoryStore(), nil, "INR")
	_, err := svc.CreateSpecialRate(context.Background(), SpecialRateInput{Percentage: dec("1")})
	assert.ErrorIs(t, err, ErrSpecialRateTarget)
}

func TestApplyDiscount_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemoryStore()
	svc := New(store, nil, "INR")

	q := &Quote{Amount: dec("40"), Percentage: dec("4"), Currency: "INR"}
	c := q.Record(repo.NewID(), time.Now())
	require.NoError(t, store.InsertCommission(ctx, c))

	got, err := svc.ApplyDiscount(ctx, c.ID, dec("25"), "loyalty")
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(dec("30")))
	assert.True(t, got.OriginalAmount.Decimal.Equal(dec("40")))
	assert.Equal(t, "loyalty", got.DiscountReason)

	_, err = svc.ApplyDiscount(ctx, c.ID, dec("25"), "again")
	assert.ErrorIs(t, err, ErrAlreadyDiscounted)

	_, err = svc.ApplyDiscount(ctx, repo.NewID(), dec("5"), "")
	assert.ErrorIs(t, err, ErrCommissionNotFound)
}

func TestSeed_SkipsOverlapping(t *testing.T) {
	ctx := context.Background()
	svc := New(repo.NewMemoryStore(), nil, "INR")

	seeds := []config.TierSeed{
		{Name: "small", MinAmount: "0", MaxAmount: "500", Percentage: "10"},
		{Name: "mid", MinAmount: "500.01", MaxAmount: "10000", Percentage: "5"},
	}
	var inputs []TierInput
	for _, s := range seeds {
		in, err := TierInputFromSeed(s)
		require.NoError(t, err)
		inputs = append(inputs, in)
	}

	n, err := svc.Seed(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = svc.Seed(ctx, inputs)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = TierInputFromSeed(config.TierSeed{Name: "bad", MinAmount: "x"})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}
