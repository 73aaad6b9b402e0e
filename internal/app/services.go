package app

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/fx"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/milestone"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/payment"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/wallet"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/events"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/money"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/observability"
	pasetotoken "github.com/Alijeyrad/freelancehub_ledger/pkg/paseto"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideWalletService,
		ProvideCommissionService,
		ProvidePaymentService,
		ProvideMilestoneService,
		ProvidePasetoManager,
	),
)

func ProvideWalletService(store repo.Store, cfg *config.Config, metrics *observability.LedgerMetrics) wallet.Service {
	return wallet.New(store, cfg.Ledger.DefaultCurrency, cfg.Ledger.RecentTransactions, metrics)
}

func ProvideCommissionService(store repo.Store, cfg *config.Config) (commission.Service, error) {
	subs, err := SubscriptionDiscounts(cfg.Ledger.SubscriptionDiscounts)
	if err != nil {
		return nil, err
	}
	return commission.New(store, subs, cfg.Ledger.DefaultCurrency), nil
}

func ProvidePaymentService(
	store repo.Store,
	wallets wallet.Service,
	commissions commission.Service,
	publisher events.Publisher,
	metrics *observability.LedgerMetrics,
	cfg *config.Config,
) (payment.Service, error) {
	platform, err := cfg.Ledger.PlatformUser()
	if err != nil {
		return nil, fmt.Errorf("ledger.platform_user_id: %w", err)
	}
	return payment.New(store, wallets.Ledger(), commissions, publisher, metrics, platform), nil
}

func ProvideMilestoneService(
	store repo.Store,
	payments payment.Service,
	wallets wallet.Service,
	metrics *observability.LedgerMetrics,
) milestone.Service {
	return milestone.New(store, payments, wallets.Ledger(), metrics)
}

func ProvidePasetoManager(cfg *config.Config) (*pasetotoken.Manager, error) {
	return pasetotoken.NewPasetoManager(cfg)
}

// SubscriptionDiscounts parses the configured user -> percentage table.
func SubscriptionDiscounts(table map[string]string) (commission.SubscriptionDiscounts, error) {
	if len(table) == 0 {
		return commission.NoSubscriptions{}, nil
	}
	out := make(commission.StaticDiscounts, len(table))
	for user, pct := range table {
		id, err := uuid.Parse(user)
		if err != nil {
			return nil, fmt.Errorf("ledger.subscription_discounts: user %q: %w", user, err)
		}
		d, err := money.Parse(pct)
		if err != nil || !money.ValidPercentage(d) {
			return nil, fmt.Errorf("ledger.subscription_discounts: user %s: invalid percentage %q", user, pct)
		}
		out[id] = d
	}
	return out, nil
}

// SeedTiers installs the configured commission schedule.
func SeedTiers(ctx context.Context, svc commission.Service, seeds []config.TierSeed) (int, error) {
	inputs := make([]commission.TierInput, 0, len(seeds))
	for _, s := range seeds {
		in, err := commission.TierInputFromSeed(s)
		if err != nil {
			return 0, err
		}
		inputs = append(inputs, in)
	}
	return svc.Seed(ctx, inputs)
}
