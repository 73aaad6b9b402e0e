package system

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/app"
	"github.com/Alijeyrad/freelancehub_ledger/internal/service/commission"
	"github.com/Alijeyrad/freelancehub_ledger/pkg/database"
)

func NewSeedTiersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-tiers",
		Short: "Install the commission tiers listed under ledger.seed_tiers",
		Long: `Install the commission tiers listed under ledger.seed_tiers.

Tiers whose range overlaps an active tier are skipped, so the command is safe
to run on every deploy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Ledger.Store == config.StoreMemory {
				return fmt.Errorf("ledger.store is %q; tiers would not persist", config.StoreMemory)
			}
			if len(cfg.Ledger.SeedTiers) == 0 {
				fmt.Println("No tiers configured.")
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.TimeoutSeconds)*time.Second)
			defer cancel()

			store, err := database.NewStore(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			svc := commission.New(store, commission.NoSubscriptions{}, cfg.Ledger.DefaultCurrency)
			n, err := app.SeedTiers(ctx, svc, cfg.Ledger.SeedTiers)
			if err != nil {
				return fmt.Errorf("failed to seed tiers: %w", err)
			}
			fmt.Printf("Seeded %d of %d commission tiers.\n", n, len(cfg.Ledger.SeedTiers))
			return nil
		},
	}

	return cmd
}
