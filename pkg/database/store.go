package database

import (
	"context"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect/sql/schema"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

// NewStore opens the persistence backend selected by ledger.store. The
// Postgres schema is migrated first when database.migrations.auto_migrate
// is set.
func NewStore(ctx context.Context, cfg *config.Config) (repo.Store, error) {
	if cfg.Ledger.Store == config.StoreMemory {
		slog.Warn("using in-memory ledger store; balances are lost on restart")
		return repo.NewMemoryStore(), nil
	}

	dbCfg := FromCentralConfig(cfg.Database)
	db, err := Open(dbCfg)
	if err != nil {
		return nil, err
	}
	store := repo.NewPostgresStore(db)

	if dbCfg.AutoMigrate {
		if err := repo.Migrate(ctx, store.Driver(), migrateOptions(dbCfg)...); err != nil {
			store.Close()
			return nil, err
		}
		slog.Info("ledger schema migrated", "database", dbCfg.DBName)
	}
	return store, nil
}

// Migrate applies the ledger schema to the configured database.
func Migrate(ctx context.Context, cfg *config.Config) error {
	dbCfg := FromCentralConfig(cfg.Database)
	db, err := Open(dbCfg)
	if err != nil {
		return err
	}
	store := repo.NewPostgresStore(db)
	defer store.Close()

	if err := repo.Migrate(ctx, store.Driver(), migrateOptions(dbCfg)...); err != nil {
		return fmt.Errorf("migrate %s: %w", dbCfg.DBName, err)
	}
	return nil
}

func migrateOptions(cfg Config) []schema.MigrateOption {
	if cfg.SafeMode {
		return nil
	}
	return []schema.MigrateOption{schema.WithDropColumn(true), schema.WithDropIndex(true)}
}
