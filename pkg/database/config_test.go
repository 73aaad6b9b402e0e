package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/freelancehub_ledger/config"
	"github.com/Alijeyrad/freelancehub_ledger/internal/repo"
)

func TestDSN(t *testing.T) {
	cfg := FromCentralConfig(config.DatabaseConfig{
		Host: "db", User: "ledger", Password: "secret", DBName: "ledger",
	})
	assert.Equal(t,
		"host=db port=5432 user=ledger password=secret dbname=ledger sslmode=disable application_name=freelancehub-ledger",
		cfg.DSN())
	assert.Equal(t, 25, cfg.MaxOpenConns)
}

func TestMigrateOptions(t *testing.T) {
	assert.Empty(t, migrateOptions(Config{SafeMode: true}))
	assert.Len(t, migrateOptions(Config{SafeMode: false}), 2)
}

func TestNewStore_Memory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Ledger.Store = "memory"

	store, err := NewStore(context.Background(), cfg)
	require.NoError(t, err)
	_, ok := store.(*repo.MemoryStore)
	assert.True(t, ok)
	assert.NoError(t, store.Close())
}
