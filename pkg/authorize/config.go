package authorize

import "github.com/Alijeyrad/freelancehub_ledger/config"

// Config holds configuration for the authorization system
type Config struct {
	// CasbinModelPath is the path to the Casbin model configuration file
	CasbinModelPath string

	// PolicyFile, when set, loads policies from a CSV file instead of Postgres.
	PolicyFile string

	// EnableAudit enables audit logging for all authorization decisions
	EnableAudit bool

	// PolicySyncEnabled propagates policy changes across instances through
	// the Postgres watcher.
	PolicySyncEnabled bool

	HealthCheckEnabled bool
}

func DefaultConfig() Config {
	return Config{
		CasbinModelPath:    "config/casbin_model.conf",
		EnableAudit:        true,
		PolicySyncEnabled:  false,
		HealthCheckEnabled: true,
	}
}

// FromCentralConfig converts central config.AuthorizationConfig to package Config
func FromCentralConfig(c config.AuthorizationConfig) Config {
	out := Config{
		CasbinModelPath:    c.CasbinModelPath,
		PolicyFile:         c.PolicyFile,
		EnableAudit:        c.EnableAudit,
		PolicySyncEnabled:  c.PolicySyncEnabled,
		HealthCheckEnabled: c.HealthCheckEnabled,
	}
	if out.CasbinModelPath == "" {
		out.CasbinModelPath = DefaultConfig().CasbinModelPath
	}
	return out
}
