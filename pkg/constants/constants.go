package constants

const (
	ConfigName   = "config"
	ConfigFormat = "yaml"

	// EnvPrefix namespaces environment overrides, e.g. LEDGER_DATABASE_HOST.
	EnvPrefix = "LEDGER"

	AppName = "freelancehub-ledger"
)
