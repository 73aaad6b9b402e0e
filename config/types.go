package config

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Config struct {
	Database       DatabaseConfig       `mapstructure:"database"`
	CasbinDatabase DatabaseConfig       `mapstructure:"casbin_database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Server         ServerConfig         `mapstructure:"server"`
	Authentication AuthenticationConfig `mapstructure:"authentication"`
	Authorization  AuthorizationConfig  `mapstructure:"authorization"`
	Observability  ObservabilityConfig  `mapstructure:"observability"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Nats           NatsConfig           `mapstructure:"nats"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
}

type NatsConfig struct {
	URL     string `mapstructure:"url" yaml:"url"`
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// LedgerConfig holds settlement-core settings.
type LedgerConfig struct {
	// Store selects the persistence backend: "postgres" or "memory".
	Store                 string       `mapstructure:"store"`
	DefaultCurrency       string       `mapstructure:"default_currency"`
	PlatformUserID        string       `mapstructure:"platform_user_id"`
	RecentTransactions    int          `mapstructure:"recent_transactions"`
	IdempotencyTTLSeconds int          `mapstructure:"idempotency_ttl_seconds"`
	Events                EventsConfig `mapstructure:"events"`
	SeedTiers             []TierSeed   `mapstructure:"seed_tiers"`

	// SubscriptionDiscounts maps a user id to the percentage taken off
	// their commission by their subscription plan.
	SubscriptionDiscounts map[string]string `mapstructure:"subscription_discounts"`
}

type EventsConfig struct {
	SubjectPrefix     string `mapstructure:"subject_prefix"`
	UnitStatusSubject string `mapstructure:"unit_status_subject"`
}

// TierSeed is a commission tier installed by `system seed-tiers`.
type TierSeed struct {
	Name               string `mapstructure:"name"`
	MinAmount          string `mapstructure:"min_amount"`
	MaxAmount          string `mapstructure:"max_amount"`
	Percentage         string `mapstructure:"percentage"`
	FlatFee            string `mapstructure:"flat_fee"`
	FreelancerDiscount string `mapstructure:"freelancer_discount"`
	ClientDiscount     string `mapstructure:"client_discount"`
}

type DatabaseConfig struct {
	Host       string                  `mapstructure:"host"`
	Port       int                     `mapstructure:"port"`
	User       string                  `mapstructure:"user"`
	Password   string                  `mapstructure:"password"`
	DBName     string                  `mapstructure:"dbname"`
	SSLMode    string                  `mapstructure:"sslmode"`
	Pool       DatabasePoolConfig      `mapstructure:"pool"`
	Migrations DatabaseMigrationConfig `mapstructure:"migrations"`
}

type DatabasePoolConfig struct {
	MaxOpenConns       int `mapstructure:"max_open_conns"`
	MaxIdleConns       int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMin int `mapstructure:"conn_max_lifetime_minutes"`
}

type DatabaseMigrationConfig struct {
	AutoMigrate bool `mapstructure:"auto_migrate"`
	SafeMode    bool `mapstructure:"safe_mode"`
}

type RedisConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Addr                string `mapstructure:"addr"`
	DB                  int    `mapstructure:"db"`
	Username            string `mapstructure:"username"`
	Password            string `mapstructure:"password"`
	PoolSize            int    `mapstructure:"pool_size"`
	MinIdleConns        int    `mapstructure:"min_idle_conns"`
	DialTimeoutSeconds  int    `mapstructure:"dial_timeout_seconds"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
	Environment    string          `mapstructure:"environment"`
	Domain         string          `mapstructure:"domain"`
	Databases      []string        `mapstructure:"databases"`
	CORS           CORSConfig      `mapstructure:"cors"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAgeSeconds    int      `mapstructure:"max_age_seconds"`
}

type AuthenticationConfig struct {
	Paseto            PasetoConfig `mapstructure:"paseto"`
	SessionTTLMinutes int          `mapstructure:"session_ttl_minutes"`
}

type PasetoConfig struct {
	Mode             string `mapstructure:"mode"`
	LocalKeyHex      string `mapstructure:"local_key_hex"`
	SecretKeyHex     string `mapstructure:"secret_key_hex"`
	PublicKeyHex     string `mapstructure:"public_key_hex"`
	Issuer           string `mapstructure:"issuer"`
	Audience         string `mapstructure:"audience"`
	AccessTTLMinutes int    `mapstructure:"access_ttl_minutes"`
}

type AuthorizationConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CasbinModelPath    string `mapstructure:"casbin_model_path"`
	EnableAudit        bool   `mapstructure:"enable_audit"`
	PolicySyncEnabled  bool   `mapstructure:"policy_sync_enabled"`
	HealthCheckEnabled bool   `mapstructure:"health_check_enabled"`

	// PolicyFile switches casbin to a CSV file adapter instead of the
	// casbin database. Used with the memory store.
	PolicyFile string `mapstructure:"policy_file"`
}

type ObservabilityConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ServiceName    string        `mapstructure:"service_name"`
	ServiceVersion string        `mapstructure:"service_version"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	Metrics        MetricsConfig `mapstructure:"metrics"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string       `mapstructure:"level"`  // debug, info, warn, error
	Format string       `mapstructure:"format"` // text, json
	Output OutputConfig `mapstructure:"output"`
}

type OutputConfig struct {
	Stdout bool          `mapstructure:"stdout"`
	File   FileLogConfig `mapstructure:"file"`
	Loki   LokiConfig    `mapstructure:"loki"`
}

type FileLogConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Path       string `mapstructure:"path"`        // e.g. "logs/ledger.log"
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after N MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

type LokiConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"` // e.g. "http://localhost:3100"
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// PlatformUser parses the platform wallet owner.
func (c LedgerConfig) PlatformUser() (uuid.UUID, error) {
	return uuid.Parse(c.PlatformUserID)
}

func (c *Config) Validate() error {
	switch c.Ledger.Store {
	case "":
		c.Ledger.Store = StorePostgres
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("ledger.store: unknown backend %q", c.Ledger.Store)
	}

	if c.Ledger.DefaultCurrency == "" {
		c.Ledger.DefaultCurrency = "INR"
	}
	c.Ledger.DefaultCurrency = strings.ToUpper(c.Ledger.DefaultCurrency)
	if len(c.Ledger.DefaultCurrency) != 3 {
		return fmt.Errorf("ledger.default_currency: want a 3-letter code, got %q", c.Ledger.DefaultCurrency)
	}

	if _, err := c.Ledger.PlatformUser(); err != nil {
		return fmt.Errorf("ledger.platform_user_id: %w", err)
	}

	if c.Ledger.RecentTransactions <= 0 {
		c.Ledger.RecentTransactions = 5
	}
	if c.Ledger.IdempotencyTTLSeconds <= 0 {
		c.Ledger.IdempotencyTTLSeconds = 86400
	}
	if c.Ledger.Events.SubjectPrefix == "" {
		c.Ledger.Events.SubjectPrefix = "ledger"
	}
	if c.Ledger.Events.UnitStatusSubject == "" {
		c.Ledger.Events.UnitStatusSubject = "marketplace.unit.status"
	}

	return nil
}
