package config

import (
	"time"

	redisclient "github.com/vietddude/uplink/internal/infra/redis"
	"github.com/vietddude/uplink/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Providers []ProviderConfig   `yaml:"providers"`
	Budget    BudgetConfig       `yaml:"budget"`
	Selection SelectionConfig    `yaml:"selection"`
	Retry     RetryConfig        `yaml:"retry"`
	Journal   JournalConfig      `yaml:"journal"`
	Redis     redisclient.Config `yaml:"redis"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProviderConfig holds settings for one upload destination.
type ProviderConfig struct {
	Name      string        `yaml:"name"`
	Platform  string        `yaml:"platform"`  // aws, azure, gcp, custom
	Transport string        `yaml:"transport"` // s3, rest, gateway; empty = platform default
	Endpoint  string        `yaml:"endpoint"`
	Region    string        `yaml:"region"`
	Bucket    string        `yaml:"bucket"`
	AccessKey string        `yaml:"access_key"`
	SecretKey string        `yaml:"secret_key"`
	Token     string        `yaml:"token"`
	Encrypted bool          `yaml:"encrypted"`
	SyncMode  string        `yaml:"sync_mode"`   // realtime, batch, offline_first, backup_only
	Priority  int           `yaml:"priority"`    // failover rank, lower tried first
	RatePerMB float64       `yaml:"rate_per_mb"` // 0 = platform default rate
	Timeout   time.Duration `yaml:"timeout"`
}

// BudgetConfig holds spend accounting settings.
type BudgetConfig struct {
	MonthlyCeiling float64 `yaml:"monthly_ceiling"` // shared across providers, 0 = unlimited
}

// SelectionConfig holds provider selection settings.
type SelectionConfig struct {
	Strategy  string `yaml:"strategy"`   // round_robin, least_loaded, fastest_response, cost_optimized
	CostFirst bool   `yaml:"cost_first"` // try the cheapest healthy provider before the strategy
}

// RetryConfig holds per-provider retry settings.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	BaseDelay    time.Duration `yaml:"base_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
	ProbeTimeout time.Duration `yaml:"probe_timeout"`
}

// JournalConfig holds upload journal settings.
type JournalConfig struct {
	RetentionPeriod time.Duration `yaml:"retention_period"` // 0 = keep forever
}
