package config

import (
	"time"

	"warden-hq/taskwarden/pkg/ratelimit"
	"warden-hq/taskwarden/pkg/task"
)

// Config is the root configuration structure for taskwarden.
type Config struct {
	// Server contains the HTTP API server configuration.
	Server ServerConfig `yaml:"server"`

	// Storage selects and configures the task persistence backend.
	Storage StorageConfig `yaml:"storage"`

	// RateLimits maps categories to their budget ceilings. Categories
	// missing from the map use built-in defaults.
	RateLimits map[task.Category]ratelimit.Ceilings `yaml:"rate_limits"`

	// Ledger contains absolute budget caps and usage-event storage.
	Ledger LedgerConfig `yaml:"ledger"`

	// Scheduler contains execution loop settings.
	Scheduler SchedulerConfig `yaml:"scheduler"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP API server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle limit.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects the task persistence backend.
type StorageConfig struct {
	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file, required when Backend is
	// "sqlite".
	// Default: "taskwarden.db"
	Path string `yaml:"path"`
}

// LedgerConfig contains the usage ledger's caps and event store settings.
type LedgerConfig struct {
	// DailyTokenCap is the hard token budget per calendar day.
	// Default: 1000000
	DailyTokenCap int `yaml:"daily_token_cap"`

	// MonthlyTokenCap is the hard token budget per rolling 30 days.
	// Default: 20000000
	MonthlyTokenCap int `yaml:"monthly_token_cap"`

	// PerOperationCap bounds a single operation's estimate.
	// Default: 100000
	PerOperationCap int `yaml:"per_operation_cap"`

	// EmergencyBuffer is the daily token slice reserved for emergency
	// categories.
	// Default: 50000
	EmergencyBuffer int `yaml:"emergency_buffer"`

	// EmergencyCategories may consume into the emergency buffer.
	// Default: ["deployment"]
	EmergencyCategories []task.Category `yaml:"emergency_categories"`

	// Store is "memory" or "sqlite" for the usage-event store.
	// Default: "memory"
	Store string `yaml:"store"`

	// Path is the usage-event database file, used when Store is
	// "sqlite".
	// Default: "taskwarden-usage.db"
	Path string `yaml:"path"`

	// PruneSchedule is a cron expression for usage-event retention
	// pruning. Empty disables pruning.
	PruneSchedule string `yaml:"prune_schedule"`

	// RetentionDays is how many days of usage events to keep.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// SchedulerConfig contains execution loop settings.
type SchedulerConfig struct {
	// Service is the usage-attribution service name.
	// Default: "claude-code"
	Service string `yaml:"service"`

	// JobRetention is how long finished jobs stay queryable.
	// Default: 5m
	JobRetention time.Duration `yaml:"job_retention"`
}

// TelemetryConfig contains observability settings.
type TelemetryConfig struct {
	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// MetricsEnabled controls the /metrics endpoint.
	// Default: true
	MetricsEnabled *bool `yaml:"metrics_enabled"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsOn reports whether the /metrics endpoint should be served.
func (t *TelemetryConfig) MetricsOn() bool {
	return t.MetricsEnabled == nil || *t.MetricsEnabled
}
