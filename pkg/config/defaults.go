package config

import "time"

// ApplyDefaults fills every zero-valued field with its documented default.
// Explicitly configured values are never changed.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = "127.0.0.1:8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = 120 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30 * time.Second
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "taskwarden.db"
	}

	if cfg.Ledger.DailyTokenCap == 0 {
		cfg.Ledger.DailyTokenCap = 1_000_000
	}
	if cfg.Ledger.MonthlyTokenCap == 0 {
		cfg.Ledger.MonthlyTokenCap = 20_000_000
	}
	if cfg.Ledger.PerOperationCap == 0 {
		cfg.Ledger.PerOperationCap = 100_000
	}
	if cfg.Ledger.EmergencyBuffer == 0 {
		cfg.Ledger.EmergencyBuffer = 50_000
	}
	if cfg.Ledger.Store == "" {
		cfg.Ledger.Store = "memory"
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = "taskwarden-usage.db"
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 90
	}

	if cfg.Scheduler.Service == "" {
		cfg.Scheduler.Service = "claude-code"
	}
	if cfg.Scheduler.JobRetention == 0 {
		cfg.Scheduler.JobRetention = 5 * time.Minute
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = "info"
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = "json"
	}
}
