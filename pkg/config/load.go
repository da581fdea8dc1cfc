package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file, applies defaults and
// validates the result. Environment variables are not consulted; use
// LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// TASKWARDEN_* environment overrides on top. Overrides always win over
// file values, and the merged result is re-validated.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies TASKWARDEN_SECTION_FIELD environment
// variables. Malformed values are ignored; the file value stays in place.
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("TASKWARDEN_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("TASKWARDEN_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	if val := os.Getenv("TASKWARDEN_STORAGE_BACKEND"); val != "" {
		cfg.Storage.Backend = val
	}
	if val := os.Getenv("TASKWARDEN_STORAGE_PATH"); val != "" {
		cfg.Storage.Path = val
	}

	if val := os.Getenv("TASKWARDEN_LEDGER_DAILY_TOKEN_CAP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.DailyTokenCap = n
		}
	}
	if val := os.Getenv("TASKWARDEN_LEDGER_MONTHLY_TOKEN_CAP"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Ledger.MonthlyTokenCap = n
		}
	}
	if val := os.Getenv("TASKWARDEN_LEDGER_STORE"); val != "" {
		cfg.Ledger.Store = val
	}
	if val := os.Getenv("TASKWARDEN_LEDGER_PATH"); val != "" {
		cfg.Ledger.Path = val
	}

	if val := os.Getenv("TASKWARDEN_SCHEDULER_SERVICE"); val != "" {
		cfg.Scheduler.Service = val
	}

	if val := os.Getenv("TASKWARDEN_LOG_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("TASKWARDEN_LOG_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}
