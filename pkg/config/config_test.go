package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "taskwarden.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

const sampleConfig = `
server:
  listen_address: "0.0.0.0:9090"
storage:
  backend: sqlite
  path: /tmp/tw.db
rate_limits:
  development:
    tokens_per_minute: 20000
    tokens_per_hour: 200000
    tokens_per_day: 900000
    requests_per_minute: 20
    requests_per_hour: 200
ledger:
  daily_token_cap: 2000000
telemetry:
  logging:
    level: debug
    format: text
`

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Explicit values survive.
	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("expected configured listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.RateLimits[task.CategoryDevelopment].TokensPerMinute != 20000 {
		t.Errorf("expected configured ceiling, got %+v", cfg.RateLimits[task.CategoryDevelopment])
	}
	if cfg.Ledger.DailyTokenCap != 2_000_000 {
		t.Errorf("expected configured daily cap, got %d", cfg.Ledger.DailyTokenCap)
	}

	// Unset fields pick up defaults.
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected default read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if cfg.Ledger.MonthlyTokenCap != 20_000_000 {
		t.Errorf("expected default monthly cap, got %d", cfg.Ledger.MonthlyTokenCap)
	}
	if cfg.Scheduler.Service != "claude-code" {
		t.Errorf("expected default service, got %q", cfg.Scheduler.Service)
	}
	if !cfg.Telemetry.MetricsOn() {
		t.Error("expected metrics enabled by default")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Storage.Backend = "postgres"
	cfg.Telemetry.Logging.Level = "loud"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Errors) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(verr.Errors), verr.Errors)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("TASKWARDEN_SERVER_LISTEN_ADDRESS", "127.0.0.1:7777")
	t.Setenv("TASKWARDEN_LEDGER_DAILY_TOKEN_CAP", "5000000")
	t.Setenv("TASKWARDEN_LOG_LEVEL", "warn")

	cfg, err := LoadWithEnvOverrides(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("LoadWithEnvOverrides failed: %v", err)
	}

	if cfg.Server.ListenAddress != "127.0.0.1:7777" {
		t.Errorf("expected env override for listen address, got %q", cfg.Server.ListenAddress)
	}
	if cfg.Ledger.DailyTokenCap != 5_000_000 {
		t.Errorf("expected env override for daily cap, got %d", cfg.Ledger.DailyTokenCap)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected env override for log level, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	w := NewWatcher(path, nil)
	w.debounce = 20 * time.Millisecond

	reloaded := make(chan *Config, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = w.Watch(ctx, func(cfg *Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	// Give the watcher time to register before the write.
	time.Sleep(50 * time.Millisecond)

	updated := sampleConfig + "\nscheduler:\n  service: overridden\n"
	if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
		t.Fatalf("failed to rewrite config: %v", err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Scheduler.Service != "overridden" {
			t.Errorf("expected reloaded service name, got %q", cfg.Scheduler.Service)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	w.Stop()
}
