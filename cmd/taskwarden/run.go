package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"warden-hq/taskwarden/internal/shellexec"
	"warden-hq/taskwarden/pkg/config"
	"warden-hq/taskwarden/pkg/ledger"
	"warden-hq/taskwarden/pkg/ledger/store"
	"warden-hq/taskwarden/pkg/ratelimit"
	"warden-hq/taskwarden/pkg/scheduler"
	"warden-hq/taskwarden/pkg/server"
	"warden-hq/taskwarden/pkg/storage"
	"warden-hq/taskwarden/pkg/task"
	"warden-hq/taskwarden/pkg/telemetry/logging"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	executorCmd   string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the taskwarden scheduler and API server",
	Long: `Start the scheduler loop and the HTTP API server.

Examples:
  # Start with default config
  taskwarden run

  # Start with custom config
  taskwarden run --config /etc/taskwarden/config.yaml

  # Override listen address
  taskwarden run --listen 0.0.0.0:8080

  # Validate config without starting
  taskwarden run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.executorCmd, "executor", "", "override the agent command used to execute tasks")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.Install(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Task persistence backend.
	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	// Rate limiter with persisted ceilings and counters overlaid.
	limiter := ratelimit.New(ratelimit.Config{
		Limits:  cfg.RateLimits,
		Storage: backend,
		Logger:  logger,
	})
	if err := limiter.LoadPersisted(ctx); err != nil {
		logger.Warn("failed to load persisted rate limit state", "error", err)
	}

	// Usage-event store, ledger and scheduled retention pruning.
	usageStore, err := newUsageStore(cfg)
	if err != nil {
		return err
	}
	defer usageStore.Close()

	led := ledger.New(ledger.Config{
		DailyTokenCap:       cfg.Ledger.DailyTokenCap,
		MonthlyTokenCap:     cfg.Ledger.MonthlyTokenCap,
		PerOperationCap:     cfg.Ledger.PerOperationCap,
		EmergencyBuffer:     cfg.Ledger.EmergencyBuffer,
		EmergencyCategories: cfg.Ledger.EmergencyCategories,
		Store:               usageStore,
		Logger:              logger,
	})

	retention := store.NewRetention(usageStore, store.RetentionConfig{
		Schedule:      cfg.Ledger.PruneSchedule,
		RetentionDays: cfg.Ledger.RetentionDays,
	})
	if err := retention.Start(ctx); err != nil {
		return fmt.Errorf("failed to start usage retention: %w", err)
	}
	defer retention.Stop()

	// Terminal task records age out on the same horizon as usage events.
	go cleanupTasks(ctx, backend, cfg.Ledger.RetentionDays, logger)

	// Metrics registry with process and Go runtime collectors.
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	executor := shellexec.New(shellexec.Config{
		Command: runFlags.executorCmd,
		Logger:  logger,
	})

	sched := scheduler.New(scheduler.Config{
		Limiter:      limiter,
		Ledger:       led,
		Executor:     executor,
		Storage:      backend,
		Metrics:      scheduler.NewMetrics(registry),
		Logger:       logger,
		Service:      cfg.Scheduler.Service,
		JobRetention: cfg.Scheduler.JobRetention,
	})
	sched.Start(ctx)
	defer sched.Stop()

	// Hot reload: rate-limit ceilings follow the file; everything else
	// needs a restart.
	watcher := config.NewWatcher(cfgFile, logger)
	go func() {
		err := watcher.Watch(ctx, func(next *config.Config) {
			applyCeilings(ctx, limiter, next.RateLimits, logger)
		})
		if err != nil {
			logger.Warn("configuration watcher exited", "error", err)
		}
	}()

	var gatherer prometheus.Gatherer
	if cfg.Telemetry.MetricsOn() {
		gatherer = registry
	}

	srv := server.New(server.Config{
		Server:    cfg.Server,
		Scheduler: sched,
		Ledger:    led,
		Gatherer:  gatherer,
		Logger:    logger,
	})

	logger.Info("taskwarden starting",
		"version", Version,
		"listen_address", cfg.Server.ListenAddress,
		"storage", cfg.Storage.Backend,
		"usage_store", cfg.Ledger.Store)

	return srv.Start(ctx)
}

func newBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "sqlite":
		backend, err := storage.NewSQLiteBackend(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open task storage: %w", err)
		}
		return backend, nil
	default:
		return storage.NewMemoryBackend(), nil
	}
}

func newUsageStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Ledger.Store {
	case "sqlite":
		s, err := store.NewSQLiteStore(cfg.Ledger.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open usage store: %w", err)
		}
		return s, nil
	default:
		return store.NewMemoryStore(), nil
	}
}

// cleanupTasks deletes terminal task records older than retentionDays,
// once a day until ctx is cancelled.
func cleanupTasks(ctx context.Context, backend storage.Backend, retentionDays int, logger *slog.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().AddDate(0, 0, -retentionDays)
			deleted, err := backend.Cleanup(ctx, cutoff)
			if err != nil {
				logger.Error("task cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("task cleanup completed", "deleted_count", deleted)
			}
		}
	}
}

// applyCeilings pushes reloaded ceilings into the limiter, preserving live
// counters.
func applyCeilings(ctx context.Context, limiter *ratelimit.Limiter, limits map[task.Category]ratelimit.Ceilings, logger *slog.Logger) {
	for category, ceilings := range limits {
		c := ceilings
		patch := ratelimit.Patch{
			TokensPerMinute:   &c.TokensPerMinute,
			TokensPerHour:     &c.TokensPerHour,
			TokensPerDay:      &c.TokensPerDay,
			RequestsPerMinute: &c.RequestsPerMinute,
			RequestsPerHour:   &c.RequestsPerHour,
		}
		if _, err := limiter.UpdateLimits(ctx, category, patch); err != nil {
			logger.Warn("failed to apply reloaded ceilings",
				"category", category,
				"error", err)
			continue
		}
		logger.Info("rate limit ceilings updated", "category", category)
	}
}
