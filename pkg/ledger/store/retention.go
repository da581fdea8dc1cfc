package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// RetentionConfig configures scheduled pruning of old usage events.
type RetentionConfig struct {
	// Schedule is a standard cron expression, e.g. "0 3 * * *" for
	// daily at 3 AM. Empty disables scheduled pruning.
	Schedule string

	// RetentionDays is how many days of events to keep.
	// Default: 90.
	RetentionDays int
}

// Retention prunes old usage events on a cron schedule.
type Retention struct {
	store   Store
	config  RetentionConfig
	cron    *cron.Cron
	logger  *slog.Logger
	running bool
	mu      sync.Mutex
}

// NewRetention creates a retention runner for the given store.
func NewRetention(store Store, config RetentionConfig) *Retention {
	if config.RetentionDays <= 0 {
		config.RetentionDays = 90
	}
	return &Retention{
		store:  store,
		config: config,
		cron:   cron.New(),
		logger: slog.Default().With("component", "ledger.retention"),
	}
}

// Start begins scheduled pruning. It returns immediately; pruning runs on
// the cron schedule until ctx is cancelled or Stop is called.
func (r *Retention) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.config.Schedule == "" {
		r.logger.Info("prune schedule not configured, skipping retention")
		return nil
	}

	if _, err := cron.ParseStandard(r.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", r.config.Schedule, err)
	}

	_, err := r.cron.AddFunc(r.config.Schedule, func() {
		r.runPruning(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule pruning: %w", err)
	}

	r.cron.Start()
	r.running = true

	r.logger.Info("usage retention started",
		"schedule", r.config.Schedule,
		"retention_days", r.config.RetentionDays)

	go func() {
		<-ctx.Done()
		r.Stop()
	}()

	return nil
}

// runPruning executes one pruning cycle.
func (r *Retention) runPruning(ctx context.Context) {
	cutoff := time.Now().AddDate(0, 0, -r.config.RetentionDays)

	deleted, err := r.store.Prune(ctx, cutoff)
	if err != nil {
		r.logger.Error("scheduled usage pruning failed", "error", err)
		return
	}

	if deleted > 0 {
		r.logger.Info("usage pruning completed", "deleted_count", deleted)
	} else {
		r.logger.Debug("usage pruning completed, no events deleted")
	}
}

// Stop stops the scheduler and waits for a running prune to finish.
func (r *Retention) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil && r.running {
		ctx := r.cron.Stop()
		<-ctx.Done()
		r.running = false
		r.logger.Info("usage retention stopped")
	}
}
