package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/storage"
	"warden-hq/taskwarden/pkg/task"
)

// maxRecentMinutes bounds the per-minute usage history kept for analytics.
const maxRecentMinutes = 180

// Config configures a Limiter.
type Config struct {
	// Limits maps categories to their ceilings. Categories missing from
	// the map fall back to DefaultCeilings.
	Limits map[task.Category]Ceilings

	// Storage persists ceiling configuration and live counters.
	// Optional; persistence is skipped when nil.
	Storage storage.Backend

	// Logger receives structured diagnostics. Defaults to slog.Default.
	Logger *slog.Logger
}

// Limiter tracks per-category budgets across five fixed windows.
//
// Admit and RecordUsage form a check-then-act pair: the scheduler's serial
// execution loop guarantees no other writer runs between them, and both
// calls take the same lock, so concurrent Submit callers see consistent
// counters.
type Limiter struct {
	ceilings map[task.Category]Ceilings
	counters map[task.Category]*counters
	recent   []MinuteUsage

	storage storage.Backend
	logger  *slog.Logger

	// now is replaced in tests to cross window boundaries deterministically.
	now func() time.Time

	mu sync.Mutex
}

// New creates a Limiter with defaults merged under cfg.Limits.
func New(cfg Config) *Limiter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	l := &Limiter{
		ceilings: DefaultCeilings(),
		counters: make(map[task.Category]*counters),
		storage:  cfg.Storage,
		logger:   logger.With("component", "ratelimit"),
		now:      time.Now,
	}

	for category, ceilings := range cfg.Limits {
		l.ceilings[category] = ceilings
	}

	now := l.now()
	for category := range l.ceilings {
		l.counters[category] = newCounters(now)
	}

	return l
}

// LoadPersisted overlays ceilings and live counters previously saved to
// storage. Call once at startup, before the scheduler starts.
func (l *Limiter) LoadPersisted(ctx context.Context) error {
	if l.storage == nil {
		return nil
	}

	persisted, err := l.storage.LoadLimits(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted limits: %w", err)
	}

	states, err := l.storage.LoadCounters(ctx)
	if err != nil {
		return fmt.Errorf("failed to load persisted counters: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for category, cfg := range persisted {
		if _, known := l.ceilings[category]; !known {
			l.logger.Warn("ignoring persisted limits for unknown category",
				"category", category)
			continue
		}
		l.ceilings[category] = Ceilings(cfg)
	}

	// Restored counters carry their old reset stamps; the next lazy reset
	// zeroes whatever windows have expired since the process stopped.
	for category, state := range states {
		if _, known := l.ceilings[category]; !known {
			continue
		}
		l.counters[category] = &counters{
			tokensMinute:    state.TokensMinute,
			tokensHour:      state.TokensHour,
			tokensDay:       state.TokensDay,
			requestsMinute:  state.RequestsMinute,
			requestsHour:    state.RequestsHour,
			lastMinuteReset: state.LastMinuteReset,
			lastHourReset:   state.LastHourReset,
			lastDayReset:    state.LastDayReset,
		}
	}

	return nil
}

// Admit reports whether an operation estimated at estimatedTokens fits
// within all five of the category's ceilings. No budget is reserved; the
// caller pairs a successful Admit with RecordUsage.
//
// Unknown categories are admitted without limits. The pass-through is kept
// for compatibility with existing clients and logged at Warn so it is
// visible in operation.
func (l *Limiter) Admit(category task.Category, estimatedTokens int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[category]
	if !ok {
		l.logger.Warn("admitting unknown category without limits",
			"category", category, "estimated_tokens", estimatedTokens)
		return true
	}

	c.lazyReset(l.now())
	return c.fits(l.ceilings[category], estimatedTokens)
}

// RecordUsage counts tokensUsed and one request against the category's
// windows, appends a per-minute usage record for analytics, and persists
// the counters best-effort.
//
// Callers are responsible for the preceding Admit; RecordUsage does not
// re-validate and will push counters past their ceilings if misused.
func (l *Limiter) RecordUsage(ctx context.Context, category task.Category, tokensUsed int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.counters[category]
	if !ok {
		l.logger.Warn("usage recorded for unknown category, not counted",
			"category", category, "tokens", tokensUsed)
		return
	}

	now := l.now()
	c.lazyReset(now)
	c.record(tokensUsed)
	l.appendMinuteUsage(now, tokensUsed)

	state := storage.CounterState{
		TokensMinute:    c.tokensMinute,
		TokensHour:      c.tokensHour,
		TokensDay:       c.tokensDay,
		RequestsMinute:  c.requestsMinute,
		RequestsHour:    c.requestsHour,
		LastMinuteReset: c.lastMinuteReset,
		LastHourReset:   c.lastHourReset,
		LastDayReset:    c.lastDayReset,
	}

	if l.storage != nil {
		// Fire-and-forget durability: a failed write never affects counters.
		go func() {
			if err := l.storage.SaveCounters(context.WithoutCancel(ctx), category, state); err != nil {
				l.logger.Error("failed to persist rate limit counters",
					"category", category, "error", err)
			}
		}()
	}
}

// Snapshot returns the live budget state for every known category.
func (l *Limiter) Snapshot() map[task.Category]Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	out := make(map[task.Category]Status, len(l.counters))

	for category, c := range l.counters {
		c.lazyReset(now)
		ceilings := l.ceilings[category]

		out[category] = Status{
			TokensPerMinute:   windowStatus(ceilings.TokensPerMinute, c.tokensMinute, untilNextMinute(now)),
			TokensPerHour:     windowStatus(ceilings.TokensPerHour, c.tokensHour, untilNextHour(now)),
			TokensPerDay:      windowStatus(ceilings.TokensPerDay, c.tokensDay, untilNextDay(now)),
			RequestsPerMinute: windowStatus(ceilings.RequestsPerMinute, c.requestsMinute, untilNextMinute(now)),
			RequestsPerHour:   windowStatus(ceilings.RequestsPerHour, c.requestsHour, untilNextHour(now)),
		}
	}

	return out
}

// UpdateLimits overwrites the ceilings named in patch for a category,
// preserving live counters, and persists the new configuration.
func (l *Limiter) UpdateLimits(ctx context.Context, category task.Category, patch Patch) (Ceilings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ceilings, ok := l.ceilings[category]
	if !ok {
		return Ceilings{}, fmt.Errorf("unknown category %q", category)
	}

	if patch.TokensPerMinute != nil {
		ceilings.TokensPerMinute = *patch.TokensPerMinute
	}
	if patch.TokensPerHour != nil {
		ceilings.TokensPerHour = *patch.TokensPerHour
	}
	if patch.TokensPerDay != nil {
		ceilings.TokensPerDay = *patch.TokensPerDay
	}
	if patch.RequestsPerMinute != nil {
		ceilings.RequestsPerMinute = *patch.RequestsPerMinute
	}
	if patch.RequestsPerHour != nil {
		ceilings.RequestsPerHour = *patch.RequestsPerHour
	}

	l.ceilings[category] = ceilings

	if l.storage != nil {
		if err := l.storage.SaveLimits(ctx, category, storage.LimitConfig(ceilings)); err != nil {
			return ceilings, fmt.Errorf("limits updated in memory, persistence failed: %w", err)
		}
	}

	l.logger.Info("rate limits updated", "category", category,
		"tokens_per_minute", ceilings.TokensPerMinute,
		"tokens_per_hour", ceilings.TokensPerHour,
		"tokens_per_day", ceilings.TokensPerDay,
		"requests_per_minute", ceilings.RequestsPerMinute,
		"requests_per_hour", ceilings.RequestsPerHour)

	return ceilings, nil
}

// Ceilings returns the current ceilings for a category.
func (l *Limiter) Ceilings(category task.Category) (Ceilings, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.ceilings[category]
	return c, ok
}

// RecentUsage returns the per-minute usage records accumulated by
// RecordUsage, oldest first.
func (l *Limiter) RecentUsage() []MinuteUsage {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]MinuteUsage, len(l.recent))
	copy(out, l.recent)
	return out
}

// appendMinuteUsage folds one usage report into the per-minute history.
// Caller must hold the lock.
func (l *Limiter) appendMinuteUsage(now time.Time, tokens int) {
	minute := now.Truncate(time.Minute)

	if n := len(l.recent); n > 0 && l.recent[n-1].Minute.Equal(minute) {
		l.recent[n-1].Tokens += tokens
		l.recent[n-1].Requests++
		return
	}

	l.recent = append(l.recent, MinuteUsage{Minute: minute, Tokens: tokens, Requests: 1})
	if len(l.recent) > maxRecentMinutes {
		l.recent = l.recent[len(l.recent)-maxRecentMinutes:]
	}
}

// windowStatus builds the snapshot entry for one ceiling.
func windowStatus(limit, used int, resetIn time.Duration) WindowStatus {
	percent := 0
	if limit > 0 {
		percent = int(float64(used)/float64(limit)*100 + 0.5)
	}
	return WindowStatus{
		Limit:       limit,
		Used:        used,
		PercentUsed: percent,
		ResetIn:     resetIn,
	}
}
