package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"warden-hq/taskwarden/pkg/ledger/store"
	"warden-hq/taskwarden/pkg/task"
)

// bufferWindow is how much history the in-memory event buffer retains.
// Summaries, cap checks and alerts read this buffer; longer windows go
// through the durable store via Analytics.
const bufferWindow = 7 * 24 * time.Hour

// Config holds the ledger's budget caps and collaborators.
type Config struct {
	// DailyTokenCap is the hard token budget per calendar day.
	// Default: 1,000,000.
	DailyTokenCap int `json:"daily_token_cap" yaml:"daily_token_cap"`

	// MonthlyTokenCap is the hard token budget per rolling 30 days.
	// Default: 20,000,000.
	MonthlyTokenCap int `json:"monthly_token_cap" yaml:"monthly_token_cap"`

	// PerOperationCap bounds a single operation's token estimate.
	// Default: 100,000.
	PerOperationCap int `json:"per_operation_cap" yaml:"per_operation_cap"`

	// EmergencyBuffer is the slice of the daily cap withheld from
	// ordinary work and reserved for emergency categories.
	// Default: 50,000.
	EmergencyBuffer int `json:"emergency_buffer" yaml:"emergency_buffer"`

	// EmergencyCategories may consume into the emergency buffer.
	// Default: deployment.
	EmergencyCategories []task.Category `json:"emergency_categories" yaml:"emergency_categories"`

	// Store receives every recorded event for durable retention. Nil
	// disables persistence; summaries and caps still work from the
	// in-memory buffer, but Analytics will see no history.
	Store store.Store `json:"-" yaml:"-"`

	// Logger for persistence failures and alert transitions. Defaults
	// to slog.Default.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) applyDefaults() {
	if c.DailyTokenCap <= 0 {
		c.DailyTokenCap = 1_000_000
	}
	if c.MonthlyTokenCap <= 0 {
		c.MonthlyTokenCap = 20_000_000
	}
	if c.PerOperationCap <= 0 {
		c.PerOperationCap = 100_000
	}
	if c.EmergencyBuffer <= 0 {
		c.EmergencyBuffer = 50_000
	}
	if len(c.EmergencyCategories) == 0 {
		c.EmergencyCategories = []task.Category{task.CategoryDeployment}
	}
}

// Ledger records token usage events, attributes cost, enforces absolute
// budget caps, and reports threshold alerts.
//
// All methods are safe for concurrent use.
type Ledger struct {
	config  Config
	storage store.Store
	logger  *slog.Logger

	// buffer holds the last bufferWindow of events, oldest first.
	buffer []*store.Event

	now func() time.Time
	mu  sync.Mutex
}

// New creates a ledger with defaults applied for any zero-valued caps.
func New(config Config) *Ledger {
	config.applyDefaults()

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Ledger{
		config:  config,
		storage: config.Store,
		logger:  logger.With("component", "ledger"),
		now:     time.Now,
	}
}

// Record registers tokensUsed against a service and category, computes the
// cost, and returns the created event. The event lands in the in-memory
// buffer immediately; the write to durable storage is asynchronous and
// best-effort, with failures logged but never surfaced to the caller.
func (l *Ledger) Record(ctx context.Context, service string, tokensUsed int, category task.Category, operation string, metadata map[string]string) *store.Event {
	event := &store.Event{
		ID:        uuid.New().String(),
		Service:   service,
		Tokens:    tokensUsed,
		Category:  category,
		Operation: operation,
		Cost:      Cost(service, tokensUsed),
		Timestamp: l.now(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	l.buffer = append(l.buffer, event)
	l.pruneBufferLocked(event.Timestamp)
	l.mu.Unlock()

	if l.storage != nil {
		go func() {
			if err := l.storage.Append(context.WithoutCancel(ctx), event); err != nil {
				l.logger.Error("failed to persist usage event",
					"event_id", event.ID,
					"service", service,
					"error", err)
			}
		}()
	}

	for _, alert := range l.Alerts() {
		switch alert.Severity {
		case SeverityDanger:
			l.logger.Error("usage alert", "kind", alert.Kind, "message", alert.Message)
		default:
			l.logger.Warn("usage alert", "kind", alert.Kind, "message", alert.Message)
		}
	}

	return event
}

// CanConsume reports whether an operation with the given token estimate
// may proceed under the absolute budget caps. It never mutates state; the
// returned reason is empty when allowed and describes the violated cap
// otherwise.
//
// Checks, in order: per-operation cap, daily cap, emergency reserve
// (skipped for emergency categories), monthly cap.
func (l *Ledger) CanConsume(estimatedTokens int, category task.Category) (bool, string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if estimatedTokens > l.config.PerOperationCap {
		return false, fmt.Sprintf("operation estimate %d exceeds per-operation cap %d",
			estimatedTokens, l.config.PerOperationCap)
	}

	dayTokens := l.tokensSinceLocked(startOfDay(now))
	if dayTokens+estimatedTokens > l.config.DailyTokenCap {
		return false, fmt.Sprintf("daily token cap reached: %d used of %d, %d requested",
			dayTokens, l.config.DailyTokenCap, estimatedTokens)
	}

	if !l.isEmergency(category) {
		available := l.config.DailyTokenCap - l.config.EmergencyBuffer
		if dayTokens+estimatedTokens > available {
			return false, fmt.Sprintf("emergency reserve protected: %d of %d daily tokens held for emergency categories",
				l.config.EmergencyBuffer, l.config.DailyTokenCap)
		}
	}

	monthTokens := l.tokensSinceLocked(now.AddDate(0, 0, -30))
	if monthTokens+estimatedTokens > l.config.MonthlyTokenCap {
		return false, fmt.Sprintf("monthly token cap reached: %d used of %d, %d requested",
			monthTokens, l.config.MonthlyTokenCap, estimatedTokens)
	}

	return true, ""
}

func (l *Ledger) isEmergency(category task.Category) bool {
	for _, c := range l.config.EmergencyCategories {
		if c == category {
			return true
		}
	}
	return false
}

// tokensSinceLocked sums buffered tokens with timestamps at or after from.
// Callers must hold l.mu.
func (l *Ledger) tokensSinceLocked(from time.Time) int {
	total := 0
	for _, e := range l.buffer {
		if !e.Timestamp.Before(from) {
			total += e.Tokens
		}
	}
	return total
}

// pruneBufferLocked drops buffered events older than bufferWindow.
// Callers must hold l.mu.
func (l *Ledger) pruneBufferLocked(now time.Time) {
	cutoff := now.Add(-bufferWindow)
	i := 0
	for i < len(l.buffer) && l.buffer[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		l.buffer = append([]*store.Event(nil), l.buffer[i:]...)
	}
}

// eventsSince returns a copy of buffered events at or after from.
func (l *Ledger) eventsSince(from time.Time) []*store.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []*store.Event
	for _, e := range l.buffer {
		if !e.Timestamp.Before(from) {
			out = append(out, e)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
