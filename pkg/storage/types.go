package storage

import (
	"context"
	"errors"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Backend defines the interface for task and limit-configuration
// persistence. Implementations must be safe for concurrent use.
type Backend interface {
	// SaveTask inserts or updates a task record keyed by its id.
	SaveTask(ctx context.Context, t *task.Task) error

	// GetTask retrieves a task by id. Returns ErrNotFound if absent.
	GetTask(ctx context.Context, id string) (*task.Task, error)

	// ListTasks returns tasks created within [from, to), newest first.
	ListTasks(ctx context.Context, from, to time.Time) ([]*task.Task, error)

	// SaveLimits upserts the ceiling configuration for a category.
	SaveLimits(ctx context.Context, category task.Category, limits LimitConfig) error

	// LoadLimits returns all persisted ceiling configurations.
	// Categories without persisted configuration are absent from the map.
	LoadLimits(ctx context.Context) (map[task.Category]LimitConfig, error)

	// SaveCounters upserts the live counter state for a category.
	SaveCounters(ctx context.Context, category task.Category, state CounterState) error

	// LoadCounters returns all persisted counter states.
	LoadCounters(ctx context.Context) (map[task.Category]CounterState, error)

	// Cleanup removes terminal task records older than the given time.
	// Returns the number of records deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases resources held by the backend.
	Close() error
}

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// LimitConfig is the persisted form of a category's five ceilings.
// Zero values are treated by the limiter as "keep the default".
type LimitConfig struct {
	TokensPerMinute   int `json:"tokens_per_minute"`
	TokensPerHour     int `json:"tokens_per_hour"`
	TokensPerDay      int `json:"tokens_per_day"`
	RequestsPerMinute int `json:"requests_per_minute"`
	RequestsPerHour   int `json:"requests_per_hour"`
}

// CounterState is the persisted form of a category's live counters and
// reset stamps. Restored state is subject to the limiter's lazy reset, so
// expired windows zero themselves on the first call after a restart.
type CounterState struct {
	TokensMinute   int `json:"tokens_minute"`
	TokensHour     int `json:"tokens_hour"`
	TokensDay      int `json:"tokens_day"`
	RequestsMinute int `json:"requests_minute"`
	RequestsHour   int `json:"requests_hour"`

	LastMinuteReset time.Time `json:"last_minute_reset"`
	LastHourReset   time.Time `json:"last_hour_reset"`
	LastDayReset    time.Time `json:"last_day_reset"`
}
