package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// MemoryBackend implements Backend using in-process maps.
// State is lost on restart; intended for tests and ephemeral deployments.
type MemoryBackend struct {
	tasks    map[string]*task.Task
	limits   map[task.Category]LimitConfig
	counters map[task.Category]CounterState
	mu       sync.RWMutex
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		tasks:    make(map[string]*task.Task),
		limits:   make(map[task.Category]LimitConfig),
		counters: make(map[task.Category]CounterState),
	}
}

// SaveTask inserts or updates a task record.
func (m *MemoryBackend) SaveTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *t
	m.tasks[t.ID] = &clone
	return nil
}

// GetTask retrieves a task by id.
func (m *MemoryBackend) GetTask(_ context.Context, id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *t
	return &clone, nil
}

// ListTasks returns tasks created within [from, to), newest first.
func (m *MemoryBackend) ListTasks(_ context.Context, from, to time.Time) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*task.Task
	for _, t := range m.tasks {
		if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
			continue
		}
		clone := *t
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SaveLimits upserts the ceiling configuration for a category.
func (m *MemoryBackend) SaveLimits(_ context.Context, category task.Category, limits LimitConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.limits[category] = limits
	return nil
}

// LoadLimits returns all persisted ceiling configurations.
func (m *MemoryBackend) LoadLimits(_ context.Context) (map[task.Category]LimitConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[task.Category]LimitConfig, len(m.limits))
	for c, l := range m.limits {
		out[c] = l
	}
	return out, nil
}

// SaveCounters upserts the live counter state for a category.
func (m *MemoryBackend) SaveCounters(_ context.Context, category task.Category, state CounterState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[category] = state
	return nil
}

// LoadCounters returns all persisted counter states.
func (m *MemoryBackend) LoadCounters(_ context.Context) (map[task.Category]CounterState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[task.Category]CounterState, len(m.counters))
	for c, s := range m.counters {
		out[c] = s
	}
	return out, nil
}

// Cleanup removes terminal task records older than the given time.
func (m *MemoryBackend) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, t := range m.tasks {
		if t.Status.Terminal() && t.CreatedAt.Before(olderThan) {
			delete(m.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op for the memory backend.
func (m *MemoryBackend) Close() error {
	return nil
}
