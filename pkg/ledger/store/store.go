package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Event is one immutable record of tokens consumed by a completed
// operation.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Service is the consuming service name, e.g. "claude-code".
	Service string `json:"service"`

	// Tokens is the token count consumed.
	Tokens int `json:"tokens"`

	// Category is the task category the consumption belongs to.
	Category task.Category `json:"category"`

	// Operation labels what the tokens were spent on.
	Operation string `json:"operation"`

	// Cost is the computed monetary cost in USD.
	Cost float64 `json:"cost"`

	// Timestamp is when the consumption happened.
	Timestamp time.Time `json:"timestamp"`

	// Metadata is an open key-value bag.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is the durable usage-event store.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append durably records one event.
	Append(ctx context.Context, event *Event) error

	// QueryRange returns events with timestamps in [from, to), oldest
	// first.
	QueryRange(ctx context.Context, from, to time.Time) ([]*Event, error)

	// Prune deletes events older than the given time and returns the
	// number removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore implements Store with an in-process slice.
// Intended for tests and ephemeral deployments.
type MemoryStore struct {
	events []*Event
	mu     sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Append durably records one event.
func (m *MemoryStore) Append(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *event
	m.events = append(m.events, &clone)
	return nil
}

// QueryRange returns events with timestamps in [from, to), oldest first.
func (m *MemoryStore) QueryRange(_ context.Context, from, to time.Time) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Event
	for _, e := range m.events {
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		clone := *e
		out = append(out, &clone)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// Prune deletes events older than the given time.
func (m *MemoryStore) Prune(_ context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.events[:0]
	deleted := 0
	for _, e := range m.events {
		if e.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return deleted, nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
