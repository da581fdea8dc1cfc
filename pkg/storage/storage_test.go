package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// backendFactory builds a fresh backend for the shared conformance tests.
type backendFactory func(t *testing.T) Backend

func testBackends(t *testing.T) map[string]backendFactory {
	t.Helper()

	return map[string]backendFactory{
		"memory": func(t *testing.T) Backend {
			return NewMemoryBackend()
		},
		"sqlite": func(t *testing.T) Backend {
			dbPath := filepath.Join(t.TempDir(), "taskwarden.db")
			backend, err := NewSQLiteBackend(dbPath)
			if err != nil {
				t.Fatalf("failed to create sqlite backend: %v", err)
			}
			return backend
		},
	}
}

func sampleTask(id string, created time.Time) *task.Task {
	return &task.Task{
		ID:              id,
		Name:            "sample",
		Category:        task.CategoryDevelopment,
		Priority:        task.PriorityMedium,
		Status:          task.StatusPending,
		Instructions:    "do the work",
		Capabilities:    []string{"read", "write"},
		EstimatedTokens: 500,
		CreatedAt:       created,
		CreatedBy:       "tester",
		Metadata:        map[string]string{"repo": "demo"},
	}
}

func TestBackend_SaveAndGetTask(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			want := sampleTask("task-1", time.Now().Truncate(time.Second))
			if err := backend.SaveTask(ctx, want); err != nil {
				t.Fatalf("SaveTask failed: %v", err)
			}

			got, err := backend.GetTask(ctx, "task-1")
			if err != nil {
				t.Fatalf("GetTask failed: %v", err)
			}
			if got.ID != want.ID || got.Category != want.Category || got.Priority != want.Priority {
				t.Errorf("got %+v, want %+v", got, want)
			}
			if len(got.Capabilities) != 2 {
				t.Errorf("expected capabilities round-trip, got %v", got.Capabilities)
			}
			if got.Metadata["repo"] != "demo" {
				t.Errorf("expected metadata round-trip, got %v", got.Metadata)
			}
		})
	}
}

func TestBackend_UpdateTask(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			tk := sampleTask("task-1", time.Now())
			if err := backend.SaveTask(ctx, tk); err != nil {
				t.Fatalf("SaveTask failed: %v", err)
			}

			tk.Status = task.StatusCompleted
			tk.ActualTokens = 742
			tk.Result = "done"
			tk.CompletedAt = time.Now()
			if err := backend.SaveTask(ctx, tk); err != nil {
				t.Fatalf("SaveTask update failed: %v", err)
			}

			got, err := backend.GetTask(ctx, "task-1")
			if err != nil {
				t.Fatalf("GetTask failed: %v", err)
			}
			if got.Status != task.StatusCompleted {
				t.Errorf("expected completed status, got %q", got.Status)
			}
			if got.ActualTokens != 742 {
				t.Errorf("expected actual tokens 742, got %d", got.ActualTokens)
			}
		})
	}
}

func TestBackend_GetTaskNotFound(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()

			_, err := backend.GetTask(context.Background(), "missing")
			if err != ErrNotFound {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestBackend_ListTasksRange(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			base := time.Now().Truncate(time.Second)
			old := sampleTask("old", base.Add(-48*time.Hour))
			recent := sampleTask("recent", base.Add(-time.Hour))
			newest := sampleTask("newest", base)

			for _, tk := range []*task.Task{old, recent, newest} {
				if err := backend.SaveTask(ctx, tk); err != nil {
					t.Fatalf("SaveTask failed: %v", err)
				}
			}

			got, err := backend.ListTasks(ctx, base.Add(-24*time.Hour), base.Add(time.Minute))
			if err != nil {
				t.Fatalf("ListTasks failed: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("expected 2 tasks in range, got %d", len(got))
			}
			if got[0].ID != "newest" || got[1].ID != "recent" {
				t.Errorf("expected newest-first ordering, got [%s, %s]", got[0].ID, got[1].ID)
			}
		})
	}
}

func TestBackend_LimitsRoundTrip(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			want := LimitConfig{
				TokensPerMinute:   1000,
				TokensPerHour:     10000,
				TokensPerDay:      50000,
				RequestsPerMinute: 5,
				RequestsPerHour:   50,
			}
			if err := backend.SaveLimits(ctx, task.CategoryTesting, want); err != nil {
				t.Fatalf("SaveLimits failed: %v", err)
			}

			// Upsert should overwrite
			want.TokensPerMinute = 2000
			if err := backend.SaveLimits(ctx, task.CategoryTesting, want); err != nil {
				t.Fatalf("SaveLimits upsert failed: %v", err)
			}

			got, err := backend.LoadLimits(ctx)
			if err != nil {
				t.Fatalf("LoadLimits failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 limit config, got %d", len(got))
			}
			if got[task.CategoryTesting] != want {
				t.Errorf("got %+v, want %+v", got[task.CategoryTesting], want)
			}
		})
	}
}

func TestBackend_CountersRoundTrip(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			stamp := time.Now().Truncate(time.Second)
			want := CounterState{
				TokensMinute:    500,
				TokensHour:      4000,
				TokensDay:       20000,
				RequestsMinute:  2,
				RequestsHour:    14,
				LastMinuteReset: stamp,
				LastHourReset:   stamp,
				LastDayReset:    stamp,
			}
			if err := backend.SaveCounters(ctx, task.CategoryDevelopment, want); err != nil {
				t.Fatalf("SaveCounters failed: %v", err)
			}

			got, err := backend.LoadCounters(ctx)
			if err != nil {
				t.Fatalf("LoadCounters failed: %v", err)
			}
			state, ok := got[task.CategoryDevelopment]
			if !ok {
				t.Fatal("expected counters for development category")
			}
			if state.TokensDay != 20000 || state.RequestsHour != 14 {
				t.Errorf("counter values did not round-trip: %+v", state)
			}
			if !state.LastMinuteReset.Equal(stamp) {
				t.Errorf("reset stamp did not round-trip: got %v, want %v", state.LastMinuteReset, stamp)
			}
		})
	}
}

func TestBackend_Cleanup(t *testing.T) {
	for name, factory := range testBackends(t) {
		t.Run(name, func(t *testing.T) {
			backend := factory(t)
			defer backend.Close()
			ctx := context.Background()

			base := time.Now().Truncate(time.Second)

			oldDone := sampleTask("old-done", base.Add(-72*time.Hour))
			oldDone.Status = task.StatusCompleted
			oldPending := sampleTask("old-pending", base.Add(-72*time.Hour))
			fresh := sampleTask("fresh", base)
			fresh.Status = task.StatusFailed

			for _, tk := range []*task.Task{oldDone, oldPending, fresh} {
				if err := backend.SaveTask(ctx, tk); err != nil {
					t.Fatalf("SaveTask failed: %v", err)
				}
			}

			deleted, err := backend.Cleanup(ctx, base.Add(-24*time.Hour))
			if err != nil {
				t.Fatalf("Cleanup failed: %v", err)
			}
			if deleted != 1 {
				t.Errorf("expected 1 deleted, got %d", deleted)
			}

			// Pending tasks survive cleanup regardless of age
			if _, err := backend.GetTask(ctx, "old-pending"); err != nil {
				t.Errorf("expected old pending task to survive: %v", err)
			}
			if _, err := backend.GetTask(ctx, "old-done"); err != ErrNotFound {
				t.Errorf("expected old terminal task to be removed, got %v", err)
			}
		})
	}
}
