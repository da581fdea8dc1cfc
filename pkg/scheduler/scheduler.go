package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"warden-hq/taskwarden/pkg/ledger"
	"warden-hq/taskwarden/pkg/ratelimit"
	"warden-hq/taskwarden/pkg/storage"
	"warden-hq/taskwarden/pkg/task"
)

// defaultService is the service name usage is attributed to when the
// configuration leaves it empty.
const defaultService = "claude-code"

// AdmissionError reports a submission rejected by a budget layer.
type AdmissionError struct {
	Category        task.Category
	EstimatedTokens int
	Reason          string
}

func (e *AdmissionError) Error() string {
	return fmt.Sprintf("task not admitted: category %s, %d estimated tokens: %s",
		e.Category, e.EstimatedTokens, e.Reason)
}

// Config holds the scheduler's collaborators.
type Config struct {
	// Limiter gates admission and receives the provisional token debit.
	Limiter *ratelimit.Limiter

	// Ledger enforces absolute caps and records actual usage.
	Ledger *ledger.Ledger

	// Executor performs the work of admitted tasks.
	Executor Executor

	// Storage persists task records. Nil disables persistence.
	Storage storage.Backend

	// Metrics is optional; nil records nothing.
	Metrics *Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Service is the usage-attribution service name.
	// Default: "claude-code".
	Service string

	// JobRetention overrides how long finished jobs stay queryable.
	JobRetention time.Duration
}

// Scheduler owns the pending queue and the single processing loop.
type Scheduler struct {
	limiter  *ratelimit.Limiter
	ledger   *ledger.Ledger
	executor Executor
	storage  storage.Backend
	metrics  *Metrics
	logger   *slog.Logger
	service  string

	queue *queue
	jobs  *jobSet

	// tasks is the authoritative in-memory index of every submitted task.
	tasks   map[string]*task.Task
	cancels map[string]context.CancelFunc
	mu      sync.Mutex

	processing bool
	procMu     sync.Mutex

	// Loop timing, shortened by tests.
	pollInterval  time.Duration
	denialBackoff time.Duration
	pauseBetween  time.Duration

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a scheduler. The processing loop does not run until Start.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := cfg.Service
	if service == "" {
		service = defaultService
	}

	return &Scheduler{
		limiter:       cfg.Limiter,
		ledger:        cfg.Ledger,
		executor:      cfg.Executor,
		storage:       cfg.Storage,
		metrics:       cfg.Metrics,
		logger:        logger.With("component", "scheduler"),
		service:       service,
		queue:         newQueue(),
		jobs:          newJobSet(cfg.JobRetention),
		tasks:         make(map[string]*task.Task),
		cancels:       make(map[string]context.CancelFunc),
		pollInterval:  time.Second,
		denialBackoff: 5 * time.Second,
		pauseBetween:  time.Second,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Submit validates the spec, checks admission against both budget layers,
// and queues the task. On denial nothing is persisted or queued and the
// returned error is an *AdmissionError.
func (s *Scheduler) Submit(ctx context.Context, spec task.Spec) (string, error) {
	if err := spec.Validate(); err != nil {
		return "", fmt.Errorf("invalid task spec: %w", err)
	}

	if !s.limiter.Admit(spec.Category, spec.EstimatedTokens) {
		s.metrics.Admission(string(spec.Category), false)
		return "", &AdmissionError{
			Category:        spec.Category,
			EstimatedTokens: spec.EstimatedTokens,
			Reason:          "rate limit window exhausted",
		}
	}
	if ok, reason := s.ledger.CanConsume(spec.EstimatedTokens, spec.Category); !ok {
		s.metrics.Admission(string(spec.Category), false)
		return "", &AdmissionError{
			Category:        spec.Category,
			EstimatedTokens: spec.EstimatedTokens,
			Reason:          reason,
		}
	}
	s.metrics.Admission(string(spec.Category), true)

	t := &task.Task{
		ID:              uuid.New().String(),
		Name:            spec.Name,
		Category:        spec.Category,
		Priority:        spec.Priority,
		Status:          task.StatusPending,
		Instructions:    spec.Instructions,
		Capabilities:    spec.Capabilities,
		EstimatedTokens: spec.EstimatedTokens,
		CreatedAt:       time.Now(),
		CreatedBy:       spec.CreatedBy,
		Metadata:        spec.Metadata,
	}

	s.mu.Lock()
	s.tasks[t.ID] = t
	s.mu.Unlock()

	s.persist(ctx, t)
	s.queue.Push(t)
	s.metrics.QueueDepth(s.queue.Len())

	s.logger.Info("task submitted",
		"task_id", t.ID,
		"category", t.Category,
		"priority", t.Priority.String(),
		"estimated_tokens", t.EstimatedTokens)

	return t.ID, nil
}

// Cancel stops a task. A running task has its executor context cancelled
// and its job marked cancelled; a pending task is removed from the queue.
// Returns false when the task is unknown or already terminal.
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok || t.Status.Terminal() {
		s.mu.Unlock()
		return false
	}

	if t.Status == task.StatusRunning {
		cancel := s.cancels[taskID]
		s.finishLocked(t, task.StatusFailed, "cancelled by user")
		s.mu.Unlock()

		if job, ok := s.jobs.Get(taskID); ok {
			job.Finish(task.JobCancelled)
		}
		if cancel != nil {
			cancel()
		}
		s.persist(context.Background(), t)
		s.logger.Info("running task cancelled", "task_id", taskID)
		return true
	}
	s.mu.Unlock()

	if removed := s.queue.Remove(taskID); removed == nil {
		return false
	}

	s.mu.Lock()
	s.finishLocked(t, task.StatusFailed, "cancelled before execution")
	s.mu.Unlock()

	s.metrics.QueueDepth(s.queue.Len())
	s.persist(context.Background(), t)
	s.logger.Info("pending task cancelled", "task_id", taskID)
	return true
}

// finishLocked moves a task to a terminal status. Callers must hold s.mu.
func (s *Scheduler) finishLocked(t *task.Task, status task.Status, reason string) {
	t.Status = status
	t.Error = reason
	t.CompletedAt = time.Now()
}

// Task returns a copy of the task record for the given id.
func (s *Scheduler) Task(taskID string) (task.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return task.Task{}, false
	}
	return *t, true
}

// StatusReport is the serializable snapshot returned by Status.
type StatusReport struct {
	QueueLength int                                `json:"queue_length"`
	Processing  bool                               `json:"processing"`
	ActiveJobs  []task.JobView                     `json:"active_jobs"`
	RateLimits  map[task.Category]ratelimit.Status `json:"rate_limits"`
	RecentUsage []ratelimit.MinuteUsage            `json:"recent_usage"`
	Usage       *ledger.Summary                    `json:"usage"`
}

// Status reports the scheduler's current state: queue depth, the active
// job set, whether a task is executing right now, and snapshots of both
// budget layers.
func (s *Scheduler) Status() StatusReport {
	s.procMu.Lock()
	processing := s.processing
	s.procMu.Unlock()

	return StatusReport{
		QueueLength: s.queue.Len(),
		Processing:  processing,
		ActiveJobs:  s.jobs.Views(),
		RateLimits:  s.limiter.Snapshot(),
		RecentUsage: s.limiter.RecentUsage(),
		Usage:       s.ledger.Summary(ledger.RangeDay),
	}
}

// persist writes the task record to storage, logging failures without
// surfacing them. Task state in memory is authoritative.
func (s *Scheduler) persist(ctx context.Context, t *task.Task) {
	if s.storage == nil {
		return
	}

	s.mu.Lock()
	snapshot := *t
	s.mu.Unlock()

	go func() {
		if err := s.storage.SaveTask(context.WithoutCancel(ctx), &snapshot); err != nil {
			s.logger.Error("failed to persist task", "task_id", snapshot.ID, "error", err)
		}
	}()
}

func (s *Scheduler) setProcessing(v bool) {
	s.procMu.Lock()
	s.processing = v
	s.procMu.Unlock()
}
