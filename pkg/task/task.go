package task

import (
	"fmt"
	"time"
)

// Category classifies work into one of the fixed budget classes.
// Every category maps to exactly one rate-limit budget.
type Category string

const (
	// CategoryDevelopment covers code-writing and refactoring work.
	CategoryDevelopment Category = "development"

	// CategoryTesting covers test authoring and test-run work.
	CategoryTesting Category = "testing"

	// CategoryDeployment covers release and rollout work.
	CategoryDeployment Category = "deployment"

	// CategoryAnalysis covers read-only investigation work.
	CategoryAnalysis Category = "analysis"

	// CategoryMaintenance covers housekeeping and dependency work.
	CategoryMaintenance Category = "maintenance"
)

// Categories lists all known categories in a stable order.
var Categories = []Category{
	CategoryDevelopment,
	CategoryTesting,
	CategoryDeployment,
	CategoryAnalysis,
	CategoryMaintenance,
}

// Valid reports whether the category is one of the known enum values.
func (c Category) Valid() bool {
	switch c {
	case CategoryDevelopment, CategoryTesting, CategoryDeployment,
		CategoryAnalysis, CategoryMaintenance:
		return true
	}
	return false
}

// Priority orders tasks in the pending queue. Higher values dequeue first.
type Priority int

const (
	// PriorityLow is background work with no urgency.
	PriorityLow Priority = 1

	// PriorityMedium is the default priority.
	PriorityMedium Priority = 2

	// PriorityHigh is work that should preempt the default backlog.
	PriorityHigh Priority = 3

	// PriorityUrgent is work that should run before everything else.
	PriorityUrgent Priority = 4
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a priority name into a Priority value.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "medium", "":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	default:
		return 0, fmt.Errorf("unknown priority %q", s)
	}
}

// Status is the lifecycle state of a Task.
type Status string

const (
	// StatusPending means the task is queued and waiting to execute.
	StatusPending Status = "pending"

	// StatusRunning means the task is currently executing.
	StatusRunning Status = "running"

	// StatusCompleted means the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed means the task finished with an error or was cancelled.
	StatusFailed Status = "failed"

	// StatusPaused means the task is held and will not be dequeued.
	StatusPaused Status = "paused"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is a unit of requested work.
//
// The identifier is immutable once assigned, status transitions are
// monotonic (pending -> running -> terminal, with pending -> failed on
// cancellation), and ActualTokens is set at most once, at completion.
// Only the scheduler mutates a Task after creation.
type Task struct {
	// ID is the opaque unique identifier assigned at submission.
	ID string `json:"id"`

	// Name is a short human-readable label.
	Name string `json:"name"`

	// Category selects the rate-limit budget this task draws from.
	Category Category `json:"category"`

	// Priority orders the task within the pending queue.
	Priority Priority `json:"priority"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Instructions is the free-text payload handed to the executor.
	Instructions string `json:"instructions"`

	// Capabilities is the allow-list of capability names the executor
	// may use while running this task.
	Capabilities []string `json:"capabilities,omitempty"`

	// EstimatedTokens is the submitter's token cost estimate. It is what
	// admission checks and the provisional rate-limit debit are based on.
	EstimatedTokens int `json:"estimated_tokens"`

	// ActualTokens is the measured token cost, set once at completion.
	ActualTokens int `json:"actual_tokens,omitempty"`

	// Duration is the wall-clock execution time, set at completion.
	Duration time.Duration `json:"duration,omitempty"`

	// Result is the executor's output payload on success.
	Result string `json:"result,omitempty"`

	// Error is the failure reason when Status is failed.
	Error string `json:"error,omitempty"`

	// CreatedAt is when the task was submitted.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at,omitzero"`

	// CompletedAt is when the task reached a terminal status.
	CompletedAt time.Time `json:"completed_at,omitzero"`

	// CreatedBy identifies the submitter.
	CreatedBy string `json:"created_by,omitempty"`

	// Metadata is an open key-value bag attached at submission.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Spec is the caller-supplied description of a task to submit.
type Spec struct {
	Name            string            `json:"name"`
	Category        Category          `json:"category"`
	Priority        Priority          `json:"priority"`
	Instructions    string            `json:"instructions"`
	Capabilities    []string          `json:"capabilities,omitempty"`
	EstimatedTokens int               `json:"estimated_tokens"`
	CreatedBy       string            `json:"created_by,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Validate checks that the spec carries everything submission requires.
func (s *Spec) Validate() error {
	if s.Instructions == "" {
		return fmt.Errorf("instructions cannot be empty")
	}
	if !s.Category.Valid() {
		return fmt.Errorf("unknown category %q", s.Category)
	}
	if s.Priority < PriorityLow || s.Priority > PriorityUrgent {
		return fmt.Errorf("priority %d out of range", s.Priority)
	}
	if s.EstimatedTokens < 0 {
		return fmt.Errorf("estimated tokens cannot be negative")
	}
	return nil
}
