package scheduler

import (
	"context"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Request is the execution order handed to an Executor.
type Request struct {
	// TaskID identifies the task being executed.
	TaskID string

	// Instructions is the free-text work description.
	Instructions string

	// Capabilities is the allow-list of capability names the executor
	// may exercise for this request.
	Capabilities []string

	// Category is the budget class the task was admitted under.
	Category task.Category

	// Metadata carries the task's open key-value bag.
	Metadata map[string]string
}

// Result is what an Executor returns on success.
type Result struct {
	// Output is the produced payload.
	Output string

	// TokensUsed is the measured token consumption.
	TokensUsed int

	// Duration is how long execution took.
	Duration time.Duration
}

// ProgressFunc receives progress reports during execution. percent is a
// completion percentage in [0,100]; line, when non-empty, is appended to
// the job log. Implementations may call it from any goroutine.
type ProgressFunc func(percent int, line string)

// Executor performs the actual work of a task. Implementations should
// honor ctx cancellation on a best-effort basis and may report progress
// through the callback, which is never nil.
type Executor interface {
	Execute(ctx context.Context, req Request, progress ProgressFunc) (*Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request, progress ProgressFunc) (*Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request, progress ProgressFunc) (*Result, error) {
	return f(ctx, req, progress)
}
