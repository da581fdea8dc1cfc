// Package shellexec executes task instructions through an external agent
// command. It is the default Executor wired in by the CLI; embedders can
// substitute anything that satisfies the scheduler's Executor interface.
package shellexec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"warden-hq/taskwarden/pkg/scheduler"
)

// estimateDivisor converts output bytes to an approximate token count.
const estimateDivisor = 4

// Config controls how the runner invokes the agent command.
type Config struct {
	// Command is the executable to run for each task.
	// Default: "claude"
	Command string

	// Args are inserted before the task instructions.
	Args []string

	// WorkDir is the working directory for each invocation. Empty keeps
	// the process working directory.
	WorkDir string

	// Timeout bounds a single execution. Zero means no timeout beyond
	// the caller's context.
	Timeout time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Runner shells out to an agent command, one process per task.
type Runner struct {
	config Config
	logger *slog.Logger
}

// New creates a runner.
func New(cfg Config) *Runner {
	if cfg.Command == "" {
		cfg.Command = "claude"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		config: cfg,
		logger: logger.With("component", "shellexec"),
	}
}

// Execute runs the agent command with the task instructions on stdin.
// The capability allow-list is passed through the environment; honoring
// it is the agent's responsibility. Token usage is estimated from output
// size because the command reports no usage of its own.
func (r *Runner) Execute(ctx context.Context, req scheduler.Request, progress scheduler.ProgressFunc) (*scheduler.Result, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.config.Command, r.config.Args...)
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}
	cmd.Stdin = strings.NewReader(req.Instructions)
	cmd.Env = append(cmd.Environ(),
		"TASKWARDEN_TASK_ID="+req.TaskID,
		"TASKWARDEN_CATEGORY="+string(req.Category),
		"TASKWARDEN_CAPABILITIES="+strings.Join(req.Capabilities, ","),
	)

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	progress(5, fmt.Sprintf("running %s", r.config.Command))
	start := time.Now()

	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("execution aborted: %w", ctxErr)
	}
	if err != nil {
		r.logger.Warn("agent command failed",
			"task_id", req.TaskID,
			"command", r.config.Command,
			"error", err)
		return nil, fmt.Errorf("agent command failed: %w: %s", err, firstLine(out.String()))
	}

	output := out.String()
	progress(95, "agent command finished")

	return &scheduler.Result{
		Output:     output,
		TokensUsed: (len(req.Instructions) + len(output)) / estimateDivisor,
		Duration:   elapsed,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
