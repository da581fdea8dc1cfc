package task

import (
	"sync"
	"time"
)

// JobStatus is the lifecycle state of a Job.
//
// Cancellation is modeled as "cancelled" at the Job level but surfaced as a
// failed Task with a cancellation reason; the asymmetry is deliberate and
// kept for compatibility with the status query surface.
type JobStatus string

const (
	// JobQueued means the job exists but execution has not started.
	JobQueued JobStatus = "queued"

	// JobRunning means the executor is working on the task.
	JobRunning JobStatus = "running"

	// JobCompleted means execution finished successfully.
	JobCompleted JobStatus = "completed"

	// JobFailed means execution finished with an error.
	JobFailed JobStatus = "failed"

	// JobCancelled means the job was cancelled by the caller.
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the job status is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// LogLine is a single timestamped entry in a job's append-only log.
type LogLine struct {
	Time time.Time `json:"time"`
	Text string    `json:"text"`
}

// Job is the transient execution-tracking record for an active task.
//
// Progress is non-decreasing while the job is running and the log is
// append-only. A Job is evicted from the active set after a retention
// delay following its terminal status; eviction is memory hygiene, not a
// correctness requirement.
type Job struct {
	// ID equals the ID of the task this job shadows.
	ID string `json:"id"`

	// Status is the current job state.
	Status JobStatus `json:"status"`

	// Progress is the completion percentage in [0,100].
	Progress int `json:"progress"`

	// Log is the ordered list of progress lines reported so far.
	Log []LogLine `json:"log"`

	// StartedAt is when execution began.
	StartedAt time.Time `json:"started_at"`

	// EndedAt is when the job reached a terminal status.
	EndedAt time.Time `json:"ended_at,omitzero"`

	mu sync.Mutex
}

// NewJob creates a running job for the given task id.
func NewJob(id string) *Job {
	return &Job{
		ID:        id,
		Status:    JobRunning,
		Progress:  0,
		StartedAt: time.Now(),
	}
}

// Update records a progress report from the executor. Progress never moves
// backwards and reports after a terminal status are dropped.
func (j *Job) Update(percent int, line string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status.Terminal() {
		return
	}
	if percent > j.Progress {
		if percent > 100 {
			percent = 100
		}
		j.Progress = percent
	}
	if line != "" {
		j.Log = append(j.Log, LogLine{Time: time.Now(), Text: line})
	}
}

// Finish moves the job to a terminal status. The first terminal transition
// wins; later calls are ignored.
func (j *Job) Finish(status JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.Status.Terminal() {
		return
	}
	j.Status = status
	j.EndedAt = time.Now()
	if status == JobCompleted {
		j.Progress = 100
	}
}

// View returns a copy of the job safe to serialize without holding locks.
func (j *Job) View() JobView {
	j.mu.Lock()
	defer j.mu.Unlock()

	logCopy := make([]LogLine, len(j.Log))
	copy(logCopy, j.Log)

	return JobView{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Log:       logCopy,
		StartedAt: j.StartedAt,
		EndedAt:   j.EndedAt,
	}
}

// JobView is an immutable snapshot of a Job.
type JobView struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Log       []LogLine `json:"log"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}
