package scheduler

import (
	"context"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// Start launches the processing loop. It returns immediately; the loop
// runs until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	go s.run(ctx)
}

// Stop halts the processing loop and waits for an in-flight task to
// finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})
	<-s.done
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("processing loop started")

	for {
		if s.stopped(ctx) {
			s.logger.Info("processing loop stopped")
			return
		}

		t := s.queue.Pop()
		if t == nil {
			s.sleep(ctx, s.pollInterval)
			continue
		}
		s.metrics.QueueDepth(s.queue.Len())

		// The queue can still hold a task that was cancelled between
		// Pop calls; skip anything already terminal.
		if current, ok := s.Task(t.ID); ok && current.Status.Terminal() {
			continue
		}

		// Admission is re-checked at execution time: the window that
		// admitted the task at submission may have filled up since.
		admitted := s.limiter.Admit(t.Category, t.EstimatedTokens)
		reason := "rate limit window exhausted"
		if admitted {
			var ok bool
			ok, reason = s.ledger.CanConsume(t.EstimatedTokens, t.Category)
			admitted = ok
		}

		if !admitted {
			s.metrics.Admission(string(t.Category), false)
			s.queue.Requeue(t)
			s.metrics.QueueDepth(s.queue.Len())
			s.logger.Debug("task deferred by budget check",
				"task_id", t.ID,
				"category", t.Category,
				"reason", reason)
			s.sleep(ctx, s.denialBackoff)
			continue
		}

		s.metrics.Admission(string(t.Category), true)
		s.execute(ctx, t)
		s.sleep(ctx, s.pauseBetween)
	}
}

// execute runs a single task synchronously. Failures are absorbed into the
// task record; the loop never stops because a task failed.
func (s *Scheduler) execute(ctx context.Context, t *task.Task) {
	s.setProcessing(true)
	defer s.setProcessing(false)

	job := task.NewJob(t.ID)
	s.jobs.Add(job)

	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	t.Status = task.StatusRunning
	t.StartedAt = time.Now()
	s.cancels[t.ID] = cancel
	s.mu.Unlock()
	s.persist(ctx, t)

	// Debit the estimate before execution starts. The debit is
	// provisional and is not reconciled against actual usage.
	s.limiter.RecordUsage(ctx, t.Category, t.EstimatedTokens)

	s.logger.Info("task started",
		"task_id", t.ID,
		"category", t.Category,
		"estimated_tokens", t.EstimatedTokens)

	start := time.Now()
	result, err := s.executor.Execute(execCtx, Request{
		TaskID:       t.ID,
		Instructions: t.Instructions,
		Capabilities: t.Capabilities,
		Category:     t.Category,
		Metadata:     t.Metadata,
	}, job.Update)
	elapsed := time.Since(start)

	s.mu.Lock()
	delete(s.cancels, t.ID)

	// Cancel already finished the task and the job; leave both as the
	// cancellation wrote them.
	if t.Status.Terminal() {
		s.mu.Unlock()
		s.metrics.Execution("cancelled", elapsed)
		s.jobs.ScheduleEviction(t.ID)
		return
	}

	if err != nil {
		s.finishLocked(t, task.StatusFailed, err.Error())
		t.Duration = elapsed
		s.mu.Unlock()

		job.Finish(task.JobFailed)
		s.metrics.Execution("failed", elapsed)
		s.persist(ctx, t)
		s.jobs.ScheduleEviction(t.ID)
		s.logger.Warn("task failed", "task_id", t.ID, "error", err)
		return
	}

	t.Status = task.StatusCompleted
	t.Result = result.Output
	t.ActualTokens = result.TokensUsed
	t.Duration = elapsed
	t.CompletedAt = time.Now()
	s.mu.Unlock()

	job.Finish(task.JobCompleted)
	s.metrics.Execution("completed", elapsed)
	s.metrics.TokensRecorded(string(t.Category), result.TokensUsed)

	s.ledger.Record(ctx, s.service, result.TokensUsed, t.Category, "task-execution",
		map[string]string{"task_id": t.ID})

	s.persist(ctx, t)
	s.jobs.ScheduleEviction(t.ID)

	s.logger.Info("task completed",
		"task_id", t.ID,
		"actual_tokens", result.TokensUsed,
		"duration", elapsed)
}

// sleep waits for d unless the loop is asked to stop first.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	case <-s.stop:
	}
}

func (s *Scheduler) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-s.stop:
		return true
	default:
		return false
	}
}
