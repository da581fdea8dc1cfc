// Package scheduler runs submitted tasks one at a time in priority order,
// gated by the rate limiter and the usage ledger.
//
// # Lifecycle
//
// Submit validates a task spec and checks admission against the current
// rate-limit window; an admitted task is persisted, queued, and later
// picked up by the processing loop. The loop pops the highest-priority
// pending task, re-checks admission at execution time, and on denial
// requeues the task at the back of the queue before backing off. Tasks the
// loop admits are executed synchronously, so at most one job runs at any
// time.
//
// The estimated token cost is debited from the rate-limit window before
// the executor is invoked. Actual usage is recorded to the ledger on
// completion; the provisional debit is not reconciled against it.
//
// # Concurrency
//
// A single goroutine owns dequeue, admission and execution, which keeps
// the admission check and the debit atomic with respect to each other.
// Submit, Cancel and Status are safe to call from any goroutine; shared
// structures (queue, job set, task index) carry their own locks.
//
// Requeue-on-denial means a starved category can hold a task at the back
// of the queue indefinitely while cheaper work flows past it. That is a
// known property of the design, traded for the simplicity of a single
// serial loop.
package scheduler
