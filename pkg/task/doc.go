// Package task defines the core data model for automation tasks.
//
// # Overview
//
// A Task is a unit of requested work submitted to the scheduler. Each task
// carries a category (which selects its rate-limit budget), a priority
// (which orders it in the pending queue), an instructions payload, and a
// capability allow-list that constrains what the executor may do.
//
// A Job is the transient runtime-tracking record that shadows a Task while
// it is queued-to-terminal: progress percentage, append-only log lines, and
// start/end timestamps. Jobs are never persisted independently of the Task
// they shadow.
//
// # Lifecycle
//
// Tasks transition pending -> running -> {completed | failed}. A pending
// task may transition directly to failed when cancelled before execution.
// Transitions are monotonic; a terminal task never changes status again.
package task
