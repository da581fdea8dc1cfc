package scheduler

import (
	"sort"
	"sync"

	"warden-hq/taskwarden/pkg/task"
)

// queue is the pending-task priority queue. Push keeps tasks ordered by
// descending priority with submission order preserved inside a priority
// class; Requeue appends at the back without re-sorting, so a task bounced
// by admission waits behind everything currently queued.
type queue struct {
	mu    sync.Mutex
	items []*task.Task
}

func newQueue() *queue {
	return &queue{}
}

// Push inserts a task in priority position.
func (q *queue) Push(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, t)
	sort.SliceStable(q.items, func(i, j int) bool {
		return q.items[i].Priority > q.items[j].Priority
	})
}

// Requeue appends a task at the back of the queue, regardless of priority.
func (q *queue) Requeue(t *task.Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, t)
}

// Pop removes and returns the head of the queue, or nil when empty.
func (q *queue) Pop() *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	return t
}

// Remove deletes the queued task with the given id and returns it, or nil
// when the id is not queued.
func (q *queue) Remove(id string) *task.Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, t := range q.items {
		if t.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return t
		}
	}
	return nil
}

// Len returns the number of queued tasks.
func (q *queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.items)
}
