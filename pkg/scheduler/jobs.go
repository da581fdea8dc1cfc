package scheduler

import (
	"sort"
	"sync"
	"time"

	"warden-hq/taskwarden/pkg/task"
)

// defaultJobRetention is how long a terminal job stays visible in the
// active set before eviction.
const defaultJobRetention = 5 * time.Minute

// jobSet tracks active and recently finished jobs by task id.
type jobSet struct {
	mu        sync.Mutex
	jobs      map[string]*task.Job
	retention time.Duration
}

func newJobSet(retention time.Duration) *jobSet {
	if retention <= 0 {
		retention = defaultJobRetention
	}
	return &jobSet{
		jobs:      make(map[string]*task.Job),
		retention: retention,
	}
}

// Add registers a job under its task id.
func (s *jobSet) Add(j *task.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[j.ID] = j
}

// Get returns the job for a task id.
func (s *jobSet) Get(id string) (*task.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	return j, ok
}

// Views snapshots all tracked jobs, ordered by start time.
func (s *jobSet) Views() []task.JobView {
	s.mu.Lock()
	defer s.mu.Unlock()

	views := make([]task.JobView, 0, len(s.jobs))
	for _, j := range s.jobs {
		views = append(views, j.View())
	}
	sort.Slice(views, func(i, j int) bool {
		return views[i].StartedAt.Before(views[j].StartedAt)
	})
	return views
}

// ScheduleEviction removes the job after the retention delay. Eviction is
// memory hygiene; callers must not rely on the job staying queryable.
func (s *jobSet) ScheduleEviction(id string) {
	time.AfterFunc(s.retention, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.jobs, id)
	})
}
