package batch

import (
	"slices"
	"sync"

	"tubekit/internal/pipeline"
	"tubekit/internal/progress"
)

// Queue is the ordered list of jobs a user has added. Safe for concurrent use.
type Queue struct {
	mu   sync.Mutex
	jobs []*pipeline.Job
}

// NewQueue returns a queue holding jobs.
func NewQueue(jobs ...*pipeline.Job) *Queue {
	return &Queue{jobs: slices.Clone(jobs)}
}

// Add appends jobs.
func (q *Queue) Add(jobs ...*pipeline.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, jobs...)
}

// Jobs returns a snapshot of the queue.
func (q *Queue) Jobs() []*pipeline.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.jobs)
}

// Len returns the number of queued jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Remove takes the job with id out of the queue and cancels it.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	var removed *pipeline.Job
	q.jobs = slices.DeleteFunc(q.jobs, func(j *pipeline.Job) bool {
		if j.ID == id {
			removed = j
			return true
		}
		return false
	})
	q.mu.Unlock()
	if removed == nil {
		return false
	}
	removed.Remove()
	return true
}

// RemoveCompleted drops every job that finished successfully and returns
// how many were dropped.
func (q *Queue) RemoveCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	before := len(q.jobs)
	q.jobs = slices.DeleteFunc(q.jobs, func(j *pipeline.Job) bool {
		return j.Tracker.State() == progress.StateDone
	})
	return before - len(q.jobs)
}
