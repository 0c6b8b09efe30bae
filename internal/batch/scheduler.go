// Package batch runs queued jobs with bounded concurrency and summarises the
// outcome.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"tubekit/internal/failure"
	"tubekit/internal/log"
	"tubekit/internal/metrics"
	"tubekit/internal/pipeline"
	"tubekit/internal/progress"
)

// Runner executes one job. The pipeline services implement it.
type Runner interface {
	Run(ctx context.Context, job *pipeline.Job, sink pipeline.Sink) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *pipeline.Job, sink pipeline.Sink) error

func (f RunnerFunc) Run(ctx context.Context, job *pipeline.Job, sink pipeline.Sink) error {
	return f(ctx, job, sink)
}

// staleTempAge is how old an abandoned per-job temp directory must be before
// a batch removes it.
const staleTempAge = 24 * time.Hour

// Scheduler dispatches jobs to the download or convert runner.
type Scheduler struct {
	Download Runner
	Convert  Runner

	Reporter progress.Reporter // receives every update and one Result per job
	Notifier Notifier          // told about the finished batch unless it was cancelled

	// TempRoot is swept of stale job directories after the batch and removed
	// if it ends up empty.
	TempRoot string

	mu           sync.Mutex
	cancel       context.CancelFunc
	jobs         []*pipeline.Job
	cancelledAll bool
}

// RunQueue runs every job in q and, when removeCompleted is set, drops the
// successful ones from q afterwards.
func (s *Scheduler) RunQueue(ctx context.Context, q *Queue, maxConcurrency int, removeCompleted bool) Summary {
	sum := s.Run(ctx, q.Jobs(), maxConcurrency)
	if removeCompleted {
		q.RemoveCompleted()
	}
	return sum
}

// Run executes jobs with at most maxConcurrency in flight. Removed and
// cancelled jobs are skipped. A job's error never stops its siblings.
func (s *Scheduler) Run(ctx context.Context, jobs []*pipeline.Job, maxConcurrency int) Summary {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	bctx, cancel := context.WithCancel(log.ContextWithBatchID(ctx, uuid.NewString()))
	defer cancel()
	logger := log.WithContext(bctx, log.WithComponent("batch"))

	s.mu.Lock()
	s.cancel = cancel
	s.jobs = jobs
	s.cancelledAll = false
	s.mu.Unlock()

	updates := make(chan progress.Update, 256)
	forwarded := make(chan struct{})
	go s.forward(updates, forwarded)
	sink := func(u progress.Update) { updates <- u }

	sum := Summary{Total: len(jobs), Failures: map[Category]int{}}
	var mu sync.Mutex
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err == nil:
			sum.Completed++
		case failure.IsCancelled(err):
			sum.Cancelled++
		default:
			sum.Failed++
			c := Categorize(err)
			sum.Failures[c]++
			metrics.BatchFailure(string(c))
		}
	}

	logger.Info().Int("jobs", len(jobs)).Int("max_concurrency", maxConcurrency).Msg("batch start")

	sem := semaphore.NewWeighted(int64(maxConcurrency))
	var wg sync.WaitGroup
	for i, job := range jobs {
		if skip(job) {
			skipped(job, sink)
			sum.Skipped++
			continue
		}
		if err := sem.Acquire(bctx, 1); err != nil {
			for _, rest := range jobs[i:] {
				rest.Cancel(false)
				skipped(rest, sink)
			}
			sum.Skipped += len(jobs) - i
			break
		}
		// State may have changed while waiting for a slot.
		if skip(job) {
			sem.Release(1)
			skipped(job, sink)
			sum.Skipped++
			continue
		}
		runner, err := s.runnerFor(job)
		if err != nil {
			sem.Release(1)
			record(err)
			continue
		}
		wg.Add(1)
		go func(job *pipeline.Job) {
			defer wg.Done()
			defer sem.Release(1)
			record(runner.Run(bctx, job, sink))
		}(job)
	}
	wg.Wait()
	close(updates)
	<-forwarded

	s.mu.Lock()
	sum.CancelledAll = s.cancelledAll
	s.cancel = nil
	s.jobs = nil
	s.mu.Unlock()

	s.cleanupTemp(logger)
	logger.Info().
		Int("completed", sum.Completed).
		Int("failed", sum.Failed).
		Int("cancelled", sum.Cancelled).
		Int("skipped", sum.Skipped).
		Msg("batch finished")

	if s.Notifier != nil && !sum.CancelledAll {
		s.Notifier.Notify(sum)
	}
	return sum
}

// CancelAll stops every job of the running batch and suppresses its
// notification.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelledAll = true
	for _, j := range s.jobs {
		j.Cancel(false)
	}
	if s.cancel != nil {
		s.cancel()
	}
}

func skip(job *pipeline.Job) bool {
	return job.Removed() || job.Cancelled()
}

// skipped reports a job that never ran because it was cancelled in the
// queue, so watchers see it end.
func skipped(job *pipeline.Job, sink pipeline.Sink) {
	if job.Tracker.State() != progress.StateCancelled {
		return
	}
	sink(progress.Update{
		JobID:   job.ID,
		State:   progress.StateCancelled,
		Percent: -1,
		Message: "Cancelled",
		Err:     job.CancelError(),
	})
}

func (s *Scheduler) runnerFor(job *pipeline.Job) (Runner, error) {
	var r Runner
	switch job.Kind {
	case pipeline.KindDownload:
		r = s.Download
	case pipeline.KindConvert:
		r = s.Convert
	}
	if r == nil {
		return nil, fmt.Errorf("no runner for %s job %s", job.Kind, job.ID)
	}
	return r, nil
}

// forward drains updates into the reporter and turns terminal updates into
// results.
func (s *Scheduler) forward(updates <-chan progress.Update, done chan<- struct{}) {
	defer close(done)
	rep := s.Reporter
	if rep == nil {
		rep = progress.Nop{}
	}
	for u := range updates {
		rep.Update(u)
		if !u.State.IsTerminal() {
			continue
		}
		res := progress.Result{JobID: u.JobID, OutputPath: u.Path, State: u.State, Err: u.Err}
		if u.Path != "" {
			if fi, err := os.Stat(u.Path); err == nil {
				res.Bytes = fi.Size()
			}
		}
		rep.Result(res)
	}
}

// cleanupTemp removes per-job directories abandoned by earlier runs, then
// the shared temp tree itself once nothing is left in it. Only uuid-named
// directories older than staleTempAge are touched; younger ones may belong
// to another process sharing the tree.
func (s *Scheduler) cleanupTemp(logger zerolog.Logger) {
	if s.TempRoot == "" {
		return
	}
	entries, err := os.ReadDir(s.TempRoot)
	if err != nil {
		return
	}
	left := len(entries)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := uuid.Parse(e.Name()); err != nil {
			continue
		}
		fi, err := e.Info()
		if err != nil || time.Since(fi.ModTime()) < staleTempAge {
			continue
		}
		dir := filepath.Join(s.TempRoot, e.Name())
		if err := os.RemoveAll(dir); err != nil {
			logger.Debug().Err(err).Str("dir", dir).Msg("stale temp cleanup")
			continue
		}
		logger.Debug().Str("dir", dir).Msg("removed stale temp dir")
		left--
	}
	if left > 0 {
		return
	}
	if err := os.Remove(s.TempRoot); err != nil {
		logger.Debug().Err(err).Str("dir", s.TempRoot).Msg("temp cleanup")
	}
}
