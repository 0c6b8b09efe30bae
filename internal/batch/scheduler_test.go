package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tubekit/internal/failure"
	"tubekit/internal/model"
	"tubekit/internal/pipeline"
	"tubekit/internal/progress"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func downloadJobs(n int) []*pipeline.Job {
	jobs := make([]*pipeline.Job, n)
	for i := range jobs {
		jobs[i] = pipeline.NewDownloadJob(model.MediaSource{URL: fmt.Sprintf("https://example.com/%d", i)}, "best", false)
	}
	return jobs
}

// finish emits the updates a real service would and marks the tracker.
func finish(job *pipeline.Job, sink pipeline.Sink, path string, err error) error {
	switch {
	case err == nil:
		job.Tracker.SetState(progress.StateDone)
		sink(progress.Update{JobID: job.ID, State: progress.StateDone, Percent: 100, Path: path})
	case failure.IsCancelled(err):
		job.Tracker.SetState(progress.StateCancelled)
		sink(progress.Update{JobID: job.ID, State: progress.StateCancelled, Err: err})
	default:
		job.Tracker.SetState(progress.StateFailed)
		sink(progress.Update{JobID: job.ID, State: progress.StateFailed, Err: err})
	}
	return err
}

func TestScheduler_BoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	runner := RunnerFunc(func(ctx context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		sink(progress.Update{JobID: job.ID, State: progress.StateLoading, Percent: 50})
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return finish(job, sink, "", nil)
	})

	rec := &progress.Recorder{}
	s := &Scheduler{Download: runner, Reporter: rec}
	sum := s.Run(context.Background(), downloadJobs(10), 3)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.Equal(t, 10, sum.Completed)
	assert.Equal(t, "10 items completed", sum.Message())
	assert.Len(t, rec.Results, 10)
	assert.Len(t, rec.Updates, 20)
}

func TestScheduler_ClassifiesFailures(t *testing.T) {
	errs := []error{
		nil,
		&fs.PathError{Op: "open", Path: "/x", Err: fs.ErrPermission},
		failure.New(failure.KindInsufficientDiskSpace, "move", errors.New("disk full")),
		failure.New(failure.KindInsufficientDiskSpace, "move", errors.New("disk full")),
		failure.New(failure.KindDirectoryNotFound, "move", errors.New("gone")),
		failure.New(failure.KindToolFailed, "ffmpeg", errors.New("exit 1")),
		failure.New(failure.KindCancelled, "yt-dlp", context.Canceled),
	}
	jobs := downloadJobs(len(errs))
	byID := map[string]error{}
	for i, j := range jobs {
		byID[j.ID] = errs[i]
	}

	var notified []Summary
	var mu sync.Mutex
	s := &Scheduler{
		Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
			return finish(job, sink, "", byID[job.ID])
		}),
		Notifier: NotifierFunc(func(sum Summary) {
			mu.Lock()
			defer mu.Unlock()
			notified = append(notified, sum)
		}),
	}
	sum := s.Run(context.Background(), jobs, 2)

	want := map[Category]int{
		CategoryUnauthorizedAccess: 1,
		CategoryNotEnoughSpace:     2,
		CategoryDirectoryNotFound:  1,
		CategoryOther:              1,
	}
	if diff := cmp.Diff(want, sum.Failures); diff != "" {
		t.Errorf("failures mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, sum.Completed)
	assert.Equal(t, 5, sum.Failed)
	assert.Equal(t, 1, sum.Cancelled)
	assert.Equal(t, "5 of 6 items failed (1 access denied, 1 directory not found, 2 not enough space, 1 other errors)", sum.Message())
	require.Len(t, notified, 1)
	assert.Equal(t, sum, notified[0])
}

func TestScheduler_SkipsRemovedAndCancelled(t *testing.T) {
	jobs := downloadJobs(4)
	jobs[1].Remove()
	jobs[2].Cancel(false)

	var ran sync.Map
	rec := &progress.Recorder{}
	s := &Scheduler{Reporter: rec, Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		ran.Store(job.ID, true)
		return finish(job, sink, "", nil)
	})}
	sum := s.Run(context.Background(), jobs, 2)

	assert.Equal(t, 2, sum.Completed)
	assert.Equal(t, 2, sum.Skipped)
	for _, j := range jobs[1:3] {
		_, ok := ran.Load(j.ID)
		assert.False(t, ok)
		assert.Equal(t, progress.StateCancelled, j.Tracker.State())
		assert.True(t, j.Tracker.IsCancelledOrFailed())
		assert.Equal(t, []progress.State{progress.StateCancelled}, rec.States(j.ID))
	}

	results := map[string]progress.Result{}
	for _, r := range rec.Results {
		results[r.JobID] = r
	}
	require.Len(t, results, 4, "every job reports a result")
	assert.Equal(t, progress.StateCancelled, results[jobs[2].ID].State)
	assert.True(t, failure.IsCancelled(results[jobs[2].ID].Err))
	_, err := jobs[2].Result()
	assert.True(t, failure.IsCancelled(err))
}

func TestScheduler_CancelWhileQueued(t *testing.T) {
	jobs := downloadJobs(3)
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	rec := &progress.Recorder{}
	s := &Scheduler{Reporter: rec, Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		if job == jobs[0] {
			started <- struct{}{}
			<-release
		}
		return finish(job, sink, "", nil)
	})}

	done := make(chan Summary, 1)
	go func() { done <- s.Run(context.Background(), jobs, 1) }()
	<-started
	jobs[2].Cancel(false)
	assert.Equal(t, progress.StateCancelled, jobs[2].Tracker.State(), "cancelled before its slot frees up")
	close(release)

	var sum Summary
	select {
	case sum = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not finish")
	}
	assert.Equal(t, 2, sum.Completed)
	assert.Equal(t, 1, sum.Skipped)
	snap := jobs[2].Tracker.Snapshot()
	assert.Equal(t, progress.StateCancelled, snap.State)
	assert.True(t, snap.IsCancelledOrFailed)
	assert.Equal(t, []progress.State{progress.StateCancelled}, rec.States(jobs[2].ID))
}

func TestScheduler_CancelAllSuppressesNotification(t *testing.T) {
	started := make(chan struct{}, 10)
	s := &Scheduler{}
	s.Download = RunnerFunc(func(ctx context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		started <- struct{}{}
		<-ctx.Done()
		return finish(job, sink, "", failure.New(failure.KindCancelled, "yt-dlp", ctx.Err()))
	})
	notified := false
	s.Notifier = NotifierFunc(func(Summary) { notified = true })

	jobs := downloadJobs(5)
	rec := &progress.Recorder{}
	s.Reporter = rec
	done := make(chan Summary, 1)
	go func() { done <- s.Run(context.Background(), jobs, 2) }()

	<-started
	<-started
	s.CancelAll()

	var sum Summary
	select {
	case sum = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch did not stop after CancelAll")
	}
	assert.True(t, sum.CancelledAll)
	assert.Equal(t, 2, sum.Cancelled)
	assert.Equal(t, 3, sum.Skipped)
	assert.Len(t, rec.Results, 5)
	assert.False(t, notified)
	for _, j := range jobs {
		assert.True(t, j.Cancelled())
		assert.Equal(t, progress.StateCancelled, j.Tracker.State(), j.Label())
		assert.True(t, j.Tracker.IsCancelledOrFailed(), j.Label())
	}
}

func TestScheduler_DispatchesByKindAndReportsResults(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "clip_converted.mp4")
	require.NoError(t, os.WriteFile(out, []byte("12345"), 0o644))

	var downloads, converts atomic.Int32
	rec := &progress.Recorder{}
	s := &Scheduler{
		Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
			downloads.Add(1)
			return finish(job, sink, "", nil)
		}),
		Convert: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
			converts.Add(1)
			return finish(job, sink, out, nil)
		}),
		Reporter: rec,
	}
	conv := pipeline.NewConvertJob(model.MediaSource{Path: "clip.mkv"}, model.ConversionPreset{Name: "MP4", Format: "mp4"})
	q := NewQueue(append(downloadJobs(2), conv)...)

	sum := s.RunQueue(context.Background(), q, 3, true)
	assert.Equal(t, 3, sum.Completed)
	assert.Equal(t, int32(2), downloads.Load())
	assert.Equal(t, int32(1), converts.Load())
	assert.Equal(t, 0, q.Len(), "completed jobs are purged")

	var res progress.Result
	for _, r := range rec.Results {
		if r.JobID == conv.ID {
			res = r
		}
	}
	assert.Equal(t, out, res.OutputPath)
	assert.Equal(t, int64(5), res.Bytes)
}

func TestScheduler_MissingRunnerIsAFailure(t *testing.T) {
	s := &Scheduler{}
	sum := s.Run(context.Background(), downloadJobs(1), 1)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Failures[CategoryOther])
}

func TestScheduler_RemovesEmptyTempRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.MkdirAll(root, 0o755))
	s := &Scheduler{TempRoot: root, Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		return finish(job, sink, "", nil)
	})}
	s.Run(context.Background(), downloadJobs(1), 1)
	_, err := os.Stat(root)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}

func TestScheduler_SweepsStaleTempDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "temp")
	stale := filepath.Join(root, uuid.NewString())
	fresh := filepath.Join(root, uuid.NewString())
	other := filepath.Join(root, "keep")
	for _, d := range []string{stale, fresh, other} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(stale, "part.webm"), []byte("x"), 0o644))
	old := time.Now().Add(-2 * staleTempAge)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Chtimes(other, old, old))

	s := &Scheduler{TempRoot: root, Download: RunnerFunc(func(_ context.Context, job *pipeline.Job, sink pipeline.Sink) error {
		return finish(job, sink, "", nil)
	})}
	s.Run(context.Background(), downloadJobs(1), 1)

	_, err := os.Stat(stale)
	assert.True(t, errors.Is(err, fs.ErrNotExist), "stale job dir is removed")
	assert.DirExists(t, fresh)
	assert.DirExists(t, other)
}

func TestQueue_Remove(t *testing.T) {
	jobs := downloadJobs(3)
	q := NewQueue(jobs...)
	assert.True(t, q.Remove(jobs[1].ID))
	assert.False(t, q.Remove(jobs[1].ID))
	assert.Equal(t, 2, q.Len())
	assert.True(t, jobs[1].Removed())
}
