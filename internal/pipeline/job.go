package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tubekit/internal/failure"
	"tubekit/internal/model"
	"tubekit/internal/progress"
)

// Kind tells which orchestrator runs a job.
type Kind string

const (
	KindDownload Kind = "download"
	KindConvert  Kind = "convert"
)

// Job is one unit of work in a batch. Configuration fields are set before the
// job is scheduled; runtime fields are guarded by mu.
type Job struct {
	ID     string
	Kind   Kind
	Source model.MediaSource

	// Download
	Quality     string // "720p", "best" or an audio quality label
	AudioOnly   bool
	AudioFormat string
	Thumbnail   bool

	// Convert
	Preset model.ConversionPreset
	Custom *model.ConversionPreset

	Range     *model.TimeRange
	OutputDir string // overrides the configured save path

	Tracker *progress.Tracker

	mu        sync.Mutex
	cancel    context.CancelFunc
	running   bool
	cancelled bool
	restart   bool
	removed   bool
	finalPath string
	err       error
	started   time.Time
}

// NewDownloadJob returns a job in the Waiting state.
func NewDownloadJob(src model.MediaSource, quality string, audioOnly bool) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Kind:      KindDownload,
		Source:    src,
		Quality:   quality,
		AudioOnly: audioOnly,
		Tracker:   progress.NewTracker(progress.StateWaiting),
	}
}

// NewConvertJob returns a job in the None state.
func NewConvertJob(src model.MediaSource, preset model.ConversionPreset) *Job {
	return &Job{
		ID:      uuid.NewString(),
		Kind:    KindConvert,
		Source:  src,
		Preset:  preset,
		Tracker: progress.NewTracker(progress.StateNone),
	}
}

func (j *Job) initialState() progress.State {
	if j.Kind == KindConvert {
		return progress.StateNone
	}
	return progress.StateWaiting
}

// begin installs a fresh cancel handle derived from parent. A job cancelled
// before it started gets an already-cancelled context.
func (j *Job) begin(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancel = cancel
	j.running = true
	j.restart = false
	j.err = nil
	j.finalPath = ""
	if j.started.IsZero() {
		j.started = time.Now()
	}
	if j.cancelled {
		cancel()
	}
	return ctx
}

// end releases the cancel handle and reports whether a restart was requested
// while the attempt ran.
func (j *Job) end() (restart bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cancel != nil {
		j.cancel()
		j.cancel = nil
	}
	j.running = false
	restart = j.restart
	j.restart = false
	if restart {
		j.cancelled = false
	}
	return restart
}

// Cancel stops the running attempt. With restart the job re-enters its first
// step with a new cancel handle instead of ending as Cancelled. Restarting a
// job that is not running makes it schedulable again. Cancelling a queued job
// marks its tracker Cancelled right away; a finished job keeps its state.
func (j *Job) Cancel(restart bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		j.cancelled = !restart
		switch {
		case restart:
			j.Tracker.Reset(j.initialState())
		case !j.Tracker.State().IsTerminal():
			j.Tracker.SetState(progress.StateCancelled)
			j.Tracker.MarkCancelledOrFailed()
			j.err = j.CancelError()
		}
		return
	}
	j.restart = restart
	j.cancelled = !restart
	if j.cancel != nil {
		j.cancel()
	}
}

// Cancelled reports whether the job was cancelled without a restart.
func (j *Job) Cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

// Remove marks the job as removed from its queue; a scheduler skips it.
func (j *Job) Remove() {
	j.mu.Lock()
	j.removed = true
	j.mu.Unlock()
	j.Cancel(false)
}

// CancelError is the error a job cancelled before it ran reports.
func (j *Job) CancelError() error {
	return failure.New(failure.KindCancelled, string(j.Kind), context.Canceled)
}

// Removed reports whether Remove was called.
func (j *Job) Removed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.removed
}

// Running reports whether an attempt is in flight.
func (j *Job) Running() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// Result returns the final path and error of the last finished attempt.
func (j *Job) Result() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finalPath, j.err
}

func (j *Job) setResult(path string, err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.finalPath = path
	j.err = err
}

func (j *Job) elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started.IsZero() {
		return 0
	}
	return time.Since(j.started)
}

// Label is a short human name for logs and the UI.
func (j *Job) Label() string {
	switch {
	case j.Source.Tags.Title != "":
		return j.Source.Tags.Title
	case j.Source.Title != "":
		return j.Source.Title
	case j.Source.Path != "":
		return j.Source.Path
	default:
		return j.Source.URL
	}
}
