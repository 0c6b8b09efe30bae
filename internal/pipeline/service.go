// Package pipeline runs download and conversion jobs: it drives the external
// tools, applies the retry and encoder fallback policies, and moves outputs
// into place while keeping each job's progress current.
package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"tubekit/internal/config"
	"tubekit/internal/dirs"
	"tubekit/internal/encoder"
	"tubekit/internal/failure"
	"tubekit/internal/log"
	"tubekit/internal/metrics"
	"tubekit/internal/model"
	"tubekit/internal/progress"
	"tubekit/internal/relocate"
	"tubekit/internal/tags"
	"tubekit/internal/util"
)

// Sink receives every progress update a service emits. It must not block
// for long; the batch scheduler drains it on its own goroutine.
type Sink func(progress.Update)

// Paths resolves destination directories.
type Paths interface {
	AudioDir() (string, error)
	VideoDir() (string, error)
	// ConvertDir returns where a conversion of source lands.
	ConvertDir(source string) (string, error)
}

// ConfigPaths reads save paths from Config, falling back to the per-user
// media directories and, for conversions, to the source's directory.
type ConfigPaths struct {
	Config config.Config
}

func (p ConfigPaths) AudioDir() (string, error) {
	if p.Config.AudioSavePath != "" {
		return p.Config.AudioSavePath, nil
	}
	return dirs.DefaultAudioDir()
}

func (p ConfigPaths) VideoDir() (string, error) {
	if p.Config.VideoSavePath != "" {
		return p.Config.VideoSavePath, nil
	}
	return dirs.DefaultVideoDir()
}

func (p ConfigPaths) ConvertDir(source string) (string, error) {
	if p.Config.ConvertSavePath != "" {
		return p.Config.ConvertSavePath, nil
	}
	return filepath.Dir(source), nil
}

// base holds what both services share.
type base struct {
	cfg         config.Config
	dlPath      string
	ffmpegPath  string
	ffprobePath string
	runner      util.CmdRunner
	alloc       *relocate.Allocator
	paths       Paths
	tempRoot    string
	logger      zerolog.Logger
}

// Option configures a service.
type Option func(*base)

// WithDownloaderPath sets the yt-dlp binary path.
func WithDownloaderPath(p string) Option {
	return func(b *base) { b.dlPath = p }
}

// WithFFmpegPath sets the ffmpeg binary path.
func WithFFmpegPath(p string) Option {
	return func(b *base) { b.ffmpegPath = p }
}

// WithFFprobePath sets the ffprobe binary path.
func WithFFprobePath(p string) Option {
	return func(b *base) { b.ffprobePath = p }
}

// WithRunner injects a custom command runner (useful for testing).
func WithRunner(r util.CmdRunner) Option {
	return func(b *base) { b.runner = r }
}

// WithAllocator shares one final-path allocator between services.
func WithAllocator(a *relocate.Allocator) Option {
	return func(b *base) { b.alloc = a }
}

// WithPaths overrides destination resolution.
func WithPaths(p Paths) Option {
	return func(b *base) { b.paths = p }
}

// WithTempRoot sets the shared temp tree; per-job directories go below it.
func WithTempRoot(dir string) Option {
	return func(b *base) { b.tempRoot = dir }
}

func newBase(cfg config.Config, component string, opts []Option) base {
	b := base{
		cfg:         cfg,
		dlPath:      cfg.DLBinary,
		ffmpegPath:  cfg.FFmpegBinary,
		ffprobePath: cfg.FFprobeBinary,
		tempRoot:    cfg.TempDir,
		logger:      log.WithComponent(component),
	}
	for _, o := range opts {
		o(&b)
	}
	if b.runner == nil {
		b.runner = util.NewDefaultRunner()
	}
	if b.alloc == nil {
		b.alloc = relocate.NewAllocator()
	}
	if b.paths == nil {
		b.paths = ConfigPaths{Config: cfg}
	}
	if b.tempRoot == "" {
		b.tempRoot = util.DefaultTempRoot()
	}
	return b
}

func (b *base) newEncoder() *encoder.Encoder {
	return encoder.New(b.ffmpegPath, b.runner)
}

func (b *base) tagWriter() tags.Writer {
	return tags.Writer{FFmpegPath: b.ffmpegPath, Runner: b.runner}
}

// emit records u on the job's tracker and forwards it with the tracker's
// view of the percentage, which only ever grows within a phase.
func emit(job *Job, sink Sink, u progress.Update) {
	u.JobID = job.ID
	t := job.Tracker
	if u.State != "" && u.State != t.State() {
		if u.State.IsActive() {
			t.ResetProgress()
		}
		t.SetState(u.State)
	}
	if u.State != progress.StateDone && u.Percent >= 100 {
		// 100 is reserved for the finished job.
		u.Percent = 99.9
	}
	if u.Percent >= 0 {
		t.SetProgress(u.Percent)
	}
	if u.TotalSize != nil {
		t.SetTotalSize(*u.TotalSize)
	}
	u.Percent = t.Percent()
	if sink != nil {
		sink(u)
	}
}

// attempt is the body of one run of a job.
type attempt func(ctx context.Context, job *Job, sink Sink) (string, error)

// run drives a job through attempts until it finishes without a restart
// request, then records the terminal state.
func (b *base) run(ctx context.Context, job *Job, sink Sink, body attempt) error {
	metrics.JobStarted()
	defer metrics.JobStopped()

	for {
		jctx := job.begin(ctx)
		jctx = log.ContextWithJobID(jctx, job.ID)
		logger := log.WithContext(jctx, b.logger)
		jctx = logger.WithContext(jctx)

		job.Tracker.Reset(job.initialState())
		logger.Info().Str("kind", string(job.Kind)).Str("source", job.Label()).Msg("job start")

		path, err := body(jctx, job, sink)
		if job.end() && ctx.Err() == nil {
			logger.Info().Msg("job restart")
			continue
		}
		return b.finish(job, sink, path, err, logger)
	}
}

func (b *base) finish(job *Job, sink Sink, path string, err error, logger zerolog.Logger) error {
	secs := job.elapsed().Seconds()
	switch {
	case err == nil:
		job.setResult(path, nil)
		emit(job, sink, progress.Update{State: progress.StateDone, Percent: 100, Path: path, Message: "Done"})
		metrics.JobFinished(string(job.Kind), "done", secs)
		logger.Info().Str("path", path).Msg("job done")
		return nil
	case failure.IsCancelled(err) || job.Cancelled():
		if !failure.IsCancelled(err) {
			err = failure.New(failure.KindCancelled, string(job.Kind), err)
		}
		job.setResult("", err)
		job.Tracker.MarkCancelledOrFailed()
		emit(job, sink, progress.Update{State: progress.StateCancelled, Percent: -1, Message: "Cancelled", Err: err})
		metrics.JobFinished(string(job.Kind), "cancelled", secs)
		logger.Info().Msg("job cancelled")
		return err
	default:
		job.setResult("", err)
		job.Tracker.MarkCancelledOrFailed()
		emit(job, sink, progress.Update{State: progress.StateFailed, Percent: -1, Message: err.Error(), Err: err})
		metrics.JobFinished(string(job.Kind), "failed", secs)
		logger.Error().Err(err).Str("kind", failure.KindOf(err).String()).Msg("job failed")
		return err
	}
}

// encodeWithFallback runs ffmpeg once and, when a hardware encoder fails and
// the fallback is enabled, once more with the software equivalent.
func (b *base) encodeWithFallback(ctx context.Context, job *Job, sink Sink, in encoder.ArgInput) error {
	onUpdate := func(u progress.Update) { emit(job, sink, u) }
	enc := b.newEncoder()

	err := enc.Encode(ctx, in, job.ID, onUpdate)
	if err == nil || failure.IsCancelled(err) {
		return err
	}
	codec := in.Effective().VideoCodec
	if !b.cfg.FallbackToSoftware || in.ForceSoftware || !encoder.IsHardwareEncoder(codec) {
		return err
	}

	log.FromContext(ctx).Warn().Err(err).
		Str("encoder", codec).
		Str("fallback", encoder.HardwareToSoftwareEncoder(codec)).
		Msg("hardware encode failed, retrying in software")
	metrics.SoftwareFallback(string(job.Kind))

	in.ForceSoftware = true
	job.Tracker.ResetProgress()
	emit(job, sink, progress.Update{State: progress.StateConverting, Percent: 0, Message: "Converting (software)"})
	return enc.Encode(ctx, in, job.ID, onUpdate)
}

// writeTags applies tags in place. Cosmetic failures are logged and
// dropped; destination problems are returned.
func (b *base) writeTags(ctx context.Context, path string, t model.Tags) error {
	err := b.tagWriter().Write(ctx, path, t)
	if err == nil {
		return nil
	}
	if tags.MustPropagate(err) {
		return err
	}
	log.FromContext(ctx).Warn().Err(err).Str("path", path).Msg("tag write failed")
	return nil
}

// removeAll is best-effort temp cleanup.
func removeAll(ctx context.Context, dir string) {
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.FromContext(ctx).Warn().Err(err).Str("dir", dir).Msg("temp cleanup failed")
	}
}
