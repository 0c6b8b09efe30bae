package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tubekit/internal/config"
	"tubekit/internal/downloader"
	"tubekit/internal/encoder"
	"tubekit/internal/failure"
	"tubekit/internal/log"
	"tubekit/internal/metrics"
	"tubekit/internal/model"
	"tubekit/internal/progress"
	"tubekit/internal/util"
)

// DownloadService runs download jobs: yt-dlp, an optional H.264 re-encode,
// tagging and the move into the save directory.
type DownloadService struct {
	base
	client *downloader.Client
}

// NewDownloadService constructs a DownloadService. Binary paths default to
// the ones in cfg.
func NewDownloadService(cfg config.Config, opts ...Option) *DownloadService {
	b := newBase(cfg, "download", opts)
	return &DownloadService{base: b, client: downloader.New(b.dlPath, b.runner)}
}

// Run executes job until it is done, failed or cancelled. A restart request
// re-runs it from the start. Updates go to sink.
func (s *DownloadService) Run(ctx context.Context, job *Job, sink Sink) error {
	if job.Kind != KindDownload {
		return fmt.Errorf("download service cannot run %s job %s", job.Kind, job.ID)
	}
	return s.run(ctx, job, sink, s.attempt)
}

func (s *DownloadService) attempt(ctx context.Context, job *Job, sink Sink) (string, error) {
	logger := log.FromContext(ctx)
	emit(job, sink, progress.Update{State: progress.StateWaiting, Percent: 0, Message: "Waiting"})

	workdir, err := util.MakeTempWorkdir(s.tempRoot)
	if err != nil {
		return "", failure.Wrap("create temp dir", err)
	}
	defer removeAll(ctx, workdir)

	req, err := PlanDownload(s.cfg, job, workdir)
	if err != nil {
		return "", err
	}

	path, err := s.download(ctx, job, sink, req)
	if err != nil {
		return "", err
	}
	logger.Debug().Str("file", path).Msg("download finished")

	if needsReencode(s.cfg, job, path) {
		if path, err = s.reencode(ctx, job, sink, path, workdir); err != nil {
			return "", err
		}
	}

	if err := s.writeTags(ctx, path, job.Source.DefaultTags()); err != nil {
		return "", err
	}

	emit(job, sink, progress.Update{State: progress.StateMoving, Percent: 0, Message: "Moving"})
	dir, err := s.destination(job)
	if err != nil {
		return "", failure.Wrap("resolve destination", err)
	}
	final, err := s.alloc.Place(ctx, path, dir, filepath.Base(path))
	if err != nil {
		return "", err
	}

	if job.Thumbnail && !job.AudioOnly {
		s.thumbnail(ctx, final, job)
	}
	return final, nil
}

// download invokes yt-dlp, retrying failed or empty results when enabled.
// Network failures and cancellation end the loop at once.
func (s *DownloadService) download(ctx context.Context, job *Job, sink Sink, req downloader.Request) (string, error) {
	attempts := 1
	if s.cfg.RetryDownloads {
		attempts += s.cfg.DownloadRetries
	}
	speed := &rate.Sometimes{Interval: time.Second}
	onUpdate := func(u progress.Update) {
		u.State = progress.StateLoading
		if u.Speed != "" {
			speed.Do(func() { job.Tracker.SetSpeed(u.Speed) })
		}
		emit(job, sink, u)
	}

	var lastErr error
	for n := 1; n <= attempts; n++ {
		if n > 1 {
			metrics.DownloadRetried()
			log.FromContext(ctx).Warn().Err(lastErr).Int("attempt", n).Int("of", attempts).Msg("retrying download")
			job.Tracker.ResetProgress()
			emit(job, sink, progress.Update{State: progress.StateLoading, Percent: 0, Message: fmt.Sprintf("Retrying (%d/%d)", n-1, attempts-1)})
		} else {
			emit(job, sink, progress.Update{State: progress.StateLoading, Percent: 0, Message: "Downloading"})
		}
		clearWorkdir(ctx, req.WorkDir)

		path, err := s.client.Download(ctx, req, onUpdate)
		if err == nil {
			return path, nil
		}
		lastErr = err
		switch failure.KindOf(err) {
		case failure.KindCancelled, failure.KindNoNetwork:
			return "", err
		case failure.KindToolFailed:
			continue
		default:
			return "", err
		}
	}
	if attempts == 1 {
		return "", lastErr
	}
	return "", failure.New(failure.KindToolFailed, "download", fmt.Errorf("failed after %d attempts: %w", attempts, lastErr))
}

// reencode converts a downloaded video to H.264 mp4. The section cut was
// already applied by yt-dlp, so no range is passed on.
func (s *DownloadService) reencode(ctx context.Context, job *Job, sink Sink, path, workdir string) (string, error) {
	emit(job, sink, progress.Update{State: progress.StateConverting, Percent: 0, Message: "Converting"})

	info, err := encoder.Probe(ctx, s.runner, s.ffprobePath, path)
	if err != nil {
		if failure.IsCancelled(err) {
			return "", err
		}
		log.FromContext(ctx).Warn().Err(err).Msg("probe failed, encoding without source info")
		info = model.MediaInfo{DurationSec: job.Source.Duration.Seconds()}
		if job.trimmed() {
			info.DurationSec = job.Range.Length().Seconds()
		}
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(workdir, "encoded", stem+".mp4")
	in := encoder.ArgInput{
		InputPath:   path,
		OutputPath:  out,
		Info:        info,
		Preset:      reencodePreset(s.cfg),
		AutoThreads: s.cfg.AutoThreads,
		Threads:     s.cfg.Threads,
	}
	if err := s.encodeWithFallback(ctx, job, sink, in); err != nil {
		return "", err
	}
	if err := util.RemoveIfExists(path); err != nil {
		log.FromContext(ctx).Warn().Err(err).Str("file", path).Msg("remove pre-encode download")
	}
	return out, nil
}

func (s *DownloadService) destination(job *Job) (string, error) {
	if job.OutputDir != "" {
		return job.OutputDir, nil
	}
	if job.AudioOnly {
		return s.paths.AudioDir()
	}
	return s.paths.VideoDir()
}

// thumbnail writes <stem>.jpg next to the video. Failures are only logged.
func (s *DownloadService) thumbnail(ctx context.Context, video string, job *Job) {
	at := 1.0
	if d := job.Source.Duration.Seconds(); d > 0 && d < 2 {
		at = d / 2
	}
	out := strings.TrimSuffix(video, filepath.Ext(video)) + ".jpg"
	if err := s.newEncoder().ExtractThumbnail(ctx, video, out, at); err != nil {
		log.FromContext(ctx).Warn().Err(err).Str("file", video).Msg("thumbnail failed")
	}
}

// clearWorkdir removes leftovers of a previous attempt so that file
// selection only sees the current one.
func clearWorkdir(ctx context.Context, dir string) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := util.RemoveIfExists(m); err != nil {
			log.FromContext(ctx).Debug().Err(err).Str("file", m).Msg("clear workdir")
		}
	}
}
