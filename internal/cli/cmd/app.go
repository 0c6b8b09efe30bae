package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tubekit/internal/batch"
	"tubekit/internal/config"
	"tubekit/internal/dirs"
	"tubekit/internal/log"
	"tubekit/internal/metrics"
	"tubekit/internal/pipeline"
	"tubekit/internal/presets"
	"tubekit/internal/progress"
	"tubekit/internal/ui"
	"tubekit/internal/util"
	"tubekit/internal/util/deps"
	"tubekit/internal/util/format"
)

// app carries what every command shares once settings are loaded.
type app struct {
	store *config.ViperStore
	cfg   config.Config
	noUI  bool
}

type tools struct {
	downloader string
	ffmpeg     string
	ffprobe    string
}

// findTools resolves the external binaries. The downloader is only looked up
// when the command needs it.
func (a *app) findTools(withDownloader bool) (tools, error) {
	var t tools
	var err error
	if withDownloader {
		if t.downloader, err = deps.FindDownloader(a.cfg.DLBinary); err != nil {
			return t, &ExitError{Code: ExitMissingDep, Err: err}
		}
	}
	if t.ffmpeg, err = deps.FindFFmpeg(a.cfg.FFmpegBinary); err != nil {
		return t, &ExitError{Code: ExitMissingDep, Err: err}
	}
	if t.ffprobe, err = deps.FindFFprobe(a.cfg.FFprobeBinary); err != nil {
		return t, &ExitError{Code: ExitMissingDep, Err: err}
	}
	return t, nil
}

func (a *app) tempRoot() string {
	if a.cfg.TempDir != "" {
		return a.cfg.TempDir
	}
	if d, err := dirs.TempBaseDir(); err == nil {
		return d
	}
	return util.DefaultTempRoot()
}

func (a *app) presetStore() (*presets.Store, error) {
	path, err := dirs.PresetsPath()
	if err != nil {
		return nil, &ExitError{Code: ExitCLIError, Err: fmt.Errorf("locate presets: %w", err)}
	}
	return presets.Open(path), nil
}

func (a *app) scheduler(t tools) *batch.Scheduler {
	root := a.tempRoot()
	opts := []pipeline.Option{
		pipeline.WithDownloaderPath(t.downloader),
		pipeline.WithFFmpegPath(t.ffmpeg),
		pipeline.WithFFprobePath(t.ffprobe),
		pipeline.WithTempRoot(root),
	}
	return &batch.Scheduler{
		Download: pipeline.NewDownloadService(a.cfg, opts...),
		Convert:  pipeline.NewConvertService(a.cfg, opts...),
		TempRoot: root,
	}
}

// runJobs runs jobs as one batch, in the TUI when stdout is a terminal, and
// maps failures onto exit codes.
func (a *app) runJobs(cmd *cobra.Command, title string, t tools, jobs []*pipeline.Job) error {
	ctx := cmd.Context()
	s := a.scheduler(t)
	q := batch.NewQueue()
	q.Add(jobs...)

	var sum batch.Summary
	if !a.noUI && term.IsTerminal(int(os.Stdout.Fd())) {
		// keep log lines from tearing up the TUI
		if zerolog.GlobalLevel() < zerolog.WarnLevel {
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		}
		var err error
		sum, err = ui.Run(ctx, ui.Batch{
			Title: title,
			Jobs:  jobs,
			Start: func(ctx context.Context, rep progress.Reporter) batch.Summary {
				s.Reporter = rep
				return s.RunQueue(ctx, q, a.cfg.MaxConcurrency, a.cfg.RemoveCompleted)
			},
			CancelAll: s.CancelAll,
		})
		if err != nil {
			return &ExitError{Code: ExitCLIError, Err: err}
		}
		fmt.Fprintln(cmd.OutOrStdout(), sum.Message())
	} else {
		s.Notifier = batch.LogNotifier{}
		sum = runPlain(ctx, cmd.OutOrStdout(), s, q, a.cfg.MaxConcurrency, a.cfg.RemoveCompleted)
	}

	a.writeMetrics()
	return exitFor(sum, jobs)
}

// runPlain prints one line per state change and per finished job.
func runPlain(ctx context.Context, w io.Writer, s *batch.Scheduler, q *batch.Queue, maxConcurrency int, removeCompleted bool) batch.Summary {
	labels := map[string]string{}
	for _, j := range q.Jobs() {
		labels[j.ID] = j.Label()
	}

	rep := progress.NewChannelReporter(ctx, 256)
	s.Reporter = rep
	done := make(chan batch.Summary, 1)
	go func() {
		done <- s.RunQueue(ctx, q, maxConcurrency, removeCompleted)
		rep.Close()
	}()

	last := map[string]progress.State{}
	for ev := range rep.Events() {
		switch {
		case ev.Update != nil:
			u := ev.Update
			if last[u.JobID] == u.State || u.State.IsTerminal() {
				continue
			}
			last[u.JobID] = u.State
			fmt.Fprintf(w, "[%s] %s\n", labels[u.JobID], u.State)
		case ev.Result != nil:
			fmt.Fprintln(w, resultLine(labels[ev.Result.JobID], *ev.Result))
		}
	}
	sum := <-done
	fmt.Fprintln(w, sum.Message())
	return sum
}

func resultLine(label string, r progress.Result) string {
	switch r.State {
	case progress.StateDone:
		return fmt.Sprintf("[%s] saved: %s (%s)", label, r.OutputPath, format.HumanizeBytes(r.Bytes))
	case progress.StateCancelled:
		return fmt.Sprintf("[%s] cancelled", label)
	default:
		return fmt.Sprintf("[%s] failed: %v", label, r.Err)
	}
}

// exitFor returns nil when nothing failed. Otherwise a failed download wins
// over a failed conversion for the exit code.
func exitFor(sum batch.Summary, jobs []*pipeline.Job) error {
	if sum.Failed == 0 {
		return nil
	}
	code := ExitTranscodeError
	for _, j := range jobs {
		if j.Kind == pipeline.KindDownload && j.Tracker.State() == progress.StateFailed {
			code = ExitDownloadError
			break
		}
	}
	return &ExitError{Code: code, Err: errors.New(sum.Message())}
}

func (a *app) writeMetrics() {
	if a.cfg.MetricsFile == "" {
		return
	}
	logger := log.WithComponent("cli")
	if err := os.MkdirAll(filepath.Dir(a.cfg.MetricsFile), 0o755); err != nil {
		logger.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("metrics dir")
		return
	}
	if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
		logger.Warn().Err(err).Str("path", a.cfg.MetricsFile).Msg("metrics write")
	}
}
