// Package encoder builds and runs ffmpeg conversions and probes media with ffprobe.
package encoder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tubekit/internal/failure"
	"tubekit/internal/log"
	"tubekit/internal/progress"
	"tubekit/internal/util"
)

// Encoder runs ffmpeg through a CmdRunner.
type Encoder struct {
	FFmpegPath string
	Runner     util.CmdRunner
}

// New returns an Encoder; a nil runner uses the default process runner.
func New(ffmpegPath string, runner util.CmdRunner) *Encoder {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &Encoder{FFmpegPath: ffmpegPath, Runner: runner}
}

// Encode converts in.InputPath to in.OutputPath. Progress is reported as
// Converting updates; a failed run removes the partial output.
func (e *Encoder) Encode(ctx context.Context, in ArgInput, jobID string, onUpdate func(progress.Update)) error {
	if e.FFmpegPath == "" {
		return errors.New("ffmpeg path is required")
	}
	if in.OutputPath == "" {
		return errors.New("output path is required")
	}
	if err := util.EnsureDir(filepath.Dir(in.OutputPath)); err != nil {
		return failure.Wrap("ensure output dir", err)
	}

	total := in.Info.DurationSec
	if in.Trimmed() {
		total = in.Range.Length().Seconds()
	}
	in.Progress = true

	var ps ProgressState
	emit := func(u progress.Update) {
		if onUpdate != nil {
			onUpdate(u)
		}
	}

	log.FromContext(ctx).Info().
		Str("input", in.InputPath).
		Str("output", in.OutputPath).
		Str("preset", in.Effective().Name).
		Bool("software", in.ForceSoftware).
		Msg("encode start")

	_, err := e.Runner.Run(ctx, util.CmdSpec{
		Path: e.FFmpegPath,
		Args: BuildArgs(in),
		StdoutLine: func(line string) {
			if u, ok := ps.UpdateFromLine(line, jobID, total); ok {
				emit(u)
			}
		},
		StderrLine: func(line string) {
			if pct, ok := ParseTimeProgress(line, total); ok {
				emit(progress.Update{JobID: jobID, State: progress.StateConverting, Percent: pct, Message: "Converting"})
			}
		},
	})
	if err != nil {
		_ = util.RemoveIfExists(in.OutputPath)
		return err
	}

	fi, err := os.Stat(in.OutputPath)
	if err != nil || fi.Size() == 0 {
		_ = util.RemoveIfExists(in.OutputPath)
		return failure.New(failure.KindToolFailed, "encode", fmt.Errorf("ffmpeg produced no output at %s", in.OutputPath))
	}
	return nil
}

// ExtractThumbnail writes one JPEG frame of inputPath to outputPath.
func (e *Encoder) ExtractThumbnail(ctx context.Context, inputPath, outputPath string, atSec float64) error {
	_, err := e.Runner.Run(ctx, util.CmdSpec{
		Path: e.FFmpegPath,
		Args: ExtractThumbnailArgs(inputPath, outputPath, atSec),
	})
	if err != nil {
		return fmt.Errorf("extract thumbnail: %w", err)
	}
	return nil
}
