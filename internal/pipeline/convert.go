package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tubekit/internal/config"
	"tubekit/internal/encoder"
	"tubekit/internal/failure"
	"tubekit/internal/log"
	"tubekit/internal/progress"
	"tubekit/internal/util"
	"tubekit/internal/util/media"
)

// ErrSourceModified means a local source no longer matches the fingerprint
// taken when it was added.
var ErrSourceModified = errors.New("source modified since it was added")

// ConvertService runs conversion jobs on local files.
type ConvertService struct {
	base
}

// NewConvertService constructs a ConvertService.
func NewConvertService(cfg config.Config, opts ...Option) *ConvertService {
	return &ConvertService{base: newBase(cfg, "convert", opts)}
}

// Run converts job.Source.Path with the job's preset and moves the result to
// the conversion directory.
func (s *ConvertService) Run(ctx context.Context, job *Job, sink Sink) error {
	if job.Kind != KindConvert {
		return fmt.Errorf("convert service cannot run %s job %s", job.Kind, job.ID)
	}
	return s.run(ctx, job, sink, s.attempt)
}

// VerifySource recomputes the fingerprint of a local source. It is a no-op
// when the source carries none.
func VerifySource(path, fingerprint string) error {
	if fingerprint == "" {
		return nil
	}
	sum, err := util.FileMD5(path)
	if err != nil {
		return failure.Wrap("fingerprint source", err)
	}
	if sum != fingerprint {
		return failure.New(failure.KindOther, "verify source", fmt.Errorf("%w: %s", ErrSourceModified, path))
	}
	return nil
}

func (s *ConvertService) attempt(ctx context.Context, job *Job, sink Sink) (string, error) {
	src := job.Source.Path
	if _, err := os.Stat(src); err != nil {
		return "", failure.Wrap("open source", err)
	}
	if s.cfg.VerifyIntegrity {
		if err := VerifySource(src, job.Source.Fingerprint); err != nil {
			return "", err
		}
	}

	emit(job, sink, progress.Update{State: progress.StateConverting, Percent: 0, Message: "Converting"})

	info, err := encoder.Probe(ctx, s.runner, s.ffprobePath, src)
	if err != nil {
		return "", err
	}

	tmp, err := util.MakeTempWorkdir(s.tempRoot)
	if err != nil {
		return "", failure.Wrap("create temp dir", err)
	}
	defer removeAll(ctx, tmp)

	in := encoder.ArgInput{
		InputPath:   src,
		Info:        info,
		Preset:      job.Preset,
		Custom:      job.Custom,
		Range:       job.Range,
		AutoThreads: s.cfg.AutoThreads,
		Threads:     s.cfg.Threads,
	}
	if in.Range != nil {
		if err := in.Range.Validate(); err != nil {
			return "", failure.New(failure.KindOther, "convert", err)
		}
	}
	name := media.ConvertedName(src, s.cfg.ConvertedSuffix, in.Effective())
	in.OutputPath = filepath.Join(tmp, name)

	if err := s.encodeWithFallback(ctx, job, sink, in); err != nil {
		return "", err
	}

	if err := s.writeTags(ctx, in.OutputPath, job.Source.Tags); err != nil {
		return "", err
	}

	emit(job, sink, progress.Update{State: progress.StateMoving, Percent: 0, Message: "Moving"})
	dir := job.OutputDir
	if dir == "" {
		if dir, err = s.paths.ConvertDir(src); err != nil {
			return "", failure.Wrap("resolve destination", err)
		}
	}
	final, err := s.alloc.Place(ctx, in.OutputPath, dir, name)
	if err != nil {
		return "", err
	}
	log.FromContext(ctx).Debug().Str("file", final).Msg("conversion placed")
	return final, nil
}
