package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tubekit/internal/codecs"
	"tubekit/internal/dirs"
	"tubekit/internal/log"
	"tubekit/internal/model"
	"tubekit/internal/pipeline"
	"tubekit/internal/util"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		preset     string
		start, end string
		outputDir  string
		pf         presetFlags
	)
	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert local files with a preset",
		Long:  "Convert local files with a saved preset. Any preset flag switches to the session-only \"custom\" preset, starting from the named preset.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.findTools(false)
			if err != nil {
				return err
			}
			store, err := a.presetStore()
			if err != nil {
				return err
			}
			p, ok := store.Get(preset)
			if !ok {
				return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("unknown preset %q (see 'tubekit presets list')", preset)}
			}
			var custom *model.ConversionPreset
			if c := p; pf.apply(cmd.Flags(), &c) {
				if err := store.SetCustom(c); err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				c = store.Custom()
				custom = &c
			}

			effective := p
			if custom != nil {
				effective = *custom
			}
			checkPreset(cmd.Context(), t, effective)

			jobs := make([]*pipeline.Job, 0, len(args))
			for _, path := range args {
				src, err := a.localSource(path)
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				rng, err := parseRange(start, end, 0)
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("%s: %w", path, err)}
				}
				j := pipeline.NewConvertJob(src, p)
				j.Custom = custom
				j.Range = rng
				j.OutputDir = outputDir
				jobs = append(jobs, j)
			}
			return a.runJobs(cmd, "tubekit convert", t, jobs)
		},
	}
	cmd.Flags().StringVarP(&preset, "preset", "p", "MP4 H.264", "Preset name")
	cmd.Flags().StringVar(&start, "start", "", "Start of the section to keep")
	cmd.Flags().StringVar(&end, "end", "", "End of the section to keep")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Override the configured conversion path")
	pf.bind(cmd.Flags())
	return cmd
}

// localSource stats path and fingerprints it when integrity checks are on.
func (a *app) localSource(path string) (model.MediaSource, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return model.MediaSource{}, err
	}
	if fi.IsDir() {
		return model.MediaSource{}, fmt.Errorf("%s is a directory", path)
	}
	src := model.MediaSource{Kind: model.SourceLocal, Path: path}
	if a.cfg.VerifyIntegrity {
		if src.Fingerprint, err = util.FileMD5(path); err != nil {
			return model.MediaSource{}, fmt.Errorf("fingerprint %s: %w", path, err)
		}
	}
	return src, nil
}

// checkPreset warns when ffmpeg lacks an encoder or muxer the preset needs.
// The conversion still runs; ffmpeg has the final word.
func checkPreset(ctx context.Context, t tools, p model.ConversionPreset) {
	logger := log.WithComponent("cli")
	path, err := dirs.CodecCachePath()
	if err != nil {
		return
	}
	cache := codecs.Cache{Path: path, FFmpegPath: t.ffmpeg, Runner: util.NewDefaultRunner()}
	caps, err := cache.Load(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("codec capabilities unavailable")
		return
	}
	if err := caps.Validate(p); err != nil {
		logger.Warn().Err(err).Msg("preset may not work with this ffmpeg")
	}
}
