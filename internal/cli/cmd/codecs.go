package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tubekit/internal/codecs"
	"tubekit/internal/config"
	"tubekit/internal/dirs"
	"tubekit/internal/util"
	"tubekit/internal/util/deps"
)

func newCodecsCmd(a *app) *cobra.Command {
	var check string
	cmd := &cobra.Command{
		Use:   "codecs",
		Short: "Show what the installed ffmpeg can encode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ffmpeg, err := deps.FindFFmpeg(a.cfg.FFmpegBinary)
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}
			path, err := dirs.CodecCachePath()
			if err != nil {
				return &ExitError{Code: ExitCLIError, Err: err}
			}
			cache := codecs.Cache{Path: path, FFmpegPath: ffmpeg, Runner: util.NewDefaultRunner()}
			caps, err := cache.Load(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitMissingDep, Err: err}
			}

			out := cmd.OutOrStdout()
			if check != "" {
				store, err := a.presetStore()
				if err != nil {
					return err
				}
				p, ok := store.Get(check)
				if !ok {
					return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("unknown preset %q", check)}
				}
				if err := caps.Validate(p); err != nil {
					return &ExitError{Code: ExitCLIError, Err: err}
				}
				fmt.Fprintf(out, "Preset %q is supported\n", p.Name)
				return nil
			}

			hw := caps.HardwareEncoders()
			fmt.Fprintf(out, "FFmpeg:            %s\n", ffmpeg)
			fmt.Fprintf(out, "Encoders:          %d\n", len(caps.Encoders))
			if len(hw) == 0 {
				fmt.Fprintln(out, "Hardware encoders: none")
			} else {
				fmt.Fprintf(out, "Hardware encoders: %s\n", strings.Join(hw, ", "))
			}
			enc := a.cfg.VideoEncoder()
			status := "available"
			if !caps.HasEncoder(enc) {
				status = "NOT available"
				if a.cfg.FallbackToSoftware {
					status += ", will fall back to libx264"
				}
			}
			fmt.Fprintf(out, "Configured (%s=%s): %s, %s\n", config.KeyHardwareEncoder, a.cfg.HardwareEncoder, enc, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&check, "check", "", "Validate a preset against this ffmpeg")
	return cmd
}
