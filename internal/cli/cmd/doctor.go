package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tubekit/internal/dirs"
	"tubekit/internal/util/deps"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose external dependencies (yt-dlp/youtube-dl, ffmpeg, ffprobe)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			var errs []error
			check := func(label string, find func(string) (string, error), custom string) {
				p, err := find(custom)
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(out, "%-11s missing (%v)\n", label+":", err)
					return
				}
				fmt.Fprintf(out, "%-11s %s\n", label+":", p)
			}
			check("Downloader", deps.FindDownloader, a.cfg.DLBinary)
			check("FFmpeg", deps.FindFFmpeg, a.cfg.FFmpegBinary)
			check("FFprobe", deps.FindFFprobe, a.cfg.FFprobeBinary)

			if d, err := dirs.ConfigDir(); err == nil {
				fmt.Fprintf(out, "%-11s %s\n", "Config:", d)
			}
			fmt.Fprintf(out, "%-11s %s\n", "Temp:", a.tempRoot())

			if len(errs) > 0 {
				return &ExitError{Code: ExitMissingDep, Err: errors.Join(errs...)}
			}
			return nil
		},
	}
}
