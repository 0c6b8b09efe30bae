package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tubekit/internal/downloader"
	"tubekit/internal/log"
	"tubekit/internal/pipeline"
	"tubekit/internal/util"
)

func newPlaylistCmd(a *app) *cobra.Command {
	var (
		o        downloadOptions
		download bool
	)
	cmd := &cobra.Command{
		Use:   "playlist <url>",
		Short: "List a playlist, or download every entry with --download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.findTools(true)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := downloader.New(t.downloader, util.NewDefaultRunner())
			entries, err := client.ListPlaylist(ctx, args[0])
			if err != nil {
				return &ExitError{Code: ExitDownloadError, Err: err}
			}

			if !download {
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tID\tDURATION\tTITLE")
				for i, e := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, e.ID, e.Duration.Round(time.Second), e.Title)
				}
				return tw.Flush()
			}

			logger := log.WithComponent("cli")
			jobs := make([]*pipeline.Job, 0, len(entries))
			for _, e := range entries {
				// flat entries carry no formats
				src, err := client.FetchInfo(ctx, e.URL)
				if err != nil {
					logger.Warn().Err(err).Str("url", e.URL).Msg("skipping playlist entry")
					continue
				}
				j, err := o.job(src)
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("%s: %w", e.URL, err)}
				}
				jobs = append(jobs, j)
			}
			if len(jobs) == 0 {
				return &ExitError{Code: ExitDownloadError, Err: fmt.Errorf("no playlist entry could be loaded")}
			}
			return a.runJobs(cmd, "tubekit playlist", t, jobs)
		},
	}
	cmd.Flags().BoolVar(&download, "download", false, "Download every entry")
	o.bind(cmd.Flags())
	return cmd
}
