package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tubekit/internal/downloader"
	"tubekit/internal/formats"
	"tubekit/internal/model"
	"tubekit/internal/pipeline"
	"tubekit/internal/util"
)

type downloadOptions struct {
	quality     string
	audioOnly   bool
	audioFormat string
	thumbnail   bool
	start, end  string
	outputDir   string
	title       string
	artist      string
}

func (o *downloadOptions) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.quality, "quality", "q", "best", "Video height (720p, 1080p, best) or audio quality (low, medium, high, best)")
	fs.BoolVarP(&o.audioOnly, "audio-only", "x", false, "Extract audio only")
	fs.StringVar(&o.audioFormat, "audio-format", "", "Audio container for --audio-only (mp3, m4a, opus, flac, wav)")
	fs.BoolVar(&o.thumbnail, "thumbnail", false, "Also save a JPEG thumbnail next to the output")
	fs.StringVar(&o.start, "start", "", "Start of the section to keep (90, 1:30, 1m30s)")
	fs.StringVar(&o.end, "end", "", "End of the section to keep")
	fs.StringVarP(&o.outputDir, "output-dir", "o", "", "Override the configured save path")
	fs.StringVar(&o.title, "title", "", "Title tag for the output")
	fs.StringVar(&o.artist, "artist", "", "Artist tag for the output")
}

// job builds a download job for a fetched source.
func (o *downloadOptions) job(src model.MediaSource) (*pipeline.Job, error) {
	rng, err := parseRange(o.start, o.end, src.Duration)
	if err != nil {
		return nil, err
	}
	if o.title != "" {
		src.Tags.Title = o.title
	}
	if o.artist != "" {
		src.Tags.Artist = o.artist
	}
	j := pipeline.NewDownloadJob(src, o.quality, o.audioOnly)
	j.AudioFormat = o.audioFormat
	j.Thumbnail = o.thumbnail
	j.OutputDir = o.outputDir
	j.Range = rng
	return j, nil
}

func newDownloadCmd(a *app) *cobra.Command {
	var (
		o             downloadOptions
		listQualities bool
	)
	cmd := &cobra.Command{
		Use:     "download <url>...",
		Aliases: []string{"dl"},
		Short:   "Download videos or audio, optionally trimmed",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.findTools(true)
			if err != nil {
				return err
			}
			client := downloader.New(t.downloader, util.NewDefaultRunner())

			jobs := make([]*pipeline.Job, 0, len(args))
			for _, url := range args {
				src, err := client.FetchInfo(cmd.Context(), url)
				if err != nil {
					return &ExitError{Code: ExitDownloadError, Err: fmt.Errorf("%s: %w", url, err)}
				}
				j, err := o.job(src)
				if err != nil {
					return &ExitError{Code: ExitCLIError, Err: fmt.Errorf("%s: %w", url, err)}
				}
				jobs = append(jobs, j)
			}
			if listQualities {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(qualityLabels(jobs), " "))
				return nil
			}
			return a.runJobs(cmd, "tubekit download", t, jobs)
		},
	}
	cmd.Flags().BoolVar(&listQualities, "list-qualities", false, "Print the resolutions offered for all URLs and exit")
	o.bind(cmd.Flags())
	return cmd
}

// qualityLabels lists the resolution buckets offered across jobs, tallest
// first.
func qualityLabels(jobs []*pipeline.Job) []string {
	var heights []int
	for _, j := range jobs {
		for _, f := range j.Source.Formats {
			if f.Height > 0 {
				heights = append(heights, f.Height)
			}
		}
	}
	return formats.ResolutionLabels(heights)
}
