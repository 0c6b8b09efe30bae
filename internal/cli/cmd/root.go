package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tubekit/internal/config"
	"tubekit/internal/log"
)

const (
	ExitOK             = 0
	ExitCLIError       = 1
	ExitMissingDep     = 2
	ExitDownloadError  = 3
	ExitTranscodeError = 4
)

// ExitError wraps an error with a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "tubekit",
		Short:         "Download and convert media with yt-dlp and ffmpeg",
		Long:          "tubekit downloads videos and audio with yt-dlp, trims and re-encodes them with ffmpeg, and converts local files with reusable presets. Jobs run concurrently with live progress.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd.Root())
		},
	}

	bindSettingFlags(root.PersistentFlags())
	root.PersistentFlags().Bool("no-ui", false, "Disable the TUI; print plain progress lines")
	root.PersistentFlags().BoolP("verbose", "v", false, "Debug logging")

	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newPlaylistCmd(a))
	root.AddCommand(newPresetsCmd(a))
	root.AddCommand(newCodecsCmd(a))
	root.AddCommand(newConfigCmd(a))
	root.AddCommand(newDoctorCmd(a))
	root.AddCommand(newCompletionCmd())

	return root
}

// bindSettingFlags registers one flag per setting that is worth overriding
// on the command line; config.Init binds them to the matching keys.
func bindSettingFlags(fs *pflag.FlagSet) {
	fs.Int("max-concurrency", 3, "Jobs running at once (1-5)")
	fs.Int("download-retries", 3, "Extra attempts for a failed download")
	fs.Float64("speed-limit-mbit", 0, "Download speed limit in Mbit/s, 0 for none")
	fs.String("hardware-encoder", "none", "H.264 encoder: none, nvenc, qsv, amf, vaapi, videotoolbox")
	fs.String("video-save-path", "", "Where downloaded videos go")
	fs.String("audio-save-path", "", "Where downloaded audio goes")
	fs.String("convert-save-path", "", "Where converted files go (default: next to the source)")
	fs.String("temp-dir", "", "Root for temporary work directories")
	fs.String("dl-binary", "", "Path to yt-dlp or youtube-dl")
	fs.String("ffmpeg-binary", "", "Path to ffmpeg")
	fs.String("ffprobe-binary", "", "Path to ffprobe")
	fs.String("log-level", "info", "Log level: debug, info, warn, error")
	fs.String("metrics-file", "", "Write Prometheus metrics to this file after each batch")
}

// init loads settings and configures logging. It runs before every command.
func (a *app) init(root *cobra.Command) error {
	store, err := config.Init(root)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	cfg, err := config.Load(store)
	if err != nil {
		return &ExitError{Code: ExitCLIError, Err: err}
	}
	level := cfg.LogLevel
	if v, _ := root.PersistentFlags().GetBool("verbose"); v {
		level = "debug"
	}
	log.Configure(log.Config{Level: level})

	a.store = store
	a.cfg = cfg
	a.noUI, _ = root.PersistentFlags().GetBool("no-ui")
	logger := log.WithComponent("cli")
	logger.Debug().Str("config_file", store.Path()).Msg("settings loaded")
	return nil
}

// Execute runs the CLI with the provided context.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}
