// Package config turns the settings store into the explicit Config value that
// is handed to every constructor.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tubekit/internal/dirs"
)

// Keys recognised by Load.
const (
	KeyMaxConcurrency     = "max_concurrency"
	KeyDownloadRetries    = "download_retries"
	KeyRetryDownloads     = "retry_downloads"
	KeySpeedLimitMbit     = "speed_limit_mbit"
	KeyHardwareEncoder    = "hardware_encoder"
	KeyFallbackToSoftware = "fallback_to_software"
	KeyForceH264          = "force_h264"
	KeyAllowHDR           = "allow_hdr"
	KeyAudioSavePath      = "audio_save_path"
	KeyVideoSavePath      = "video_save_path"
	KeyConvertSavePath    = "convert_save_path"
	KeyConvertedSuffix    = "converted_suffix"
	KeyAutoThreads        = "auto_threads"
	KeyThreads            = "threads"
	KeyRemoveCompleted    = "remove_completed"
	KeyVerifyIntegrity    = "verify_integrity"
	KeyTempDir            = "temp_dir"
	KeyDLBinary           = "dl_binary"
	KeyFFmpegBinary       = "ffmpeg_binary"
	KeyFFprobeBinary      = "ffprobe_binary"
	KeyLogLevel           = "log_level"
	KeyMetricsFile        = "metrics_file"
)

const (
	MinConcurrency = 1
	MaxConcurrency = 5
)

var defaults = map[string]string{
	KeyMaxConcurrency:     "3",
	KeyDownloadRetries:    "3",
	KeyRetryDownloads:     "true",
	KeySpeedLimitMbit:     "0",
	KeyHardwareEncoder:    "none",
	KeyFallbackToSoftware: "true",
	KeyForceH264:          "false",
	KeyAllowHDR:           "false",
	KeyAudioSavePath:      "",
	KeyVideoSavePath:      "",
	KeyConvertSavePath:    "",
	KeyConvertedSuffix:    "_converted",
	KeyAutoThreads:        "true",
	KeyThreads:            "0",
	KeyRemoveCompleted:    "false",
	KeyVerifyIntegrity:    "true",
	KeyTempDir:            "",
	KeyDLBinary:           "",
	KeyFFmpegBinary:       "",
	KeyFFprobeBinary:      "",
	KeyLogLevel:           "info",
	KeyMetricsFile:        "",
}

// HardwareEncoders maps the hardware_encoder setting to the H.264 encoder ffmpeg knows it by.
var HardwareEncoders = map[string]string{
	"none":         "libx264",
	"nvenc":        "h264_nvenc",
	"qsv":          "h264_qsv",
	"amf":          "h264_amf",
	"vaapi":        "h264_vaapi",
	"videotoolbox": "h264_videotoolbox",
}

// Config is the validated, typed view of the settings.
type Config struct {
	MaxConcurrency     int
	DownloadRetries    int
	RetryDownloads     bool
	SpeedLimitMbit     float64
	HardwareEncoder    string
	FallbackToSoftware bool
	ForceH264          bool
	AllowHDR           bool
	AudioSavePath      string
	VideoSavePath      string
	ConvertSavePath    string
	ConvertedSuffix    string
	AutoThreads        bool
	Threads            int
	RemoveCompleted    bool
	VerifyIntegrity    bool
	TempDir            string
	DLBinary           string
	FFmpegBinary       string
	FFprobeBinary      string
	LogLevel           string
	MetricsFile        string
}

// VideoEncoder is the H.264 encoder to try first for re-encodes.
func (c Config) VideoEncoder() string {
	if enc, ok := HardwareEncoders[c.HardwareEncoder]; ok {
		return enc
	}
	return HardwareEncoders["none"]
}

// Default returns the Config produced by an empty store.
func Default() Config {
	c, _ := Load(NewMapStore(nil))
	return c
}

// Load reads every key from s, falling back to defaults, and validates the
// result. All problems are reported together.
func Load(s Store) (Config, error) {
	r := reader{s: s}
	c := Config{
		MaxConcurrency:     r.int(KeyMaxConcurrency),
		DownloadRetries:    r.int(KeyDownloadRetries),
		RetryDownloads:     r.bool(KeyRetryDownloads),
		SpeedLimitMbit:     r.float(KeySpeedLimitMbit),
		HardwareEncoder:    strings.ToLower(r.str(KeyHardwareEncoder)),
		FallbackToSoftware: r.bool(KeyFallbackToSoftware),
		ForceH264:          r.bool(KeyForceH264),
		AllowHDR:           r.bool(KeyAllowHDR),
		AudioSavePath:      r.str(KeyAudioSavePath),
		VideoSavePath:      r.str(KeyVideoSavePath),
		ConvertSavePath:    r.str(KeyConvertSavePath),
		ConvertedSuffix:    r.str(KeyConvertedSuffix),
		AutoThreads:        r.bool(KeyAutoThreads),
		Threads:            r.int(KeyThreads),
		RemoveCompleted:    r.bool(KeyRemoveCompleted),
		VerifyIntegrity:    r.bool(KeyVerifyIntegrity),
		TempDir:            r.str(KeyTempDir),
		DLBinary:           r.str(KeyDLBinary),
		FFmpegBinary:       r.str(KeyFFmpegBinary),
		FFprobeBinary:      r.str(KeyFFprobeBinary),
		LogLevel:           r.str(KeyLogLevel),
		MetricsFile:        r.str(KeyMetricsFile),
	}

	errs := r.errs
	if c.MaxConcurrency < MinConcurrency || c.MaxConcurrency > MaxConcurrency {
		errs = append(errs, fmt.Errorf("%s must be between %d and %d, got %d", KeyMaxConcurrency, MinConcurrency, MaxConcurrency, c.MaxConcurrency))
	}
	if c.DownloadRetries < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyDownloadRetries))
	}
	if c.SpeedLimitMbit < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeySpeedLimitMbit))
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyThreads))
	}
	if _, ok := HardwareEncoders[c.HardwareEncoder]; !ok {
		errs = append(errs, fmt.Errorf("%s: unknown encoder %q", KeyHardwareEncoder, c.HardwareEncoder))
	}
	if err := errors.Join(errs...); err != nil {
		return c, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

type reader struct {
	s    Store
	errs []error
}

func (r *reader) str(key string) string {
	if v, ok := r.s.Get(key); ok {
		return strings.TrimSpace(v)
	}
	return defaults[key]
}

func (r *reader) int(key string) int {
	v := r.str(key)
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		n, _ = strconv.Atoi(defaults[key])
	}
	return n
}

func (r *reader) float(key string) float64 {
	v := r.str(key)
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a number", key, v))
		f, _ = strconv.ParseFloat(defaults[key], 64)
	}
	return f
}

func (r *reader) bool(key string) bool {
	v := r.str(key)
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		b, _ = strconv.ParseBool(defaults[key])
	}
	return b
}

// Init wires a viper instance with config paths, .env, env, defaults, and
// flag bindings, and returns the Store backed by it. A missing config file
// or .env is not an error.
func Init(root *cobra.Command) (*ViperStore, error) {
	_ = dirs.EnsureAll()

	// .env values become process env before viper looks at TUBEKIT_*.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfgFile string
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		v.AddConfigPath(cfgDir)
		cfgFile = filepath.Join(cfgDir, "config.yaml")
	}
	v.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	v.SetEnvPrefix("TUBEKIT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if root != nil {
		root.PersistentFlags().VisitAll(func(f *pflag.Flag) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, known := defaults[key]; known {
				_ = v.BindPFlag(key, f)
			}
		})
	}

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		cfgFile = v.ConfigFileUsed()
	}

	return NewViperStore(v, cfgFile), nil
}
