package encoder

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"tubekit/internal/model"
	"tubekit/internal/util/bitrate"
)

// ArgInput is everything BuildArgs needs. It is plain data so that the
// argument rules can be tested without ffmpeg.
type ArgInput struct {
	InputPath  string
	OutputPath string
	Info       model.MediaInfo

	Preset model.ConversionPreset
	Custom *model.ConversionPreset // replaces Preset wholesale when set
	Range  *model.TimeRange

	ForceSoftware bool
	AutoThreads   bool
	Threads       int

	// Progress adds -progress pipe:1 so Encode can track out_time.
	Progress bool
}

// Effective returns the preset the arguments are built from.
func (in ArgInput) Effective() model.ConversionPreset {
	if in.Custom != nil {
		return *in.Custom
	}
	return in.Preset
}

// Trimmed reports whether a sub-range of the source is requested.
func (in ArgInput) Trimmed() bool {
	return in.Range != nil && !in.Range.IsFull()
}

var hardwareBackends = map[string]bool{
	"nvenc":        true,
	"qsv":          true,
	"amf":          true,
	"vaapi":        true,
	"videotoolbox": true,
	"v4l2m2m":      true,
	"mf":           true,
}

var softwareFamilies = map[string]string{
	"h264": "libx264",
	"hevc": "libx265",
	"av1":  "libsvtav1",
	"vp9":  "libvpx-vp9",
}

// IsHardwareEncoder reports whether codec names a GPU/ASIC encoder such as h264_nvenc.
func IsHardwareEncoder(codec string) bool {
	_, backend, ok := strings.Cut(strings.ToLower(codec), "_")
	return ok && hardwareBackends[backend]
}

// HardwareToSoftwareEncoder maps a hardware encoder to the CPU encoder of the
// same codec family. Software and unknown codecs are returned unchanged.
func HardwareToSoftwareEncoder(codec string) string {
	family, backend, ok := strings.Cut(strings.ToLower(codec), "_")
	if !ok || !hardwareBackends[backend] {
		return codec
	}
	if sw, ok := softwareFamilies[family]; ok {
		return sw
	}
	return codec
}

// audio encoder name -> codec name as ffprobe reports it
var encoderCodec = map[string]string{
	"libmp3lame": "mp3",
	"libopus":    "opus",
	"libvorbis":  "vorbis",
	"libfdk_aac": "aac",
	"pcm_s16le":  "pcm_s16le",
}

func sameAudioCodec(encoder, source string) bool {
	if encoder == "" || source == "" {
		return false
	}
	e := strings.ToLower(encoder)
	if c, ok := encoderCodec[e]; ok {
		e = c
	}
	return e == strings.ToLower(source)
}

func hasVolumeOverride(v float64) bool {
	return v > 0 && v != 1
}

// BuildArgs constructs the ffmpeg argument list for one conversion.
func BuildArgs(in ArgInput) []string {
	p := in.Effective()
	args := []string{"-y", "-hide_banner"}

	if in.Trimmed() {
		args = append(args,
			"-ss", model.FormatClock(in.Range.Start),
			"-to", model.FormatClock(in.Range.End),
		)
	}
	args = append(args, "-i", in.InputPath)

	if p.VideoEnabled && in.Info.HasVideo() {
		args = append(args, videoArgs(in, p)...)
	} else {
		args = append(args, "-vn")
	}

	if p.AudioEnabled && in.Info.HasAudio() {
		args = append(args, audioArgs(in, p)...)
	} else {
		args = append(args, "-an")
	}

	if !in.AutoThreads && in.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(in.Threads))
	}

	switch strings.ToLower(filepath.Ext(in.OutputPath)) {
	case ".mp4", ".mov", ".m4a":
		args = append(args, "-movflags", "+faststart")
	}

	if in.Progress {
		args = append(args, "-progress", "pipe:1")
	}

	return append(args, in.OutputPath)
}

func videoArgs(in ArgInput, p model.ConversionPreset) []string {
	codec := p.VideoCodec
	if codec == "" {
		codec = "libx264"
	}
	if in.ForceSoftware {
		codec = HardwareToSoftwareEncoder(codec)
	}
	if codec == "copy" && !in.Trimmed() {
		return []string{"-c:v", "copy"}
	}
	if codec == "copy" {
		// Cutting needs a re-encode to land on exact frames.
		codec = "libx264"
	}
	args := []string{"-c:v", codec}

	if vf := videoFilters(in.Info, p); vf != "" {
		args = append(args, "-vf", vf)
	}
	if p.FPS > 0 {
		args = append(args, "-r", strconv.FormatFloat(p.FPS, 'f', -1, 64))
	}

	kbps := p.VideoBitrateKbps
	if kbps <= 0 && IsHardwareEncoder(codec) {
		kbps = in.Info.VideoBitrateKbps
		if kbps <= 0 {
			kbps = bitrate.VideoKbpsFromContainer(in.Info.SizeBytes, in.Info.DurationSec, in.Info.AudioBitrateKbps)
		}
	}
	if kbps > 0 {
		args = append(args, "-b:v", fmt.Sprintf("%dk", kbps))
	}
	if codec == "libx264" || (IsHardwareEncoder(codec) && strings.HasPrefix(codec, "h264")) {
		args = append(args, "-pix_fmt", "yuv420p")
	}
	return args
}

func videoFilters(info model.MediaInfo, p model.ConversionPreset) string {
	var filters []string
	scaled := p.Width > 1 && p.Height > 1 && (p.Width != info.Width || p.Height != info.Height)
	if scaled {
		filters = append(filters, fmt.Sprintf("scale=%d:%d", p.Width, p.Height))
	}

	forced := !p.KeepAspect && strings.TrimSpace(p.AspectRatio) != ""
	switch {
	case forced:
		filters = append(filters, "setdar="+ratio(p.AspectRatio))
	case scaled && isRatio(info.DisplayAspectRatio):
		filters = append(filters, "setdar="+ratio(info.DisplayAspectRatio))
	}
	return strings.Join(filters, ",")
}

// ratio turns "16:9" into "16/9" so it survives the filtergraph parser.
func ratio(r string) string {
	return strings.ReplaceAll(strings.TrimSpace(r), ":", "/")
}

func isRatio(r string) bool {
	a, b, ok := strings.Cut(r, ":")
	if !ok {
		return false
	}
	x, err1 := strconv.Atoi(a)
	y, err2 := strconv.Atoi(b)
	return err1 == nil && err2 == nil && x > 0 && y > 0
}

func audioArgs(in ArgInput, p model.ConversionPreset) []string {
	codec := p.AudioCodec
	overrides := p.AudioBitrateKbps > 0 || p.SampleRate > 0 || hasVolumeOverride(p.Volume)

	if !overrides && (strings.EqualFold(codec, "copy") || sameAudioCodec(codec, in.Info.AudioCodec)) {
		return []string{"-acodec", "copy"}
	}
	if codec == "" || strings.EqualFold(codec, "copy") {
		codec = defaultAudioEncoder(p.Ext())
	}

	args := []string{"-acodec", codec}
	if p.AudioBitrateKbps > 0 {
		args = append(args, "-b:a", fmt.Sprintf("%dk", p.AudioBitrateKbps))
	}
	if p.SampleRate > 0 {
		args = append(args, "-ar", strconv.Itoa(p.SampleRate))
	}
	if hasVolumeOverride(p.Volume) {
		args = append(args, "-af", "volume="+strconv.FormatFloat(p.Volume, 'f', 2, 64))
	}
	return args
}

func defaultAudioEncoder(ext string) string {
	switch ext {
	case ".mp3":
		return "libmp3lame"
	case ".ogg":
		return "libvorbis"
	case ".opus", ".webm":
		return "libopus"
	case ".flac":
		return "flac"
	case ".wav":
		return "pcm_s16le"
	default:
		return "aac"
	}
}

// ExtractThumbnailArgs writes a single JPEG frame taken at the given offset.
func ExtractThumbnailArgs(inputPath, outputPath string, atSec float64) []string {
	if atSec < 0 {
		atSec = 0
	}
	return []string{
		"-y", "-hide_banner",
		"-ss", strconv.FormatFloat(atSec, 'f', 2, 64),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
}
