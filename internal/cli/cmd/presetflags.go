package cmd

import (
	"github.com/spf13/pflag"

	"tubekit/internal/model"
)

// presetFlags edits a ConversionPreset from the command line. Only flags the
// user actually set are applied.
type presetFlags struct {
	format       string
	videoCodec   string
	audioCodec   string
	noVideo      bool
	noAudio      bool
	width        int
	height       int
	keepAspect   bool
	aspect       string
	videoBitrate int
	audioBitrate int
	sampleRate   int
	fps          float64
	volume       float64
}

func (f *presetFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.format, "format", "", "Container, e.g. mp4, mkv, mp3")
	fs.StringVar(&f.videoCodec, "video-codec", "", "ffmpeg video encoder, e.g. libx264, copy")
	fs.StringVar(&f.audioCodec, "audio-codec", "", "ffmpeg audio encoder, e.g. aac, libopus")
	fs.BoolVar(&f.noVideo, "no-video", false, "Drop the video stream")
	fs.BoolVar(&f.noAudio, "no-audio", false, "Drop the audio stream")
	fs.IntVar(&f.width, "width", 0, "Output width in px")
	fs.IntVar(&f.height, "height", 0, "Output height in px")
	fs.BoolVar(&f.keepAspect, "keep-aspect", true, "Scale one side and keep the aspect ratio")
	fs.StringVar(&f.aspect, "aspect", "", "Display aspect ratio, e.g. 16:9")
	fs.IntVar(&f.videoBitrate, "video-bitrate", 0, "Video bitrate in kbit/s")
	fs.IntVar(&f.audioBitrate, "audio-bitrate", 0, "Audio bitrate in kbit/s")
	fs.IntVar(&f.sampleRate, "sample-rate", 0, "Audio sample rate in Hz")
	fs.Float64Var(&f.fps, "fps", 0, "Output frame rate")
	fs.Float64Var(&f.volume, "volume", 0, "Volume factor, 1.0 keeps the source level")
}

// apply writes the changed flags into p and reports whether any were set.
func (f *presetFlags) apply(fs *pflag.FlagSet, p *model.ConversionPreset) bool {
	changed := false
	set := func(name string, fn func()) {
		if fs.Changed(name) {
			fn()
			changed = true
		}
	}
	set("format", func() { p.Format = f.format })
	set("video-codec", func() { p.VideoCodec = f.videoCodec })
	set("audio-codec", func() { p.AudioCodec = f.audioCodec })
	set("no-video", func() { p.VideoEnabled = !f.noVideo })
	set("no-audio", func() { p.AudioEnabled = !f.noAudio })
	set("width", func() { p.Width = f.width })
	set("height", func() { p.Height = f.height })
	set("keep-aspect", func() { p.KeepAspect = f.keepAspect })
	set("aspect", func() { p.AspectRatio = f.aspect })
	set("video-bitrate", func() { p.VideoBitrateKbps = f.videoBitrate })
	set("audio-bitrate", func() { p.AudioBitrateKbps = f.audioBitrate })
	set("sample-rate", func() { p.SampleRate = f.sampleRate })
	set("fps", func() { p.FPS = f.fps })
	set("volume", func() { p.Volume = f.volume })
	return changed
}
