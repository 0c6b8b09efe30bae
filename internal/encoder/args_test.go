package encoder

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tubekit/internal/model"
)

func sourceInfo() model.MediaInfo {
	return model.MediaInfo{
		Width:              1920,
		Height:             1080,
		DurationSec:        80,
		VideoCodec:         "h264",
		AudioCodec:         "aac",
		AudioBitrateKbps:   128,
		SampleRate:         44100,
		DisplayAspectRatio: "16:9",
		SizeBytes:          10_000_000,
	}
}

func mp4Preset() model.ConversionPreset {
	return model.ConversionPreset{
		Name: "MP4", Format: "mp4", VideoCodec: "libx264", AudioCodec: "aac",
		VideoEnabled: true, AudioEnabled: true,
	}
}

func joined(args []string) string { return strings.Join(args, " ") }

func TestHardwareToSoftwareEncoder(t *testing.T) {
	tests := map[string]string{
		"h264_nvenc":        "libx264",
		"h264_qsv":          "libx264",
		"h264_amf":          "libx264",
		"h264_videotoolbox": "libx264",
		"hevc_nvenc":        "libx265",
		"hevc_qsv":          "libx265",
		"av1_nvenc":         "libsvtav1",
		"libx264":           "libx264",
		"libx265":           "libx265",
		"mpeg4":             "mpeg4",
		"prores_ks":         "prores_ks",
	}
	for in, want := range tests {
		if got := HardwareToSoftwareEncoder(in); got != want {
			t.Errorf("HardwareToSoftwareEncoder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildArgs(t *testing.T) {
	full := &model.TimeRange{End: 80 * time.Second, Duration: 80 * time.Second}
	trim := &model.TimeRange{Start: 10 * time.Second, End: 40 * time.Second, Duration: 80 * time.Second}

	tests := []struct {
		name            string
		in              ArgInput
		wantContains    []string
		wantNotContains []string
	}{
		{
			name:            "plain remux copies matching audio",
			in:              ArgInput{Preset: mp4Preset(), AutoThreads: true},
			wantContains:    []string{"-c:v libx264", "-acodec copy", "-movflags +faststart"},
			wantNotContains: []string{"-vf", "-b:v", "-threads", "-ss", "-to"},
		},
		{
			name: "custom preset replaces batch preset",
			in: ArgInput{
				Preset: mp4Preset(),
				Custom: &model.ConversionPreset{Name: "custom", Format: "mkv", VideoCodec: "libx265", AudioEnabled: true, VideoEnabled: true, AudioCodec: "libopus"},
			},
			wantContains:    []string{"-c:v libx265", "-acodec libopus"},
			wantNotContains: []string{"libx264", "-movflags"},
		},
		{
			name:            "force software maps nvenc",
			in:              ArgInput{Preset: withVideoCodec(mp4Preset(), "h264_nvenc"), ForceSoftware: true},
			wantContains:    []string{"-c:v libx264"},
			wantNotContains: []string{"nvenc", "-b:v"},
		},
		{
			name:         "hardware encoder gets computed bitrate",
			in:           ArgInput{Preset: withVideoCodec(mp4Preset(), "h264_nvenc")},
			wantContains: []string{"-c:v h264_nvenc", "-b:v 872k"},
		},
		{
			name:         "user bitrate wins",
			in:           ArgInput{Preset: func() model.ConversionPreset { p := mp4Preset(); p.VideoBitrateKbps = 2500; return p }()},
			wantContains: []string{"-b:v 2500k"},
		},
		{
			name:         "scale with source aspect",
			in:           ArgInput{Preset: func() model.ConversionPreset { p := mp4Preset(); p.Width, p.Height, p.KeepAspect = 1280, 720, true; return p }()},
			wantContains: []string{"-vf scale=1280:720,setdar=16/9"},
		},
		{
			name: "forced aspect ratio",
			in: ArgInput{Preset: func() model.ConversionPreset {
				p := mp4Preset()
				p.Width, p.Height, p.AspectRatio = 640, 480, "4:3"
				return p
			}()},
			wantContains: []string{"-vf scale=640:480,setdar=4/3"},
		},
		{
			name:            "same size does not scale",
			in:              ArgInput{Preset: func() model.ConversionPreset { p := mp4Preset(); p.Width, p.Height = 1920, 1080; return p }()},
			wantNotContains: []string{"-vf"},
		},
		{
			name:         "audio overrides force re-encode",
			in:           ArgInput{Preset: func() model.ConversionPreset { p := mp4Preset(); p.SampleRate = 48000; p.Volume = 1.5; return p }()},
			wantContains: []string{"-acodec aac", "-ar 48000", "-af volume=1.50"},
			wantNotContains: []string{
				"-acodec copy",
			},
		},
		{
			name:            "full range does not trim",
			in:              ArgInput{Preset: mp4Preset(), Range: full},
			wantNotContains: []string{"-ss", "-to"},
		},
		{
			name:         "partial range trims",
			in:           ArgInput{Preset: mp4Preset(), Range: trim},
			wantContains: []string{"-ss 00:00:10.00 -to 00:00:40.00 -i in.mkv"},
		},
		{
			name:         "threads only without auto",
			in:           ArgInput{Preset: mp4Preset(), AutoThreads: false, Threads: 4},
			wantContains: []string{"-threads 4"},
		},
		{
			name:            "auto threads suppresses flag",
			in:              ArgInput{Preset: mp4Preset(), AutoThreads: true, Threads: 4},
			wantNotContains: []string{"-threads"},
		},
		{
			name:            "audio-only preset",
			in:              ArgInput{Preset: model.ConversionPreset{Name: "MP3", Format: "mp3", AudioCodec: "libmp3lame", AudioEnabled: true, AudioBitrateKbps: 192}},
			wantContains:    []string{"-vn", "-acodec libmp3lame", "-b:a 192k"},
			wantNotContains: []string{"-c:v"},
		},
		{
			name:            "video-only preset",
			in:              ArgInput{Preset: model.ConversionPreset{Name: "Silent", Format: "mp4", VideoCodec: "libx264", VideoEnabled: true}},
			wantContains:    []string{"-an"},
			wantNotContains: []string{"-acodec"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.InputPath = "in.mkv"
			in.Info = sourceInfo()
			if in.OutputPath == "" {
				in.OutputPath = "out" + in.Effective().Ext()
			}
			args := BuildArgs(in)
			s := joined(args)

			assert.Equal(t, in.OutputPath, args[len(args)-1])
			for _, want := range tt.wantContains {
				assert.Contains(t, s, want)
			}
			for _, not := range tt.wantNotContains {
				assert.NotContains(t, s, not)
			}
		})
	}
}

func TestBuildArgs_Pure(t *testing.T) {
	in := ArgInput{InputPath: "a.webm", OutputPath: "b.mp4", Info: sourceInfo(), Preset: mp4Preset()}
	assert.Equal(t, BuildArgs(in), BuildArgs(in))
}

func TestExtractThumbnailArgs(t *testing.T) {
	got := joined(ExtractThumbnailArgs("in.mp4", "thumb.jpg", 3.5))
	assert.Equal(t, "-y -hide_banner -ss 3.50 -i in.mp4 -frames:v 1 -q:v 2 thumb.jpg", got)
}

func withVideoCodec(p model.ConversionPreset, codec string) model.ConversionPreset {
	p.VideoCodec = codec
	return p
}
