package codecs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubekit/internal/model"
	"tubekit/internal/util"
)

const codecsOut = `Codecs:
 D..... = Decoding supported
 .E.... = Encoding supported
 ..V... = Video codec
 -------
 DEV.LS h264                 H.264 / AVC / MPEG-4 AVC (decoders: h264 h264_cuvid ) (encoders: libx264 h264_nvenc )
 DEA.L. aac                  AAC (Advanced Audio Coding)
 D.A.L. ac4                  AC-4
`

const encodersOut = `Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC (codec h264)
 V....D h264_nvenc           NVIDIA NVENC H.264 encoder (codec h264)
 V....D hevc_vaapi           H.265/HEVC (VAAPI) (codec hevc)
 A....D aac                  AAC (Advanced Audio Coding)
 A....D libmp3lame           libmp3lame MP3 (MPEG audio layer 3) (codec mp3)
`

const formatsOut = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 DE mp4             MP4 (MPEG-4 Part 14)
  E mp3             MP3 (MPEG audio layer 3)
 D  mov,mp4,m4a,3gp QuickTime / MOV
  E matroska        Matroska
`

func TestParseCodecs(t *testing.T) {
	got := ParseCodecs([]byte(codecsOut))
	want := []Codec{
		{Name: "h264", Kind: "video", Decode: true, Encode: true, Description: "H.264 / AVC / MPEG-4 AVC (decoders: h264 h264_cuvid ) (encoders: libx264 h264_nvenc )"},
		{Name: "aac", Kind: "audio", Decode: true, Encode: true, Description: "AAC (Advanced Audio Coding)"},
		{Name: "ac4", Kind: "audio", Decode: true, Encode: false, Description: "AC-4"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseCodecs mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEncodersAndHardware(t *testing.T) {
	caps := Capabilities{Encoders: ParseEncoders([]byte(encodersOut))}
	require.Len(t, caps.Encoders, 5)
	assert.True(t, caps.HasEncoder("libmp3lame"))
	assert.Equal(t, []string{"h264_nvenc", "hevc_vaapi"}, caps.HardwareEncoders())
}

func TestParseFormats(t *testing.T) {
	fs := ParseFormats([]byte(formatsOut))
	names := make([]string, 0, len(fs))
	for _, f := range fs {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"mp4", "mp3", "mov", "mp4", "m4a", "3gp", "matroska"}, names)

	caps := Capabilities{Formats: fs}
	assert.True(t, caps.CanMux("mp4"))
	assert.True(t, caps.CanMux("matroska"))
	assert.False(t, caps.CanMux("mov"))
}

func TestValidate(t *testing.T) {
	caps := Capabilities{
		Encoders: ParseEncoders([]byte(encodersOut)),
		Formats:  ParseFormats([]byte(formatsOut)),
	}
	ok := model.ConversionPreset{Name: "MKV", Format: "mkv", VideoCodec: "libx264", AudioCodec: "aac", VideoEnabled: true, AudioEnabled: true}
	assert.NoError(t, caps.Validate(ok))

	bad := model.ConversionPreset{Name: "Opus", Format: "ogg", AudioCodec: "libopus", AudioEnabled: true}
	err := caps.Validate(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "libopus")
	assert.Contains(t, err.Error(), "ogg")
}

func TestCache_RegeneratesOnHashChange(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte("v1"), 0o755))

	calls := 0
	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		calls++
		switch spec.Args[len(spec.Args)-1] {
		case "-codecs":
			return util.CmdResult{Stdout: []byte(codecsOut)}, nil
		case "-encoders":
			return util.CmdResult{Stdout: []byte(encodersOut)}, nil
		default:
			return util.CmdResult{Stdout: []byte(formatsOut)}, nil
		}
	})
	c := &Cache{Path: filepath.Join(dir, "cache", "codecs.json"), FFmpegPath: ffmpeg, Runner: runner}

	caps, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	want, _ := util.FileMD5(ffmpeg)
	assert.Equal(t, want, caps.FFmpegHash)
	assert.FileExists(t, c.Path)

	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls, "cache hit must not run ffmpeg")

	require.NoError(t, os.WriteFile(ffmpeg, []byte("v2"), 0o755))
	caps2, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, calls)
	assert.NotEqual(t, caps.FFmpegHash, caps2.FFmpegHash)
}

func TestCache_CorruptFileIsRegenerated(t *testing.T) {
	dir := t.TempDir()
	ffmpeg := filepath.Join(dir, "ffmpeg")
	require.NoError(t, os.WriteFile(ffmpeg, []byte("bin"), 0o755))
	path := filepath.Join(dir, "codecs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		return util.CmdResult{Stdout: []byte(encodersOut)}, nil
	})
	caps, err := (&Cache{Path: path, FFmpegPath: ffmpeg, Runner: runner}).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, caps.HasEncoder("libx264"))
}
