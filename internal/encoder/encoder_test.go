package encoder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubekit/internal/failure"
	"tubekit/internal/progress"
	"tubekit/internal/util"
)

func TestEncode_ReportsProgressAndWritesOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "sub", "out.mp4")
	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		spec.StderrLine("frame=1 time=00:00:20.00 bitrate=1k")
		spec.StdoutLine("out_time_us=40000000")
		spec.StdoutLine("progress=continue")
		return util.CmdResult{}, os.WriteFile(spec.Args[len(spec.Args)-1], []byte("data"), 0o644)
	})

	var pcts []float64
	err := New("ffmpeg", runner).Encode(context.Background(), ArgInput{
		InputPath:  "in.webm",
		OutputPath: out,
		Info:       sourceInfo(),
		Preset:     mp4Preset(),
	}, "job", func(u progress.Update) {
		assert.Equal(t, progress.StateConverting, u.State)
		pcts = append(pcts, u.Percent)
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{25, 50}, pcts)
	assert.FileExists(t, out)
}

func TestEncode_FailureRemovesPartialOutput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		_ = os.WriteFile(out, []byte("partial"), 0o644)
		return util.CmdResult{Code: 1}, failure.New(failure.KindToolFailed, "ffmpeg", errors.New("exit 1"))
	})
	err := New("ffmpeg", runner).Encode(context.Background(), ArgInput{InputPath: "in", OutputPath: out, Info: sourceInfo(), Preset: mp4Preset()}, "job", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, failure.ToolFailed))
	assert.NoFileExists(t, out)
}

func TestEncode_EmptyOutputIsFailure(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.mp4")
	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		return util.CmdResult{}, nil
	})
	err := New("ffmpeg", runner).Encode(context.Background(), ArgInput{InputPath: "in", OutputPath: out, Info: sourceInfo(), Preset: mp4Preset()}, "job", nil)
	assert.Equal(t, failure.KindToolFailed, failure.KindOf(err))
}

func TestParseProbe(t *testing.T) {
	data := []byte(`{
  "streams": [
    {"codec_type": "video", "codec_name": "mjpeg", "width": 300, "height": 300, "disposition": {"attached_pic": 1}},
    {"codec_type": "video", "codec_name": "vp9", "width": 1280, "height": 720, "display_aspect_ratio": "16:9", "avg_frame_rate": "30000/1001"},
    {"codec_type": "audio", "codec_name": "opus", "bit_rate": "160000", "sample_rate": "48000"}
  ],
  "format": {"duration": "212.040000", "size": "12345678", "bit_rate": "465000"}
}`)
	mi, err := ParseProbe(data)
	require.NoError(t, err)
	assert.Equal(t, "vp9", mi.VideoCodec)
	assert.Equal(t, 1280, mi.Width)
	assert.Equal(t, "16:9", mi.DisplayAspectRatio)
	assert.InDelta(t, 29.97, mi.FPS, 0.01)
	assert.Equal(t, "opus", mi.AudioCodec)
	assert.Equal(t, 160, mi.AudioBitrateKbps)
	assert.Equal(t, 48000, mi.SampleRate)
	assert.InDelta(t, 212.04, mi.DurationSec, 1e-6)
	assert.Equal(t, int64(12345678), mi.SizeBytes)

	_, err = ParseProbe([]byte("not json"))
	assert.Error(t, err)
}

func TestProbe_UsesRunner(t *testing.T) {
	var gotArgs []string
	runner := util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		gotArgs = spec.Args
		assert.True(t, spec.RequireOutput)
		return util.CmdResult{Stdout: []byte(`{"streams":[{"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"3"}}`)}, nil
	})
	mi, err := Probe(context.Background(), runner, "ffprobe", "/x/song.m4a")
	require.NoError(t, err)
	assert.Equal(t, "/x/song.m4a", gotArgs[len(gotArgs)-1])
	assert.True(t, mi.HasAudio())
	assert.False(t, mi.HasVideo())
}
