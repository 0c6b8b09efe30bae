package encoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tubekit/internal/model"
	"tubekit/internal/util"
)

type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
		BitRate  string `json:"bit_rate"`
	} `json:"format"`
}

type probeStream struct {
	CodecType          string `json:"codec_type"`
	CodecName          string `json:"codec_name"`
	Width              int    `json:"width"`
	Height             int    `json:"height"`
	BitRate            string `json:"bit_rate"`
	SampleRate         string `json:"sample_rate"`
	DisplayAspectRatio string `json:"display_aspect_ratio"`
	AvgFrameRate       string `json:"avg_frame_rate"`
	Disposition        struct {
		AttachedPic int `json:"attached_pic"`
	} `json:"disposition"`
}

// ProbeArgs are the ffprobe arguments used by Probe.
func ProbeArgs(path string) []string {
	return []string{"-v", "quiet", "-print_format", "json", "-show_streams", "-show_format", path}
}

// Probe reads stream and container metadata with ffprobe.
func Probe(ctx context.Context, runner util.CmdRunner, ffprobePath, path string) (model.MediaInfo, error) {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	res, err := runner.Run(ctx, util.CmdSpec{
		Path:          ffprobePath,
		Args:          ProbeArgs(path),
		RequireOutput: true,
	})
	if err != nil {
		return model.MediaInfo{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	info, err := ParseProbe(res.Stdout)
	if err != nil {
		return model.MediaInfo{}, err
	}
	if info.SizeBytes == 0 {
		if fi, err := os.Stat(path); err == nil {
			info.SizeBytes = fi.Size()
		}
	}
	return info, nil
}

// ParseProbe converts ffprobe JSON into MediaInfo. Cover art streams are
// not treated as video.
func ParseProbe(data []byte) (model.MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return model.MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	var mi model.MediaInfo
	mi.DurationSec, _ = strconv.ParseFloat(out.Format.Duration, 64)
	mi.SizeBytes, _ = strconv.ParseInt(out.Format.Size, 10, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if mi.VideoCodec != "" || s.Disposition.AttachedPic == 1 {
				continue
			}
			mi.VideoCodec = s.CodecName
			mi.Width = s.Width
			mi.Height = s.Height
			mi.VideoBitrateKbps = kbps(s.BitRate)
			mi.DisplayAspectRatio = s.DisplayAspectRatio
			mi.FPS = frameRate(s.AvgFrameRate)
		case "audio":
			if mi.AudioCodec != "" {
				continue
			}
			mi.AudioCodec = s.CodecName
			mi.AudioBitrateKbps = kbps(s.BitRate)
			mi.SampleRate, _ = strconv.Atoi(s.SampleRate)
		}
	}
	return mi, nil
}

func kbps(bps string) int {
	v, err := strconv.ParseInt(bps, 10, 64)
	if err != nil || v <= 0 {
		return 0
	}
	return int(v / 1000)
}

func frameRate(r string) float64 {
	num, den, ok := strings.Cut(r, "/")
	if !ok {
		f, _ := strconv.ParseFloat(r, 64)
		return f
	}
	n, err1 := strconv.ParseFloat(num, 64)
	d, err2 := strconv.ParseFloat(den, 64)
	if err1 != nil || err2 != nil || d == 0 {
		return 0
	}
	return n / d
}
