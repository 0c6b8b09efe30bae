// Package downloader drives yt-dlp: metadata, playlist enumeration and the
// actual media download with progress.
package downloader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"tubekit/internal/failure"
	"tubekit/internal/formats"
	"tubekit/internal/log"
	"tubekit/internal/model"
	"tubekit/internal/progress"
	"tubekit/internal/util"
)

// ParallelFragments is passed as -N when the download is not trimmed.
const ParallelFragments = 15

// ErrEmptyResult means yt-dlp exited cleanly but produced no file.
var ErrEmptyResult = errors.New("download produced no output file")

// Client runs yt-dlp through a CmdRunner.
type Client struct {
	Path   string // Path to yt-dlp or youtube-dl
	Runner util.CmdRunner
}

// New returns a Client; a nil runner uses the default process runner.
func New(path string, runner util.CmdRunner) *Client {
	if runner == nil {
		runner = util.NewDefaultRunner()
	}
	return &Client{Path: path, Runner: runner}
}

// Request describes one download.
type Request struct {
	URL       string
	JobID     string
	WorkDir   string // a directory owned by this job
	Basename  string // output file name without extension
	Selector  string // -f value; empty with AudioOnly uses the audio selector
	AudioOnly bool

	AudioFormat  string // e.g. "mp3", "m4a"; empty keeps the source codec
	AudioQuality formats.AudioQuality

	Range            *model.TimeRange // nil or full means no trimming
	AllowHDR         bool
	LimitBytesPerSec int64
}

// Trimmed reports whether only a section of the source is requested.
func (r Request) Trimmed() bool {
	return r.Range != nil && !r.Range.IsFull()
}

// SectionArg renders the --download-sections value, e.g. "*10.00-00:00:40.00".
func SectionArg(r model.TimeRange) string {
	return fmt.Sprintf("*%.2f-%s", r.Start.Seconds(), model.FormatClock(r.End))
}

// BuildArgs returns the yt-dlp arguments for req. It performs no I/O.
func BuildArgs(req Request) []string {
	args := []string{
		"--newline",
		"--no-colors",
		"--no-playlist",
		"--progress-template", "download:" + ProgressPrefix + "%(progress)j",
		"-o", filepath.Join(req.WorkDir, req.Basename+".%(ext)s"),
	}

	if req.AudioOnly {
		sel := req.Selector
		if sel == "" {
			sel = formats.AudioSelector()
		}
		args = append(args, "-f", sel, "-x", "--audio-quality", req.AudioQuality.YTDLPCode)
		if req.AudioFormat != "" {
			args = append(args, "--audio-format", req.AudioFormat)
		}
	} else {
		if req.Selector != "" {
			args = append(args, "-f", req.Selector)
		}
		if !req.AllowHDR {
			args = append(args, "--format-sort", "hdr:SDR")
		}
	}

	if req.Trimmed() {
		args = append(args, "--download-sections", SectionArg(*req.Range), "--force-keyframes-at-cuts")
	} else {
		args = append(args, "-N", strconv.Itoa(ParallelFragments))
	}

	if req.LimitBytesPerSec > 0 {
		args = append(args, "--limit-rate", strconv.FormatInt(req.LimitBytesPerSec, 10))
	}

	return append(args, req.URL)
}

// Download runs yt-dlp for req and returns the path of the produced file.
// onUpdate, when set, receives parsed progress in the order yt-dlp emits it.
func (c *Client) Download(ctx context.Context, req Request, onUpdate func(progress.Update)) (string, error) {
	if c.Path == "" {
		return "", errors.New("downloader path is required")
	}
	logger := log.FromContext(ctx)

	var stderrTail bytes.Buffer
	res, err := c.Runner.Run(ctx, util.CmdSpec{
		Path: c.Path,
		Args: BuildArgs(req),
		Dir:  req.WorkDir,
		StdoutLine: func(line string) {
			if onUpdate == nil {
				return
			}
			if u, ok := ParseJSONProgress(line, req.JobID); ok {
				onUpdate(u)
			} else if u, ok := ParseProgress(line, req.JobID); ok {
				onUpdate(u)
			}
		},
		StderrLine: func(line string) {
			if strings.HasPrefix(line, "ERROR") || strings.HasPrefix(line, "WARNING") {
				stderrTail.WriteString(line)
				stderrTail.WriteByte('\n')
			}
		},
	})
	if err != nil {
		if failure.IsCancelled(err) {
			return "", err
		}
		stderr := stderrTail.String()
		if stderr == "" {
			stderr = string(res.Stderr)
		}
		if IsNetworkError(stderr) {
			return "", failure.New(failure.KindNoNetwork, "download", err)
		}
		logger.Warn().Err(err).Str("url", req.URL).Msg("yt-dlp failed")
		return "", err
	}

	path, err := SelectDownloadedFile(req.WorkDir, req.Basename)
	if err != nil {
		return "", failure.New(failure.KindToolFailed, "download", ErrEmptyResult)
	}
	return path, nil
}

// FetchInfo loads metadata and the format catalog for a single item.
func (c *Client) FetchInfo(ctx context.Context, url string) (model.MediaSource, error) {
	res, err := c.Runner.Run(ctx, util.CmdSpec{
		Path:          c.Path,
		Args:          []string{"--dump-json", "--no-playlist", "--no-warnings", url},
		RequireOutput: true,
	})
	if err != nil && len(res.Stdout) == 0 {
		if !failure.IsCancelled(err) && IsNetworkError(string(res.Stderr)) {
			return model.MediaSource{}, failure.New(failure.KindNoNetwork, "fetch info", err)
		}
		return model.MediaSource{}, fmt.Errorf("metadata fetch failed: %w", err)
	}
	info, err := parseInfo(res.Stdout)
	if err != nil {
		return model.MediaSource{}, err
	}
	return info.Source(url), nil
}

// parseInfo decodes the first object, falling back to the last line that
// holds a JSON object with an id.
func parseInfo(out []byte) (YTDLPInfo, error) {
	data := bytes.TrimSpace(out)
	var info YTDLPInfo
	err := json.Unmarshal(data, &info)
	if err == nil && info.ID != "" {
		return info, nil
	}
	lines := bytes.Split(data, []byte("\n"))
	for i := len(lines) - 1; i >= 0; i-- {
		var tmp YTDLPInfo
		if json.Unmarshal(bytes.TrimSpace(lines[i]), &tmp) == nil && tmp.ID != "" {
			return tmp, nil
		}
	}
	if err == nil {
		err = errors.New("no id in output")
	}
	return YTDLPInfo{}, fmt.Errorf("parse metadata JSON: %w", err)
}

// ListPlaylist enumerates a playlist without resolving formats.
func (c *Client) ListPlaylist(ctx context.Context, url string) ([]model.MediaSource, error) {
	res, err := c.Runner.Run(ctx, util.CmdSpec{
		Path:          c.Path,
		Args:          []string{"--flat-playlist", "--dump-json", "--no-warnings", url},
		RequireOutput: true,
	})
	if err != nil && len(res.Stdout) == 0 {
		return nil, fmt.Errorf("playlist fetch failed: %w", err)
	}
	entries := ParsePlaylist(res.Stdout)
	out := make([]model.MediaSource, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Source())
	}
	return out, nil
}

// ParsePlaylist reads one JSON object per line; malformed lines and entries
// without an id are skipped.
func ParsePlaylist(out []byte) []PlaylistEntry {
	var entries []PlaylistEntry
	for _, line := range bytes.Split(out, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var e PlaylistEntry
		if err := json.Unmarshal(line, &e); err != nil || e.ID == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries
}

var networkMarkers = []string{
	"unable to download webpage",
	"temporary failure in name resolution",
	"name or service not known",
	"nodename nor servname provided",
	"getaddrinfo failed",
	"network is unreachable",
	"no route to host",
	"connection refused",
	"failed to resolve",
	"timed out",
}

// IsNetworkError reports whether yt-dlp's stderr points at missing connectivity.
func IsNetworkError(stderr string) bool {
	s := strings.ToLower(stderr)
	for _, m := range networkMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
