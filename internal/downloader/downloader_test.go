package downloader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubekit/internal/failure"
	"tubekit/internal/formats"
	"tubekit/internal/model"
	"tubekit/internal/progress"
	"tubekit/internal/util"
)

func argValue(args []string, flag string) (string, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == flag {
			return args[i+1], true
		}
	}
	return "", false
}

func hasArg(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func TestBuildArgs_Trimmed(t *testing.T) {
	req := Request{
		URL:      "https://youtu.be/x",
		WorkDir:  "/tmp/w",
		Basename: "clip",
		Selector: "22",
		Range:    &model.TimeRange{Start: 10 * time.Second, End: 40 * time.Second, Duration: 60 * time.Second},
	}
	args := BuildArgs(req)

	v, ok := argValue(args, "--download-sections")
	require.True(t, ok)
	assert.Equal(t, "*10.00-00:00:40.00", v)
	assert.True(t, hasArg(args, "--force-keyframes-at-cuts"))
	assert.False(t, hasArg(args, "-N"), "parallel fragments must be off when trimming")

	f, _ := argValue(args, "-f")
	assert.Equal(t, "22", f)
	sort, _ := argValue(args, "--format-sort")
	assert.Equal(t, "hdr:SDR", sort)
	assert.Equal(t, "https://youtu.be/x", args[len(args)-1])
	out, _ := argValue(args, "-o")
	assert.Equal(t, filepath.Join("/tmp/w", "clip.%(ext)s"), out)
}

func TestBuildArgs_FullAndAudio(t *testing.T) {
	args := BuildArgs(Request{
		URL:              "u",
		AudioOnly:        true,
		AudioFormat:      "mp3",
		AudioQuality:     formats.AudioQualityFor("medium"),
		AllowHDR:         true,
		LimitBytesPerSec: 1_250_000,
		Range:            &model.TimeRange{End: time.Minute, Duration: time.Minute},
	})

	n, ok := argValue(args, "-N")
	require.True(t, ok)
	assert.Equal(t, "15", n)
	assert.False(t, hasArg(args, "--download-sections"))

	f, _ := argValue(args, "-f")
	assert.Equal(t, "bestaudio[ext=m4a]/bestaudio", f)
	assert.True(t, hasArg(args, "-x"))
	q, _ := argValue(args, "--audio-quality")
	assert.Equal(t, "5", q)
	af, _ := argValue(args, "--audio-format")
	assert.Equal(t, "mp3", af)
	rate, _ := argValue(args, "--limit-rate")
	assert.Equal(t, "1250000", rate)
	assert.False(t, hasArg(args, "--format-sort"))
}

func TestParsePlaylist_SkipsMalformed(t *testing.T) {
	out := []byte(strings.Join([]string{
		`{"id":"a1","title":"First","url":"https://www.youtube.com/watch?v=a1","duration":61}`,
		`not json at all`,
		`{"title":"no id"}`,
		``,
		`{"id":"b2","title":"Second","channel":"Chan"}`,
	}, "\n"))

	entries := ParsePlaylist(out)
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].ID)

	src := entries[1].Source()
	assert.Equal(t, "https://www.youtube.com/watch?v=b2", src.URL)
	assert.Equal(t, "Chan", src.Uploader)
	assert.Equal(t, model.SourceRemote, src.Kind)
	assert.Equal(t, 61*time.Second, entries[0].Source().Duration)
}

func TestFetchInfo(t *testing.T) {
	const dump = `{"id":"vid","title":"A Title","uploader":"Up","duration":60.5,"upload_date":"20240102",` +
		`"formats":[{"format_id":"18","ext":"mp4","height":360,"vcodec":"avc1","acodec":"mp4a","tbr":500,"protocol":"https"},` +
		`{"format_id":"137","ext":"mp4","height":1080,"vcodec":"avc1","acodec":"none","protocol":"http_dash_segments","filesize_approx":1000}]}`

	var gotArgs []string
	c := New("yt-dlp", util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		gotArgs = spec.Args
		return util.CmdResult{Stdout: []byte(dump + "\n")}, nil
	}))

	src, err := c.FetchInfo(context.Background(), "https://youtu.be/vid")
	require.NoError(t, err)
	assert.Contains(t, gotArgs, "--dump-json")
	assert.Equal(t, "vid", src.ID)
	assert.Equal(t, "Up", src.Uploader)
	assert.Equal(t, 60500*time.Millisecond, src.Duration)
	require.Len(t, src.Formats, 2)
	assert.True(t, src.Formats[1].IsSegmented())
	assert.Equal(t, int64(1000), src.Formats[1].FileSize)
	assert.Equal(t, 2024, src.DefaultTags().Year)
}

func TestDownload_WritesAndReportsProgress(t *testing.T) {
	dir := t.TempDir()
	c := New("yt-dlp", util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		spec.StdoutLine(ProgressPrefix + `{"status":"downloading","downloaded_bytes":50,"total_bytes":100}`)
		spec.StdoutLine("[download] 100.0% of 100B at 1.00KiB/s ETA 00:00")
		out, _ := argValue(spec.Args, "-o")
		path := strings.Replace(out, "%(ext)s", "webm", 1)
		return util.CmdResult{}, os.WriteFile(path, []byte("media"), 0o644)
	}))

	var updates []progress.Update
	path, err := c.Download(context.Background(), Request{URL: "u", JobID: "j", WorkDir: dir, Basename: "clip"},
		func(u progress.Update) { updates = append(updates, u) })
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "clip.webm"), path)
	require.Len(t, updates, 2)
	assert.Equal(t, 50.0, updates[0].Percent)
	assert.Equal(t, 100.0, updates[1].Percent)
}

func TestDownload_EmptyResult(t *testing.T) {
	c := New("yt-dlp", util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		return util.CmdResult{}, nil
	}))
	_, err := c.Download(context.Background(), Request{URL: "u", WorkDir: t.TempDir(), Basename: "x"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
	assert.Equal(t, failure.KindToolFailed, failure.KindOf(err))
}

func TestDownload_NoNetwork(t *testing.T) {
	c := New("yt-dlp", util.RunnerFunc(func(ctx context.Context, spec util.CmdSpec) (util.CmdResult, error) {
		spec.StderrLine("ERROR: [youtube] x: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>")
		return util.CmdResult{Code: 1}, failure.New(failure.KindToolFailed, "yt-dlp", errors.New("exit 1"))
	}))
	_, err := c.Download(context.Background(), Request{URL: "u", WorkDir: t.TempDir(), Basename: "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, failure.KindNoNetwork, failure.KindOf(err))
}

func TestIsNetworkError(t *testing.T) {
	assert.True(t, IsNetworkError("ERROR: Unable to download webpage: HTTP Error 404"))
	assert.False(t, IsNetworkError("ERROR: Requested format is not available"))
}
