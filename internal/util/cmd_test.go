//go:build unix

package util

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubekit/internal/failure"
)

func TestRun_StreamsLines(t *testing.T) {
	var lines []string
	res, err := Run(context.Background(), CmdSpec{
		Path:          "sh",
		Args:          []string{"-c", `printf 'a\rb\nc\n'; echo err >&2`},
		StdoutLine:    func(l string) { lines = append(lines, l) },
		CaptureStdout: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lines)
	assert.Equal(t, "a\nb\nc\n", string(res.Stdout))
	assert.Equal(t, "err\n", string(res.Stderr))
}

func TestRun_NonZeroExitIsToolFailed(t *testing.T) {
	res, err := Run(context.Background(), CmdSpec{Path: "sh", Args: []string{"-c", "exit 3"}})
	require.Error(t, err)
	assert.Equal(t, 3, res.Code)
	assert.True(t, errors.Is(err, failure.ToolFailed))
}

func TestRun_RequireOutput(t *testing.T) {
	_, err := Run(context.Background(), CmdSpec{Path: "sh", Args: []string{"-c", "true"}, RequireOutput: true})
	require.Error(t, err)
	assert.Equal(t, failure.KindToolFailed, failure.KindOf(err))
}

func TestRun_CancelKillsProcessGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	// The child sleep inherits the pipes; only a group kill lets Run return promptly.
	_, err := Run(ctx, CmdSpec{Path: "sh", Args: []string{"-c", "sleep 30 & sleep 30; wait"}})
	require.Error(t, err)
	assert.True(t, failure.IsCancelled(err), "got %v", err)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestShellQuote(t *testing.T) {
	got := ShellQuote("ffmpeg", []string{"-i", "my file.mp4", "-vf", "scale=1280:720", ""})
	assert.Equal(t, "ffmpeg -i 'my file.mp4' -vf scale=1280:720 ''", got)
}
