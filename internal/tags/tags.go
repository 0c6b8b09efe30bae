// Package tags writes title/artist/description/year metadata into finished
// media files by remuxing them through ffmpeg.
package tags

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tubekit/internal/failure"
	"tubekit/internal/model"
	"tubekit/internal/util"
)

var taggable = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".mp4":  true,
	".mkv":  true,
	".flac": true,
	".ogg":  true,
	".opus": true,
	".webm": true,
	".mov":  true,
}

// IsTaggable reports whether files with path's extension carry container tags.
func IsTaggable(path string) bool {
	return taggable[strings.ToLower(filepath.Ext(path))]
}

// Args builds the ffmpeg remux that copies every stream and sets the tags.
func Args(inputPath, outputPath string, t model.Tags) []string {
	args := []string{"-y", "-hide_banner", "-i", inputPath, "-map", "0", "-c", "copy"}
	add := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			args = append(args, "-metadata", k+"="+v)
		}
	}
	add("title", t.Title)
	add("artist", t.Artist)
	add("comment", t.Description)
	add("description", t.Description)
	if t.Year > 0 {
		add("date", strconv.Itoa(t.Year))
	}
	if strings.EqualFold(filepath.Ext(outputPath), ".mp3") {
		args = append(args, "-id3v2_version", "3")
	}
	return append(args, outputPath)
}

// Writer applies tags in place.
type Writer struct {
	FFmpegPath string
	Runner     util.CmdRunner
}

// Write rewrites path with t. Untaggable files are left alone. The original
// is replaced only after ffmpeg succeeds.
func (w Writer) Write(ctx context.Context, path string, t model.Tags) error {
	if !IsTaggable(path) {
		return nil
	}
	if t == (model.Tags{}) {
		return nil
	}
	if w.FFmpegPath == "" {
		return errors.New("ffmpeg path is required")
	}
	runner := w.Runner
	if runner == nil {
		runner = util.NewDefaultRunner()
	}

	ext := filepath.Ext(path)
	tmp := strings.TrimSuffix(path, ext) + ".tagging" + ext
	if _, err := runner.Run(ctx, util.CmdSpec{Path: w.FFmpegPath, Args: Args(path, tmp, t)}); err != nil {
		_ = util.RemoveIfExists(tmp)
		return fmt.Errorf("write tags: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = util.RemoveIfExists(tmp)
		return failure.Wrap("replace tagged file", err)
	}
	return nil
}

// MustPropagate reports whether a tag-write error is one the caller has to
// see rather than a cosmetic failure to swallow.
func MustPropagate(err error) bool {
	if err == nil {
		return false
	}
	switch failure.Classify(err) {
	case failure.KindCancelled, failure.KindUnauthorizedAccess, failure.KindDirectoryNotFound,
		failure.KindPathTooLong, failure.KindInsufficientDiskSpace:
		return true
	}
	return false
}
