package deps

import (
	"fmt"
	"os"
	"os/exec"
)

// FindDownloader returns the path to yt-dlp or youtube-dl.
// If customPath is non-empty, it tries that path or looks it up in PATH.
func FindDownloader(customPath string) (string, error) {
	return find(customPath, "Please install yt-dlp.", "yt-dlp", "youtube-dl")
}

// FindFFmpeg returns the path to ffmpeg.
func FindFFmpeg(customPath string) (string, error) {
	return find(customPath, "Please install ffmpeg.", "ffmpeg")
}

// FindFFprobe returns the path to ffprobe, which ships alongside ffmpeg.
func FindFFprobe(customPath string) (string, error) {
	return find(customPath, "Please install ffmpeg (ffprobe is part of it).", "ffprobe")
}

func find(customPath, hint string, names ...string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err == nil {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find %s at %q", names[0], customPath)
	}
	for _, n := range names {
		if p, err := exec.LookPath(n); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("could not find %s in PATH. %s", names[0], hint)
}
