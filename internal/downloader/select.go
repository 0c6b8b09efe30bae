package downloader

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SelectDownloadedFile finds the file yt-dlp produced for basename in workdir.
// Partial downloads are ignored; when several candidates remain the most
// playable container wins.
func SelectDownloadedFile(workdir, basename string) (string, error) {
	candidates, err := filepath.Glob(filepath.Join(workdir, globEscape(basename)+".*"))
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		candidates, _ = filepath.Glob(filepath.Join(workdir, "*"))
	}

	kept := candidates[:0]
	for _, c := range candidates {
		if isPartial(c) {
			continue
		}
		if info, err := os.Stat(c); err != nil || info.IsDir() || info.Size() == 0 {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return "", errors.New("no output file found")
	}

	sort.SliceStable(kept, func(i, j int) bool {
		pri := extPriority(filepath.Ext(kept[i]))
		prj := extPriority(filepath.Ext(kept[j]))
		if pri == prj {
			return kept[i] < kept[j]
		}
		return pri < prj
	})
	return kept[0], nil
}

func isPartial(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".part", ".ytdl", ".tmp", ".temp", ".jpg", ".webp", ".png", ".json":
		return true
	}
	return strings.Contains(filepath.Base(path), ".part-Frag")
}

func globEscape(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`)
	return r.Replace(s)
}

// extPriority returns a priority score for file extensions (lower = better).
func extPriority(ext string) int {
	switch strings.ToLower(ext) {
	case ".mp4":
		return 0
	case ".mkv":
		return 1
	case ".webm":
		return 2
	case ".mov":
		return 3
	case ".mp3", ".m4a":
		return 4
	case ".opus", ".ogg", ".flac", ".wav":
		return 5
	default:
		return 100
	}
}
