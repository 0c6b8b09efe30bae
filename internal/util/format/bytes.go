// Package format renders sizes and transfer rates for humans.
package format

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// HumanizeBytes converts a byte count into a binary-unit string (e.g., "1.5 MiB").
func HumanizeBytes(b int64) string {
	if b < 0 {
		return "?"
	}
	return humanize.IBytes(uint64(b))
}

// HumanizeSpeed renders a transfer rate in bytes per second (e.g., "2.5 MiB/s").
func HumanizeSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return ""
	}
	return humanize.IBytes(uint64(bytesPerSec)) + "/s"
}

// ParseSize reads sizes like "12.3MiB" or "700 KB" as printed by yt-dlp.
func ParseSize(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "~"))
	if s == "" {
		return 0, false
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, false
	}
	return int64(n), true
}
