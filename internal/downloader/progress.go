package downloader

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"tubekit/internal/progress"
	"tubekit/internal/util/format"
)

// ProgressPrefix marks lines printed by our --progress-template.
const ProgressPrefix = "[tubekit] "

type jsonProgress struct {
	Status             string   `json:"status"`
	DownloadedBytes    float64  `json:"downloaded_bytes"`
	TotalBytes         *float64 `json:"total_bytes"`
	TotalBytesEstimate *float64 `json:"total_bytes_estimate"`
	Speed              *float64 `json:"speed"`
	ETA                *float64 `json:"eta"`
	FragmentIndex      int      `json:"fragment_index"`
	FragmentCount      int      `json:"fragment_count"`
}

// ParseJSONProgress parses a line produced by the progress template.
func ParseJSONProgress(line, jobID string) (progress.Update, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, ProgressPrefix) {
		return progress.Update{}, false
	}
	var p jsonProgress
	if err := json.Unmarshal([]byte(strings.TrimPrefix(line, ProgressPrefix)), &p); err != nil {
		return progress.Update{}, false
	}

	u := progress.Update{
		JobID:   jobID,
		State:   progress.StateLoading,
		Percent: -1,
		Message: "Downloading",
	}

	var total float64
	switch {
	case p.TotalBytes != nil && *p.TotalBytes > 0:
		total = *p.TotalBytes
	case p.TotalBytesEstimate != nil && *p.TotalBytesEstimate > 0:
		total = *p.TotalBytesEstimate
	}
	if total > 0 {
		u.Percent = p.DownloadedBytes / total * 100
		n := int64(total)
		u.TotalSize = &n
	} else if p.FragmentCount > 0 {
		u.Percent = float64(p.FragmentIndex) / float64(p.FragmentCount) * 100
	}
	if p.Status == "finished" {
		u.Percent = 100
	}
	if u.Percent > 100 {
		u.Percent = 100
	}
	if p.Speed != nil {
		u.Speed = format.HumanizeSpeed(*p.Speed)
	}
	if p.ETA != nil && *p.ETA >= 0 {
		d := time.Duration(*p.ETA * float64(time.Second))
		u.ETA = &d
	}
	return u, true
}

// ParseProgress parses the default yt-dlp progress lines, used when the
// installed yt-dlp ignores --progress-template.
func ParseProgress(line, jobID string) (u progress.Update, ok bool) {
	// [download]  45.2% of 10.00MiB at  1.50MiB/s ETA 00:04
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[download]") {
		return progress.Update{}, false
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, "[download]"))

	idx := strings.Index(rest, "%")
	if idx == -1 {
		return progress.Update{}, false
	}
	percent, err := strconv.ParseFloat(strings.TrimSpace(rest[:idx]), 64)
	if err != nil {
		return progress.Update{}, false
	}

	u = progress.Update{
		JobID:   jobID,
		State:   progress.StateLoading,
		Percent: percent,
		Message: "Downloading",
	}

	fields := strings.Fields(rest[idx+1:])
	for i := 0; i+1 < len(fields); i++ {
		switch fields[i] {
		case "of":
			if n, ok := format.ParseSize(fields[i+1]); ok {
				u.TotalSize = &n
			}
		case "at":
			if fields[i+1] != "Unknown" {
				u.Speed = fields[i+1]
			}
		case "ETA":
			if d, err := parseETA(fields[i+1]); err == nil {
				u.ETA = &d
			}
		}
	}
	return u, true
}

// parseETA parses duration strings like "00:04", "01:23:45", etc.
func parseETA(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, strconv.ErrSyntax
	}
	var d time.Duration
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		d = d*60 + time.Duration(n)
	}
	return d * time.Second, nil
}
