package encoder

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"tubekit/internal/progress"
)

var timeRe = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseTimeProgress extracts the "time=HH:MM:SS.ff" position from an ffmpeg
// stats line and converts it to a percentage of totalSec.
func ParseTimeProgress(line string, totalSec float64) (float64, bool) {
	m := timeRe.FindStringSubmatch(line)
	if m == nil || totalSec <= 0 {
		return 0, false
	}
	if strings.HasPrefix(m[1], "-") {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mi, _ := strconv.Atoi(m[2])
	s, _ := strconv.ParseFloat(m[3], 64)
	pos := float64(h)*3600 + float64(mi)*60 + s
	pct := pos / totalSec * 100
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

// ProgressState accumulates key=value lines from -progress pipe:1 and yields
// an update whenever a "progress=" line closes a block.
type ProgressState struct {
	OutTimeUs int64
	SpeedStr  string
	TotalSize int64
}

// UpdateFromLine folds one line into the state. totalSec is the length of
// the output being produced; zero leaves Percent unknown.
func (ps *ProgressState) UpdateFromLine(line, jobID string, totalSec float64) (progress.Update, bool) {
	key, val, ok := strings.Cut(line, "=")
	if !ok {
		return progress.Update{}, false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds.
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.OutTimeUs = v
		}
	case "speed":
		if val != "N/A" {
			ps.SpeedStr = val
		}
	case "total_size":
		if v, err := strconv.ParseInt(val, 10, 64); err == nil {
			ps.TotalSize = v
		}
	case "progress":
		u := progress.Update{
			JobID:   jobID,
			State:   progress.StateConverting,
			Percent: -1,
			Speed:   ps.SpeedStr,
			Message: "Converting",
		}
		if totalSec > 0 {
			u.Percent = float64(ps.OutTimeUs) / float64(time.Second/time.Microsecond) / totalSec * 100
			if u.Percent > 100 {
				u.Percent = 100
			}
			if u.Percent < 0 {
				u.Percent = 0
			}
		}
		if val == "end" {
			u.Percent = 100
		}
		if ps.TotalSize > 0 {
			b := ps.TotalSize
			u.TotalSize = &b
		}
		return u, true
	}
	return progress.Update{}, false
}
