package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"tubekit/internal/model"
)

// parseTimestamp accepts seconds ("90", "12.5"), clock form ("1:30",
// "01:02:03.25") or a Go duration ("1m30s").
func parseTimestamp(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	if d, err := time.ParseDuration(s); err == nil && strings.ContainsAny(s, "hms") {
		return d, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	var total float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		// only the seconds field may carry a fraction or exceed 59
		if i < len(parts)-1 && v != float64(int(v)) {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		total = total*60 + v
	}
	return time.Duration(total * float64(time.Second)), nil
}

// parseRange builds a time range from --start/--end. Both empty means the
// whole source and returns nil. A missing end runs to duration.
func parseRange(start, end string, duration time.Duration) (*model.TimeRange, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	r := model.TimeRange{End: duration, Duration: duration}
	var err error
	if start != "" {
		if r.Start, err = parseTimestamp(start); err != nil {
			return nil, fmt.Errorf("--start: %w", err)
		}
	}
	if end != "" {
		if r.End, err = parseTimestamp(end); err != nil {
			return nil, fmt.Errorf("--end: %w", err)
		}
	} else if duration <= 0 {
		return nil, fmt.Errorf("--end is required when the duration is unknown")
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}
