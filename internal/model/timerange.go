package model

import (
	"errors"
	"fmt"
	"time"
)

// TimeRange selects part of a source of the given total duration.
type TimeRange struct {
	Start    time.Duration
	End      time.Duration
	Duration time.Duration
}

var ErrInvalidRange = errors.New("invalid time range")

// Validate enforces 0 <= start < end <= duration.
func (r TimeRange) Validate() error {
	if r.Start < 0 || r.Start >= r.End || (r.Duration > 0 && r.End > r.Duration) {
		return fmt.Errorf("%w: start=%s end=%s duration=%s", ErrInvalidRange, r.Start, r.End, r.Duration)
	}
	return nil
}

// IsFull reports whether the range covers the whole source.
func (r TimeRange) IsFull() bool {
	return r.Start <= 0 && (r.Duration <= 0 || r.End >= r.Duration)
}

// Length returns end minus start.
func (r TimeRange) Length() time.Duration { return r.End - r.Start }

// FormatClock renders d as HH:MM:SS.ff, the form ffmpeg and yt-dlp accept.
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	cs := d.Milliseconds() / 10
	h := cs / 360000
	m := (cs / 6000) % 60
	s := (cs / 100) % 60
	f := cs % 100
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, f)
}
