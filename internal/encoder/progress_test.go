package encoder

import (
	"testing"

	"tubekit/internal/progress"
)

func TestProgressState_UpdateFromLine(t *testing.T) {
	tests := []struct {
		name        string
		lines       []string
		totalSec    float64
		wantOk      bool
		wantPercent float64
		wantSpeed   string
	}{
		{
			name: "video progress sequence",
			lines: []string{
				"out_time_us=30000000",
				"speed=1.5x",
				"total_size=10485760",
				"progress=continue",
			},
			totalSec:    60.0,
			wantOk:      true,
			wantPercent: 50.0,
			wantSpeed:   "1.5x",
		},
		{
			name: "unknown duration",
			lines: []string{
				"speed=N/A",
				"total_size=5242880",
				"progress=continue",
			},
			wantOk:      true,
			wantPercent: -1.0,
		},
		{
			name: "end marker",
			lines: []string{
				"out_time_ms=59000000",
				"progress=end",
			},
			totalSec:    60.0,
			wantOk:      true,
			wantPercent: 100.0,
		},
		{
			name:   "no progress marker",
			lines:  []string{"out_time_us=1000", "bitrate=128kbits/s"},
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ps := &ProgressState{}
			var u progress.Update
			var ok bool
			for _, line := range tt.lines {
				u, ok = ps.UpdateFromLine(line, "job", tt.totalSec)
			}
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if u.Percent != tt.wantPercent {
				t.Errorf("Percent = %v, want %v", u.Percent, tt.wantPercent)
			}
			if u.State != progress.StateConverting {
				t.Errorf("State = %v, want converting", u.State)
			}
			if u.Speed != tt.wantSpeed {
				t.Errorf("Speed = %q, want %q", u.Speed, tt.wantSpeed)
			}
		})
	}
}

func TestParseTimeProgress(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		total  float64
		want   float64
		wantOk bool
	}{
		{
			name:   "stats line",
			line:   "frame=  240 fps=120 q=28.0 size=    1024kB time=00:00:15.00 bitrate= 559.2kbits/s speed=7.5x",
			total:  60,
			want:   25,
			wantOk: true,
		},
		{name: "hours", line: "time=01:00:00.00", total: 7200, want: 50, wantOk: true},
		{name: "clamped", line: "time=00:02:00.00", total: 60, want: 100, wantOk: true},
		{name: "negative start", line: "time=-00:00:00.02", total: 60, wantOk: false},
		{name: "no time", line: "Press [q] to stop", total: 60, wantOk: false},
		{name: "unknown total", line: "time=00:00:01.00", total: 0, wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimeProgress(tt.line, tt.total)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && got != tt.want {
				t.Errorf("percent = %v, want %v", got, tt.want)
			}
		})
	}
}
