// Package progress tracks per-job progress and carries progress messages
// from the orchestrators to whoever is watching (scheduler, TUI, metrics).
package progress

import "time"

// State identifies where a job is in its lifecycle.
type State string

const (
	StateNone       State = "none"
	StateWaiting    State = "waiting"
	StateLoading    State = "loading"
	StateConverting State = "converting"
	StateMoving     State = "moving"
	StateDone       State = "done"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// IsTerminal reports whether no further transitions happen without a restart.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateCancelled || s == StateFailed
}

// IsActive reports whether the job currently holds a worker slot.
func (s State) IsActive() bool {
	return s == StateLoading || s == StateConverting || s == StateMoving
}

// Update conveys progress or state changes for a job.
// Percent is 0..100 when known; a negative value means unknown.
type Update struct {
	JobID   string
	State   State
	Percent float64

	ETA       *time.Duration // optional
	TotalSize *int64         // optional total bytes
	Speed     string         // optional, e.g. "2.5 MiB/s" or "1.2x"
	Message   string         // short human-friendly status line

	Path string // final output path once Done
	Err  error  // set with StateFailed
}

// Log is a structured log line associated with a job.
type Log struct {
	JobID  string
	Stream LogStream
	Line   string
}

// LogStream indicates which stream produced a log line.
type LogStream int

const (
	StreamStdout LogStream = iota
	StreamStderr
)

// Result is emitted once per job when it completes or fails.
type Result struct {
	JobID      string
	OutputPath string
	Bytes      int64
	State      State
	Err        error // nil on success
}

// Reporter is implemented by UI or any observer interested in progress events.
type Reporter interface {
	Update(u Update)
	Log(l Log)
	Result(r Result)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Update(Update) {}
func (Nop) Log(Log)       {}
func (Nop) Result(Result) {}
