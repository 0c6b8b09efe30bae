package progress

import "sync"

// JobProgress is a point-in-time copy of a Tracker.
type JobProgress struct {
	Percent             float64
	State               State
	Speed               string
	TotalSize           int64
	IsDone              bool
	IsCancelledOrFailed bool
}

// Tracker owns the progress of a single job. Only the orchestrator driving the
// job writes to it; readers take snapshots.
type Tracker struct {
	mu sync.RWMutex
	p  JobProgress
}

// NewTracker returns a tracker in the given initial state.
func NewTracker(initial State) *Tracker {
	return &Tracker{p: JobProgress{State: initial}}
}

// SetProgress applies a percentage reported by an external tool.
// Values arrive out of order, so only increases are kept; 100 marks the job
// done and 0 resets the counter unless the job is already done.
func (t *Tracker) SetProgress(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.p.IsDone {
		return
	}
	switch {
	case v >= 100:
		t.p.Percent = 100
		t.p.IsDone = true
	case v <= 0:
		t.p.Percent = 0
	case v > t.p.Percent:
		t.p.Percent = v
	}
}

// Percent returns the displayed value.
func (t *Tracker) Percent() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p.Percent
}

// IsDone reports whether progress reached 100.
func (t *Tracker) IsDone() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p.IsDone
}

// SetState records a state transition. Done also pins progress at 100.
func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.State = s
	if s == StateDone {
		t.p.Percent = 100
		t.p.IsDone = true
	}
}

// State returns the current lifecycle state.
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p.State
}

// MarkCancelledOrFailed sets the sticky flag. Only Reset clears it.
func (t *Tracker) MarkCancelledOrFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.IsCancelledOrFailed = true
}

// IsCancelledOrFailed reports the sticky flag.
func (t *Tracker) IsCancelledOrFailed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p.IsCancelledOrFailed
}

// ResetProgress zeroes the counter and telemetry, keeping state and the sticky flag.
// Used between download retries.
func (t *Tracker) ResetProgress() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Percent = 0
	t.p.IsDone = false
	t.p.Speed = ""
	t.p.TotalSize = 0
}

// Reset restores the default progress, clearing the sticky flag.
func (t *Tracker) Reset(initial State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p = JobProgress{State: initial}
}

// SetSpeed records the latest transfer or encode speed.
func (t *Tracker) SetSpeed(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.p.Speed = s
}

// SetTotalSize records the expected output size in bytes.
func (t *Tracker) SetTotalSize(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n > 0 {
		t.p.TotalSize = n
	}
}

// Snapshot returns a copy of the current progress.
func (t *Tracker) Snapshot() JobProgress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}
