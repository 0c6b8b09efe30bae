package progress

import (
	"context"
	"sync"
)

// Event is the union carried over a progress channel.
type Event struct {
	Update *Update
	Log    *Log
	Result *Result
}

// ChannelReporter turns Reporter calls into channel sends. Sends never block
// the caller longer than the context allows.
type ChannelReporter struct {
	ctx context.Context
	ch  chan Event
}

// NewChannelReporter returns a reporter backed by a buffered channel.
func NewChannelReporter(ctx context.Context, buffer int) *ChannelReporter {
	if buffer <= 0 {
		buffer = 256
	}
	return &ChannelReporter{ctx: ctx, ch: make(chan Event, buffer)}
}

// Events exposes the receive side.
func (r *ChannelReporter) Events() <-chan Event { return r.ch }

// Close closes the underlying channel; no sends may follow.
func (r *ChannelReporter) Close() { close(r.ch) }

func (r *ChannelReporter) send(ev Event) {
	select {
	case r.ch <- ev:
	case <-r.ctx.Done():
	}
}

func (r *ChannelReporter) Update(u Update) { r.send(Event{Update: &u}) }
func (r *ChannelReporter) Log(l Log)       { r.send(Event{Log: &l}) }
func (r *ChannelReporter) Result(res Result) {
	r.send(Event{Result: &res})
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	Updates []Update
	Logs    []Log
	Results []Result
}

func (r *Recorder) Update(u Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, u)
}

func (r *Recorder) Log(l Log) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Logs = append(r.Logs, l)
}

func (r *Recorder) Result(res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, res)
}

// States returns the distinct consecutive states seen for jobID.
func (r *Recorder) States(jobID string) []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []State
	for _, u := range r.Updates {
		if u.JobID != jobID || u.State == "" {
			continue
		}
		if len(out) > 0 && out[len(out)-1] == u.State {
			continue
		}
		out = append(out, u.State)
	}
	return out
}
