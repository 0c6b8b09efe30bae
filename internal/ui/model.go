package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"tubekit/internal/batch"
	"tubekit/internal/pipeline"
	"tubekit/internal/progress"
	"tubekit/internal/util/format"
)

// Batch is what the TUI drives: the jobs to show and how to run them.
type Batch struct {
	Title string
	Jobs  []*pipeline.Job

	// Start runs the batch to completion and reports through rep.
	Start func(ctx context.Context, rep progress.Reporter) batch.Summary
	// CancelAll stops the running batch.
	CancelAll func()
}

type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	batch    Batch
	order    []string
	jobs     map[string]*jobState
	selected int

	summary *batch.Summary

	width, height int
	styles        Styles

	// fed by teaReporter
	eventCh chan tea.Msg
}

func NewModel(ctx context.Context, b Batch) Model {
	c, cancel := context.WithCancel(ctx)
	sty := defaultStyles()

	jobs := make(map[string]*jobState, len(b.Jobs))
	order := make([]string, 0, len(b.Jobs))
	for _, j := range b.Jobs {
		js := newJobState(j, sty)
		jobs[j.ID] = &js
		order = append(order, j.ID)
	}
	if b.Title == "" {
		b.Title = "tubekit"
	}
	return Model{
		ctx:     c,
		cancel:  cancel,
		batch:   b,
		order:   order,
		jobs:    jobs,
		styles:  sty,
		eventCh: make(chan tea.Msg, 256),
	}
}

func (m Model) Init() tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(m.order)+1)
	for _, id := range m.order {
		cmds = append(cmds, m.jobs[id].spinner.Tick)
	}
	cmds = append(cmds, m.listenEventsCmd())
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.batch.CancelAll != nil {
				m.batch.CancelAll()
			}
			m.cancel()
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(m.order)-1 {
				m.selected++
			}
		case "c":
			if js := m.selectedJob(); js != nil && !js.done {
				js.job.Cancel(false)
				js.status = "Cancelling"
				if st := js.job.Tracker.State(); st == progress.StateCancelled {
					// queued; the scheduler reports the result when it reaches the job
					js.state = st
					js.status = stateText(st)
				}
			}
		case "r":
			if js := m.selectedJob(); js != nil && js.job.Running() {
				js.job.Cancel(true)
				js.reset()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case jobUpdateMsg:
		m.applyUpdate(msg.U)
		return m, m.listenEventsCmd()

	case jobResultMsg:
		m.applyResult(msg.R)
		return m, m.listenEventsCmd()

	case batchDoneMsg:
		sum := msg.Summary
		m.summary = &sum
		return m, tea.Quit
	}

	var cmds []tea.Cmd
	for _, id := range m.order {
		js := m.jobs[id]
		var c tea.Cmd
		js.spinner, c = js.spinner.Update(msg)
		if c != nil {
			cmds = append(cmds, c)
		}
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	out := m.viewHeader() + "\n\n" + m.viewJobs()
	if s := m.viewSummary(); s != "" {
		out += "\n" + s
	}
	return out
}

func (m Model) selectedJob() *jobState {
	if m.selected < 0 || m.selected >= len(m.order) {
		return nil
	}
	return m.jobs[m.order[m.selected]]
}

func (m Model) applyUpdate(u progress.Update) {
	js, ok := m.jobs[u.JobID]
	if !ok {
		return
	}
	if js.done && !u.State.IsTerminal() {
		// a restarted job reports again
		js.reset()
	}
	js.state = u.State
	js.percent = u.Percent
	if u.Speed != "" {
		js.speed = u.Speed
	}
	if u.TotalSize != nil {
		js.bytes = *u.TotalSize
	}
	switch {
	case u.Message != "":
		js.status = u.Message
	case u.State == progress.StateFailed && u.Err != nil:
		js.status = u.Err.Error()
	default:
		js.status = stateText(u.State)
	}
}

func (m Model) applyResult(r progress.Result) {
	js, ok := m.jobs[r.JobID]
	if !ok {
		return
	}
	js.done = true
	js.err = r.Err
	js.state = r.State
	switch r.State {
	case progress.StateDone:
		js.percent = 100
		js.outputPath = r.OutputPath
		js.bytes = r.Bytes
		if r.OutputPath != "" {
			js.status = fmt.Sprintf("Saved: %s (%s)", filepath.Base(r.OutputPath), format.HumanizeBytes(r.Bytes))
		} else {
			js.status = "Completed"
		}
	case progress.StateCancelled:
		js.status = "Cancelled"
	default:
		js.percent = -1
		if r.Err != nil {
			js.status = r.Err.Error()
		}
	}
}

func (m Model) listenEventsCmd() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
			return nil
		case msg := <-m.eventCh:
			return msg
		}
	}
}

func stateText(s progress.State) string {
	switch s {
	case progress.StateNone, progress.StateWaiting:
		return "Queued"
	case progress.StateLoading:
		return "Downloading"
	case progress.StateConverting:
		return "Converting"
	case progress.StateMoving:
		return "Moving"
	case progress.StateDone:
		return "Completed"
	case progress.StateCancelled:
		return "Cancelled"
	case progress.StateFailed:
		return "Failed"
	}
	return string(s)
}

// teaReporter feeds reporter events into the tea loop. State changes and
// results always get through; plain percent ticks are rate limited and
// dropped when the loop falls behind.
type teaReporter struct {
	ctx     context.Context
	ch      chan<- tea.Msg
	limiter *rate.Limiter

	mu   sync.Mutex
	last map[string]progress.State
}

func newTeaReporter(ctx context.Context, ch chan<- tea.Msg, every rate.Limit) *teaReporter {
	return &teaReporter{
		ctx:     ctx,
		ch:      ch,
		limiter: rate.NewLimiter(every, 1),
		last:    make(map[string]progress.State),
	}
}

func (r *teaReporter) Update(u progress.Update) {
	r.mu.Lock()
	changed := r.last[u.JobID] != u.State
	r.last[u.JobID] = u.State
	r.mu.Unlock()

	allowed := r.limiter.Allow()
	if changed || u.State.IsTerminal() {
		r.send(jobUpdateMsg{U: u})
		return
	}
	if !allowed {
		return
	}
	select {
	case r.ch <- jobUpdateMsg{U: u}:
	default:
	}
}

func (r *teaReporter) Log(progress.Log) {}

func (r *teaReporter) Result(res progress.Result) {
	r.send(jobResultMsg{R: res})
}

func (r *teaReporter) send(msg tea.Msg) {
	select {
	case r.ch <- msg:
	case <-r.ctx.Done():
	}
}
