package ui

import (
	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"

	"tubekit/internal/pipeline"
	"tubekit/internal/progress"
)

type jobState struct {
	job   *pipeline.Job
	label string
	kind  pipeline.Kind

	state  progress.State
	status string
	err    error
	done   bool

	outputPath string
	bytes      int64
	percent    float64 // -1 means unknown
	speed      string

	spinner spinner.Model
	bar     bubblesprogress.Model
}

func newJobState(job *pipeline.Job, styles Styles) jobState {
	sp := spinner.New()
	sp.Style = styles.Spinner
	bar := bubblesprogress.New(
		bubblesprogress.WithDefaultGradient(),
		bubblesprogress.WithWidth(40),
	)
	snap := job.Tracker.Snapshot()
	percent := -1.0
	if snap.Percent > 0 {
		percent = snap.Percent
	}
	return jobState{
		job:     job,
		label:   job.Label(),
		kind:    job.Kind,
		state:   snap.State,
		status:  "Queued",
		percent: percent,
		speed:   snap.Speed,
		spinner: sp,
		bar:     bar,
	}
}

// reset puts the row back to its queued look after a restart.
func (js *jobState) reset() {
	js.done = false
	js.err = nil
	js.outputPath = ""
	js.bytes = 0
	js.percent = -1
	js.speed = ""
	js.status = "Restarting"
}
