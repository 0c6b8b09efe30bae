package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tubekit/internal/progress"
)

func (m Model) viewHeader() string {
	done, total := 0, len(m.order)
	for _, id := range m.order {
		if m.jobs[id].done {
			done++
		}
	}
	title := m.styles.Title.Render(m.batch.Title)
	sub := m.styles.Subtitle.Render(fmt.Sprintf("Jobs: %d/%d done • ↑/↓ select • c: cancel • r: restart • q: quit", done, total))
	return title + "\n" + sub
}

func (m Model) viewJobs() string {
	var b strings.Builder
	for i, id := range m.order {
		b.WriteString(m.viewJob(m.jobs[id], i == m.selected))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) stateStyle(s progress.State) lipgloss.Style {
	switch s {
	case progress.StateWaiting, progress.StateNone:
		return m.styles.StateWaiting
	case progress.StateLoading:
		return m.styles.StateLoading
	case progress.StateConverting:
		return m.styles.StateConvert
	case progress.StateMoving:
		return m.styles.StateMoving
	case progress.StateDone:
		return m.styles.Success
	case progress.StateCancelled:
		return m.styles.Warning
	case progress.StateFailed:
		return m.styles.Error
	}
	return m.styles.JobInfo
}

func (m Model) viewJob(js *jobState, selected bool) string {
	cursor := "  "
	title := m.styles.JobTitle
	if selected {
		cursor = m.styles.Selected.Render("> ")
		title = m.styles.Selected
	}
	left := cursor + title.Render(truncate(js.label, 48))
	state := m.stateStyle(js.state).Render(string(js.state))

	var right string
	switch {
	case js.done && js.err == nil && js.state == progress.StateDone:
		right = m.styles.Success.Render("✓ done")
	case js.done && js.state == progress.StateCancelled:
		right = m.styles.Warning.Render("- cancelled")
	case js.done:
		right = m.styles.Error.Render("✗ error")
	case js.percent >= 0 && js.percent <= 100 && js.state.IsActive():
		right = fmt.Sprintf("%s %5.1f%%", js.bar.ViewAs(js.percent/100.0), js.percent)
		if js.speed != "" {
			right += "  " + m.styles.Faint.Render(js.speed)
		}
	default:
		right = m.styles.Spinner.Render(js.spinner.View()) + " " + m.styles.Faint.Render("waiting")
	}

	line1 := fmt.Sprintf("%s  %s", left, state)
	line2 := m.styles.JobInfo.Render(js.status)
	return m.styles.Box.Render(line1 + "\n" + right + "\n" + line2)
}

func (m Model) viewSummary() string {
	if m.summary == nil {
		return ""
	}
	var b strings.Builder
	if m.summary.Failed > 0 {
		b.WriteString(m.styles.Error.Render(m.summary.Message()))
	} else {
		b.WriteString(m.styles.Success.Render(m.summary.Message()))
	}
	b.WriteString("\n")
	for _, id := range m.order {
		js := m.jobs[id]
		if js.done && js.err == nil && js.outputPath != "" {
			b.WriteString(m.styles.Success.Render("  • " + js.outputPath))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	rs := []rune(s)
	if n <= 0 || len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
