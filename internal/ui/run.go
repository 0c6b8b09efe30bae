package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/time/rate"

	"tubekit/internal/batch"
)

// Run shows the TUI while b runs and returns the batch summary. Quitting
// the TUI cancels the batch and waits for it to wind down.
func Run(ctx context.Context, b Batch) (batch.Summary, error) {
	m := NewModel(ctx, b)
	prog := tea.NewProgram(m, tea.WithContext(ctx))

	done := make(chan batch.Summary, 1)
	go func() {
		var sum batch.Summary
		if b.Start != nil {
			sum = b.Start(m.ctx, newTeaReporter(m.ctx, m.eventCh, rate.Every(100*time.Millisecond)))
		}
		done <- sum
		prog.Send(batchDoneMsg{Summary: sum})
	}()

	_, err := prog.Run()
	if err != nil && ctx.Err() != nil {
		// interrupted from outside; the batch winds down below
		err = nil
	}
	select {
	case sum := <-done:
		return sum, err
	default:
	}
	if b.CancelAll != nil {
		b.CancelAll()
	}
	m.cancel()
	sum := <-done
	sum.CancelledAll = true
	return sum, err
}
