package batch

import (
	"fmt"
	"strings"

	"tubekit/internal/failure"
	"tubekit/internal/log"
)

// Category groups failed jobs for the batch summary.
type Category string

const (
	CategoryUnauthorizedAccess Category = "unauthorized_access"
	CategoryDirectoryNotFound  Category = "directory_not_found"
	CategoryNotEnoughSpace     Category = "not_enough_space"
	CategoryOther              Category = "other"
)

var categoryOrder = []Category{
	CategoryUnauthorizedAccess,
	CategoryDirectoryNotFound,
	CategoryNotEnoughSpace,
	CategoryOther,
}

var categoryText = map[Category]string{
	CategoryUnauthorizedAccess: "access denied",
	CategoryDirectoryNotFound:  "directory not found",
	CategoryNotEnoughSpace:     "not enough space",
	CategoryOther:              "other errors",
}

// Categorize maps a job error onto a Category.
func Categorize(err error) Category {
	switch failure.KindOf(err) {
	case failure.KindUnauthorizedAccess:
		return CategoryUnauthorizedAccess
	case failure.KindDirectoryNotFound:
		return CategoryDirectoryNotFound
	case failure.KindInsufficientDiskSpace:
		return CategoryNotEnoughSpace
	default:
		return CategoryOther
	}
}

// Summary is the outcome of one batch run.
type Summary struct {
	Total     int
	Completed int
	Failed    int
	Cancelled int
	Skipped   int // removed, cancelled before start, or never started

	Failures map[Category]int

	// CancelledAll is set when the whole batch was stopped with CancelAll.
	CancelledAll bool
}

// Message renders the user-facing summary line.
func (s Summary) Message() string {
	if s.Failed == 0 {
		if s.Completed == 1 {
			return "1 item completed"
		}
		return fmt.Sprintf("%d items completed", s.Completed)
	}
	parts := make([]string, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		if n := s.Failures[c]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, categoryText[c]))
		}
	}
	return fmt.Sprintf("%d of %d items failed (%s)", s.Failed, s.Completed+s.Failed, strings.Join(parts, ", "))
}

// Notifier is told about a finished batch.
type Notifier interface {
	Notify(Summary)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Summary)

func (f NotifierFunc) Notify(s Summary) { f(s) }

// LogNotifier writes the summary to the log.
type LogNotifier struct{}

func (LogNotifier) Notify(s Summary) {
	ev := log.L().Info()
	if s.Failed > 0 {
		ev = log.L().Warn()
	}
	ev.Int("completed", s.Completed).
		Int("failed", s.Failed).
		Int("cancelled", s.Cancelled).
		Msg(s.Message())
}
