package ui

import (
	"tubekit/internal/batch"
	"tubekit/internal/progress"
)

type jobUpdateMsg struct {
	U progress.Update
}

type jobResultMsg struct {
	R progress.Result
}

type batchDoneMsg struct {
	Summary batch.Summary
}
