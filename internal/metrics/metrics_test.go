package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobFinished_NormalizesLabels(t *testing.T) {
	before := testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("download", "done"))
	JobFinished(" Download ", "DONE", 3)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("download", "done")))

	before = testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("unknown", "unknown"))
	JobFinished("upload", "exploded", -1)
	assert.Equal(t, before+1, testutil.ToFloat64(jobsFinishedTotal.WithLabelValues("unknown", "unknown")))
}

func TestActiveJobsGauge(t *testing.T) {
	before := testutil.ToFloat64(activeJobs)
	JobStarted()
	JobStarted()
	JobStopped()
	assert.Equal(t, before+1, testutil.ToFloat64(activeJobs))
	JobStopped()
	assert.Equal(t, before, testutil.ToFloat64(activeJobs))
}

func TestBatchFailure_UnknownCategoryIsOther(t *testing.T) {
	before := testutil.ToFloat64(batchFailuresTotal.WithLabelValues("other"))
	BatchFailure("weird")
	BatchFailure("other")
	assert.Equal(t, before+2, testutil.ToFloat64(batchFailuresTotal.WithLabelValues("other")))
}

func TestWriteTextfile(t *testing.T) {
	DownloadRetried()
	SoftwareFallback("convert")

	path := filepath.Join(t.TempDir(), "tubekit.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "tubekit_download_retries_total"))
	assert.True(t, strings.Contains(text, `tubekit_software_fallbacks_total{kind="convert"}`))
	assert.False(t, strings.Contains(text, "go_goroutines"))
}
