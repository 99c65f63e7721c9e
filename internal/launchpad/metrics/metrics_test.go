package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordResolution(t *testing.T) {
	before := testutil.ToFloat64(resolutionsCounter.WithLabelValues(ResolutionNoCommandMatched))
	Get().RecordResolution(ResolutionNoCommandMatched, 2)
	Get().RecordResolution(ResolutionNoCommandMatched, 0)
	assert.Equal(t, before+2, testutil.ToFloat64(resolutionsCounter.WithLabelValues(ResolutionNoCommandMatched)))
}

func TestRecordStagedFile(t *testing.T) {
	before := testutil.ToFloat64(stagedFilesCounter.WithLabelValues("applications", "dependency"))
	Get().RecordStagedFile("applications", "dependency")
	assert.Equal(t, before+1, testutil.ToFloat64(stagedFilesCounter.WithLabelValues("applications", "dependency")))
}

func TestWriteTextfile(t *testing.T) {
	Get().RecordTask("cluster", 20*time.Millisecond, nil)
	Get().RecordTask("cluster", 20*time.Millisecond, errors.New("failed"))
	Get().RecordResolution(ResolutionSucceeded, 1)

	path := filepath.Join(t.TempDir(), "launchpad.prom")
	require.NoError(t, Get().WriteTextfile(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), MetricPrefix+"setup_task_duration_seconds")
	assert.Contains(t, string(content), `result="failed"`)
	assert.Contains(t, string(content), MetricPrefix+"resolutions_total")
}
