package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.DatasetProcessed(DirectionImport, "scalar")
	a.DatasetProcessed(DirectionImport, "scalar")
	b.DatasetProcessed(DirectionExport, "array")

	assert.Equal(t, 2.0, testutil.ToFloat64(a.datasets.WithLabelValues(DirectionImport, "scalar")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.datasets.WithLabelValues(DirectionImport, "scalar")))
}

func TestCounts(t *testing.T) {
	c := NewCollector()
	c.DatasetProcessed(DirectionExport, "timeseries")
	c.FileWritten("timeseries")
	c.CacheLookup("file", true)
	c.CacheLookup("file", false)
	c.Error("shape")
	c.ObserveRun(DirectionExport)

	counts, err := c.Counts()
	require.NoError(t, err)
	assert.Equal(t, 1.0, counts["datasets_total{export,timeseries}"])
	assert.Equal(t, 1.0, counts["data_files_total{timeseries}"])
	assert.Equal(t, 1.0, counts["cache_lookups_total{file,hit}"])
	assert.Equal(t, 1.0, counts["errors_total{shape}"])
	assert.NotContains(t, counts, "run_duration_seconds")
}
