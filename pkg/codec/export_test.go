package codec

import (
	"fmt"
	"path/filepath"
	"testing"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"github.com/ajitpratap0/shapecsv/pkg/testutil"
	"github.com/ajitpratap0/shapecsv/pkg/unknown"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDatasetPassesScalarsThrough(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	cell, err := s.ProcessDataset(&models.Dataset{Kind: models.KindScalar, Value: "3.5"}, "n1", models.RefNode, "cost", dir)
	require.NoError(t, err)
	assert.Equal(t, "3.5", cell)

	cell, err = s.ProcessDataset(&models.Dataset{Kind: models.KindDescriptor, Value: "open"}, "n1", models.RefNode, "state", dir)
	require.NoError(t, err)
	assert.Equal(t, "open", cell)
	assert.Empty(t, testutil.ListFiles(t, dir))
	assert.Equal(t, float64(1), count(t, s, "datasets_total{export,descriptor}"))
}

func TestProcessDatasetArrays(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	cell, err := s.ProcessDataset(&models.Dataset{Kind: models.KindArray, Value: "[[1,2],[3,4]]"}, "n1", models.RefNode, "demand", dir)
	require.NoError(t, err)
	assert.Equal(t, "array_NODE_demand.csv", cell)

	_, err = s.ProcessDataset(&models.Dataset{Kind: models.KindArray, Value: "['a', 'b']"}, "n2", models.RefNode, "demand", dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"n1,2 2,1,2,3,4", "n2,,a,b"},
		testutil.ReadLines(t, filepath.Join(dir, cell)))
	assert.Equal(t, float64(1), count(t, s, "data_files_total{array}"))
}

func TestArrayRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"empty", `[]`},
		{"one dimension", `[1, 2.5, 3]`},
		{"two dimensions", `[[1, 2], [3, 4]]`},
		{"empty rows", `[[], []]`},
		{"literal-like strings", `["1", "True", "a"]`},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			attr := fmt.Sprintf("a%d", i)

			out := newTestSession(t, dir)
			cell, err := out.ProcessDataset(&models.Dataset{Kind: models.KindArray, Value: tt.value}, "n1", models.RefNode, attr, dir)
			require.NoError(t, err)
			require.NoError(t, out.Close())

			in := newTestSession(t, dir)
			ds, err := in.Classify(cell, schema.Options{Resource: "n1"})
			require.NoError(t, err)
			assert.Equal(t, models.KindArray, ds.Kind)
			assert.JSONEq(t, tt.value, ds.Value)
		})
	}
}

func TestProcessDatasetJaggedArray(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	_, err := s.ProcessDataset(&models.Dataset{Kind: models.KindArray, Value: "[[1,2],[3]]"}, "n1", models.RefNode, "demand", dir)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeShape))
	assert.Equal(t, float64(1), count(t, s, "errors_total{shape}"))
}

func TestProcessDatasetRealignsColumns(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	first := &models.Dataset{Kind: models.KindDataFrame, Value: `{"A":{"0":1},"B":{"0":2}}`}
	second := &models.Dataset{Kind: models.KindDataFrame, Value: `{"B":{"0":20},"A":{"0":10}}`}

	cell, err := s.ProcessDataset(first, "n1", models.RefNode, "costs", dir)
	require.NoError(t, err)
	assert.Equal(t, "dataframe_NODE_costs.csv", cell)
	_, err = s.ProcessDataset(second, "n2", models.RefNode, "costs", dir)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.Equal(t, ",,,A,B\nn1,0,,1,2\nn2,0,,10,20\n", testutil.ReadFile(t, filepath.Join(dir, cell)))
}

func TestProcessDatasetRejectsNewColumns(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	_, err := s.ProcessDataset(&models.Dataset{Kind: models.KindDataFrame, Value: `{"A":{"0":1}}`}, "n1", models.RefNode, "costs", dir)
	require.NoError(t, err)
	_, err = s.ProcessDataset(&models.Dataset{Kind: models.KindDataFrame, Value: `{"A":{"0":1},"C":{"0":3}}`}, "n2", models.RefNode, "costs", dir)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeAlignment))
}

func TestProcessDatasetSkipsEmptyTables(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	for _, value := range []string{"", "{}", "null", `{"A":{}}`} {
		cell, err := s.ProcessDataset(&models.Dataset{Kind: models.KindTimeSeries, Value: value}, "n1", models.RefNode, "flow", dir)
		require.NoError(t, err, value)
		assert.Empty(t, cell, value)
	}
	require.NoError(t, s.Close())
	assert.Empty(t, testutil.ListFiles(t, dir))
}

func TestProcessDatasetUnknownValues(t *testing.T) {
	dir := t.TempDir()
	s := newTestSession(t, dir)

	cell, err := s.ProcessDataset(&models.Dataset{Kind: models.KindUnknown, TypeName: "pywr_parameter", Value: `{"a":1}`}, "n1", models.RefNode, "policy", dir)
	require.NoError(t, err)
	assert.Equal(t, unknown.DefaultFileName, cell)

	_, err = s.ProcessDataset(&models.Dataset{Kind: models.KindUnknown, Value: `[1,2]`}, "n1", models.RefNode, "rule", dir)
	require.NoError(t, err)

	raw, err := s.ProcessDataset(&models.Dataset{Kind: models.KindUnknown, Value: `not json`}, "n1", models.RefNode, "note", dir)
	require.NoError(t, err)
	assert.Equal(t, "not json", raw)

	assert.Equal(t, []string{unknown.DefaultFileName}, testutil.ListFiles(t, dir))
	var doc map[string]unknown.Entry
	require.NoError(t, jsonpool.Unmarshal([]byte(testutil.ReadFile(t, filepath.Join(dir, cell))), &doc))
	require.Len(t, doc, 2)
	assert.Equal(t, "pywr_parameter", doc["n1<>policy"].DataType)
	assert.Equal(t, "unknown", doc["n1<>rule"].DataType)
}

func TestTimeSeriesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	value := `{"flow":{"2020-01-01T00:00:00.000000000Z":1.5,"2020-01-02T00:00:00.000000000Z":[1,2]},` +
		`"level":{"2020-01-01T00:00:00.000000000Z":3,"2020-01-02T00:00:00.000000000Z":[3,4]}}`

	out := newTestSession(t, dir)
	cell, err := out.ProcessDataset(&models.Dataset{Kind: models.KindTimeSeries, Value: value}, "n1", models.RefNode, "inflow", dir)
	require.NoError(t, err)
	require.NoError(t, out.Close())

	assert.Equal(t, []string{
		",,,flow,level",
		"n1,2020-01-01T00:00:00.000000000Z,,1.5,3",
		"n1,2020-01-02T00:00:00.000000000Z,2 2,1,2,3,4",
	}, testutil.ReadLines(t, filepath.Join(dir, cell)))

	in := newTestSession(t, dir)
	ds, err := in.Classify(cell, schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindTimeSeries, ds.Kind)
	assert.JSONEq(t, value, ds.Value)
}

func TestSeasonalTimeSeriesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "seasonal.csv", ",,,A\nn1,XXXX-06-15,,7\n")

	s := newTestSession(t, dir)
	ds, err := s.Classify("seasonal.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, `{"A":{"9999-06-15T00:00:00.000000000Z":7}}`, ds.Value)
}
