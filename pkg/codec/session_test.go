package codec

import (
	"path/filepath"
	"testing"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"github.com/ajitpratap0/shapecsv/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T, base string) *Session {
	t.Helper()
	s, err := NewSession(Options{ExpandFilenames: true, BasePath: base}, testutil.TestLogger(t), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func count(t *testing.T, s *Session, key string) float64 {
	t.Helper()
	counts, err := s.Metrics().Counts()
	require.NoError(t, err)
	return counts[key]
}

func TestNewSessionRejectsBadSeasonalKey(t *testing.T) {
	_, err := NewSession(Options{SeasonalKey: "99"}, nil, nil)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeConfig))
}

func TestSessionsHaveDistinctIDs(t *testing.T) {
	a := newTestSession(t, t.TempDir())
	b := newTestSession(t, t.TempDir())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestClassifyScalarBeatsFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "42", "n1,,1,2\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify("42", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindScalar, ds.Kind)
	assert.Equal(t, "42", ds.Value)
	assert.Equal(t, float64(1), count(t, s, "datasets_total{import,scalar}"))
}

func TestClassifyDescriptor(t *testing.T) {
	s := newTestSession(t, t.TempDir())

	ds, err := s.Classify("missing.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindDescriptor, ds.Kind)
	assert.Equal(t, "missing.csv", ds.Value)
}

func TestClassifyArrayFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "arrays.csv", "# demand profiles\nn1,2 2,1,2,3,4\nn2,,5,6\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify("arrays.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindArray, ds.Kind)
	assert.Equal(t, "[[1,2],[3,4]]", ds.Value)

	ds, err = s.Classify("arrays.csv", schema.Options{Resource: "n2"})
	require.NoError(t, err)
	assert.Equal(t, "[5,6]", ds.Value)

	assert.Equal(t, float64(1), count(t, s, "cache_lookups_total{file,miss}"))
	assert.Equal(t, float64(1), count(t, s, "cache_lookups_total{file,hit}"))
}

func TestClassifyArrayFileWithHeader(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "arrays.csv", "arraydescription,,\nn1,,7,8\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify("arrays.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindArray, ds.Kind)
	assert.Equal(t, "[7,8]", ds.Value)
}

func TestClassifyTimeSeriesFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "flows.csv",
		",,,A,B\nn1,2020-01-01,,1,2\nn1,2020-01-02,,3,4\nn2,2020-01-01,,9,9\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify("flows.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindTimeSeries, ds.Kind)
	assert.Equal(t,
		`{"A":{"2020-01-01T00:00:00.000000000Z":1,"2020-01-02T00:00:00.000000000Z":3},`+
			`"B":{"2020-01-01T00:00:00.000000000Z":2,"2020-01-02T00:00:00.000000000Z":4}}`,
		ds.Value)
}

func TestClassifyTimeSeriesDuplicate(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "flows.csv", ",,,A\nn1,2020-01-01,,5\nn1,2020-01-01,,6\n")
	s := newTestSession(t, dir)

	_, err := s.Classify("flows.csv", schema.Options{Resource: "n1"})
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeDuplicateTimestamp))
	assert.Equal(t, float64(1), count(t, s, "errors_total{duplicate_timestamp}"))
}

func TestClassifyDataFrameFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "costs.csv", ",,,cost\nn1,low,,1\nn1,high,,2\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify("costs.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindDataFrame, ds.Kind)
	assert.Equal(t, `{"cost":{"low":1,"high":2}}`, ds.Value)
}

func TestClassifyFileMissingResource(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "arrays.csv", "n1,,1,2\n")
	s := newTestSession(t, dir)

	_, err := s.Classify("arrays.csv", schema.Options{Resource: "n9"})
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeNotFound))
}

func TestClassifyFileBadHeader(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "flows.csv", ",,,A,A\nn1,2020-01-01,,1,2\n")
	s := newTestSession(t, dir)

	_, err := s.Classify("flows.csv", schema.Options{Resource: "n1"})
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeValidation))
}

func TestClassifyUnknownValueFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "unknown_values.json",
		`{"n1<>policy":{"data_type":"pywr_parameter","data":{"a":1}},"n2<>policy":{"data_type":"array","data":[1]}}`)
	s := newTestSession(t, dir)

	ds, err := s.Classify("unknown_values.json", schema.Options{Resource: "n1", Attribute: "policy"})
	require.NoError(t, err)
	assert.Equal(t, models.KindUnknown, ds.Kind)
	assert.Equal(t, "pywr_parameter", ds.TypeName)
	assert.JSONEq(t, `{"a":1}`, ds.Value)

	ds, err = s.Classify("unknown_values.json", schema.Options{Resource: "n2", Attribute: "policy"})
	require.NoError(t, err)
	assert.Equal(t, models.KindArray, ds.Kind)

	_, err = s.Classify("unknown_values.json", schema.Options{Resource: "n3", Attribute: "policy"})
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeNotFound))
}

func TestClassifyBackslashPath(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, filepath.Join("data", "arrays.csv"), "n1,,1\n")
	s := newTestSession(t, dir)

	ds, err := s.Classify(`data\arrays.csv`, schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindArray, ds.Kind)
}

func TestCloseResetsCaches(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "flows.csv", ",,,A\nn1,2020-01-01,,5\n")
	s := newTestSession(t, dir)

	_, err := s.Classify("flows.csv", schema.Options{Resource: "n1"})
	require.NoError(t, err)
	assert.NotZero(t, s.Resolver().CacheSize())

	require.NoError(t, s.Close())
	assert.Zero(t, s.Resolver().CacheSize())
	assert.Empty(t, s.files)
}
