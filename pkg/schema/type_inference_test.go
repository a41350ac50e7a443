package schema

import (
	"os"
	"path/filepath"
	"testing"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type stubResolver struct {
	calls []string
	fd    *FileDataset
	err   error
}

func (s *stubResolver) ResolveFile(path string, opts Options) (*FileDataset, error) {
	s.calls = append(s.calls, path)
	return s.fd, s.err
}

func TestClassifyScalarTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "42"), []byte("n1,,1\n"), 0o644))

	resolver := &stubResolver{fd: &FileDataset{Kind: models.KindArray, Value: "[1]"}}
	e := NewTypeInferenceEngine(zaptest.NewLogger(t), resolver)

	ds, err := e.Classify("42", Options{ExpandFilenames: true, BasePath: dir})
	require.NoError(t, err)
	assert.Equal(t, models.KindScalar, ds.Kind)
	assert.Equal(t, "42", ds.Value)
	assert.Empty(t, resolver.calls)
}

func TestClassifyFileReference(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "levels.csv"), []byte("n1,,1,2\n"), 0o644))

	resolver := &stubResolver{fd: &FileDataset{Kind: models.KindArray, Value: "[1, 2]"}}
	e := NewTypeInferenceEngine(zaptest.NewLogger(t), resolver)

	ds, err := e.Classify(`data\levels.csv`, Options{ExpandFilenames: true, BasePath: dir, Resource: "n1"})
	require.NoError(t, err)
	assert.Equal(t, models.KindArray, ds.Kind)
	assert.Equal(t, "[1, 2]", ds.Value)
	assert.Equal(t, []string{filepath.Join(dir, "data", "levels.csv")}, resolver.calls)

	// Expansion disabled: the same text is a descriptor.
	ds, err = e.Classify("data/levels.csv", Options{BasePath: dir})
	require.NoError(t, err)
	assert.Equal(t, models.KindDescriptor, ds.Kind)
	assert.Len(t, resolver.calls, 1)
}

func TestClassifyDescriptor(t *testing.T) {
	e := NewTypeInferenceEngine(nil, &stubResolver{})

	for _, raw := range []string{"reservoir", "0x10", "1_000", "", "data/missing.csv"} {
		ds, err := e.Classify(raw, Options{ExpandFilenames: true, BasePath: t.TempDir()})
		require.NoError(t, err, raw)
		assert.Equal(t, models.KindDescriptor, ds.Kind, raw)
		assert.Equal(t, raw, ds.Value)
	}
}

func TestClassifyScalars(t *testing.T) {
	e := NewTypeInferenceEngine(nil, nil)
	for _, raw := range []string{"1", "-2.5", " 3e4 ", "1e400", "inf", "NaN"} {
		assert.True(t, e.IsScalar(raw), raw)
	}
}

func TestClassifyName(t *testing.T) {
	e := NewTypeInferenceEngine(nil, nil)
	meta := models.NewMetadata("name", "Reservoir level", "source", "survey")

	ds, err := e.Classify("1", Options{Metadata: meta, Unit: "m"})
	require.NoError(t, err)
	assert.Equal(t, "Reservoir level", ds.Name)
	assert.Equal(t, []string{"source"}, ds.Metadata.Keys())
	assert.Equal(t, "m", ds.Unit)

	// Caller metadata is left alone.
	assert.Equal(t, 2, meta.Len())

	ds, err = e.Classify("1", Options{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultDatasetName, ds.Name)
}

func TestClassifyValidates(t *testing.T) {
	e := NewTypeInferenceEngine(nil, nil)
	opts := Options{
		Resource:     "n1",
		Attribute:    "capacity",
		Restrictions: Restrictions{"VALUERANGE": []interface{}{0.0, 10.0}},
	}

	_, err := e.Classify("5", opts)
	require.NoError(t, err)

	_, err = e.Classify("50", opts)
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeValidation))
	assert.True(t, cerrors.IsStructural(err))
}

func TestClassifyPropagatesResolverErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ts.csv"), []byte("x"), 0o644))

	resolver := &stubResolver{err: cerrors.New(cerrors.ErrorTypeDuplicateTimestamp, "duplicate timestamp")}
	e := NewTypeInferenceEngine(nil, resolver)

	_, err := e.Classify("ts.csv", Options{ExpandFilenames: true, BasePath: dir})
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeDuplicateTimestamp))
}
