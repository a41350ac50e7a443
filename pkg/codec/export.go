package codec

import (
	"fmt"
	"path/filepath"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/frame"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/shape"
	"go.uber.org/zap"
)

// ProcessDataset exports one dataset and returns the text to place in the
// attribute's cell. Scalars and descriptors are returned as they are. Arrays,
// dataframes and timeseries are appended to a data file in targetDir and the
// cell names that file. Unknown values are merged into the unknown value
// document; if they cannot be stored the raw value is returned.
func (s *Session) ProcessDataset(ds *models.Dataset, resource string, refKey models.RefKey, attribute, targetDir string) (string, error) {
	if ds == nil {
		return "", nil
	}

	var (
		cell string
		err  error
	)
	switch ds.Kind {
	case models.KindScalar, models.KindDescriptor:
		cell = ds.Value
	case models.KindArray:
		cell, err = s.exportArray(ds, resource, refKey, attribute, targetDir)
	case models.KindDataFrame, models.KindTimeSeries:
		cell, err = s.exportTable(ds, resource, refKey, attribute, targetDir)
	case models.KindUnknown:
		cell, err = s.unknown.Record(targetDir, resource, attribute, ds.TypeLabel(), ds.Value)
	default:
		err = cerrors.Newf(cerrors.ErrorTypeInternal, "unhandled dataset kind %d", int(ds.Kind))
	}
	if err != nil {
		s.countError(err)
		return "", err
	}

	s.metrics.DatasetProcessed(metrics.DirectionExport, ds.Kind.String())
	return cell, nil
}

// DataFileName is the name of the data file holding datasets of kind for
// attribute on resources of refKey.
func DataFileName(kind models.Kind, refKey models.RefKey, attribute string) string {
	return fmt.Sprintf("%s_%s_%s.csv", kind, refKey, attribute)
}

func (s *Session) exportArray(ds *models.Dataset, resource string, refKey models.RefKey, attribute, targetDir string) (string, error) {
	nested, err := decodeArray(ds.Value)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.ErrorTypeShape, "invalid array value").
			WithDetail("resource", resource).
			WithDetail("attribute", attribute)
	}
	flat, dims, err := shape.Flatten(nested)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.ErrorTypeShape, "unable to flatten array").
			WithDetail("resource", resource).
			WithDetail("attribute", attribute)
	}

	name := DataFileName(models.KindArray, refKey, attribute)
	path := filepath.Join(targetDir, name)
	s.markWritten(path, models.KindArray)

	record := make([]string, 0, 2+len(flat))
	record = append(record, resource, dims.String())
	record = append(record, flat...)
	if err := s.aligner.Append(path, record); err != nil {
		return "", err
	}
	return name, nil
}

func (s *Session) exportTable(ds *models.Dataset, resource string, refKey models.RefKey, attribute, targetDir string) (string, error) {
	if isEmptyValue(ds.Value) {
		s.logger.Debug("not exporting empty dataset",
			zap.String("resource", resource),
			zap.String("attribute", attribute),
			zap.String("kind", ds.Kind.String()))
		return "", nil
	}
	table, err := frame.ParseTable(ds.Value)
	if err != nil {
		return "", cerrors.Wrap(err, cerrors.ErrorTypeValidation, "invalid table value").
			WithDetail("resource", resource).
			WithDetail("attribute", attribute)
	}
	if table.IsEmpty() {
		s.logger.Debug("not exporting empty table",
			zap.String("resource", resource),
			zap.String("attribute", attribute))
		return "", nil
	}

	name := DataFileName(ds.Kind, refKey, attribute)
	path := filepath.Join(targetDir, name)
	s.markWritten(path, ds.Kind)

	if _, err := s.aligner.ReadOrInit(path, table.Columns()); err != nil {
		return "", err
	}
	for _, index := range table.Index() {
		row := frame.Row{Resource: resource, Index: index, Values: table.Row(index)}
		if err := s.aligner.Write(path, table.RowColumns(index), row); err != nil {
			return "", err
		}
	}
	return name, nil
}

// markWritten counts path the first time the run writes to it.
func (s *Session) markWritten(path string, kind models.Kind) {
	if _, ok := s.written[path]; ok {
		return
	}
	s.written[path] = struct{}{}
	s.metrics.FileWritten(kind.String())
}

func (s *Session) countError(err error) {
	s.metrics.Error(string(cerrors.TypeOf(err)))
}

// decodeArray reads an array value. JSON is tried first so numbers keep
// their text; Python-style literals such as "['a', 'b']" fall back to the
// restricted literal parser.
func decodeArray(value string) (interface{}, error) {
	var nested interface{}
	if err := jsonpool.DecodeString(value, &nested); err == nil {
		return nested, nil
	}
	return shape.ParseLiteral(value)
}

func isEmptyValue(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "{}", "null":
		return true
	}
	return false
}
