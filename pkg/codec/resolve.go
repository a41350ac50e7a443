package codec

import (
	"path/filepath"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/csvfile"
	"github.com/ajitpratap0/shapecsv/pkg/frame"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"github.com/ajitpratap0/shapecsv/pkg/shape"
	"github.com/ajitpratap0/shapecsv/pkg/unknown"
	"go.uber.org/zap"
)

// fileLayout is how a data file lays out its rows.
type fileLayout int

const (
	// layoutArray rows are resource, shape, values
	layoutArray fileLayout = iota
	// layoutTabular rows are resource, index, shape, values under a header
	layoutTabular
)

// dataFile is a parsed data file, grouped by resource.
type dataFile struct {
	layout  fileLayout
	columns []string
	rows    map[string][][]string
}

// ResolveFile returns the dataset path holds for opts.Resource. JSON files
// are unknown value documents. CSV files with a ",,," or
// "timeseriesdescription" header are tabular: a timeseries when the
// resource's first index is a date, otherwise a dataframe. Other CSV files
// hold arrays. Parsed files are cached by path for the rest of the run.
func (s *Session) ResolveFile(path string, opts schema.Options) (*schema.FileDataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return s.resolveUnknown(path, opts)
	}

	df, err := s.loadDataFile(path)
	if err != nil {
		return nil, err
	}
	resource := strings.TrimSpace(opts.Resource)
	rows, ok := df.rows[resource]
	if !ok {
		return nil, cerrors.New(cerrors.ErrorTypeNotFound, "no rows for resource in data file").
			WithDetail("file", path).
			WithDetail("resource", resource)
	}

	switch df.layout {
	case layoutTabular:
		return s.resolveTable(path, df.columns, rows)
	default:
		return s.resolveArray(path, resource, rows)
	}
}

func (s *Session) resolveUnknown(path string, opts schema.Options) (*schema.FileDataset, error) {
	entry, err := unknown.Read(path, opts.Resource, opts.Attribute)
	if err != nil {
		return nil, err
	}
	fd := &schema.FileDataset{
		Kind:  models.ParseKind(entry.DataType),
		Value: string(entry.Data),
	}
	if fd.Kind == models.KindUnknown {
		fd.TypeName = entry.DataType
	}
	return fd, nil
}

func (s *Session) resolveTable(path string, columns []string, rows [][]string) (*schema.FileDataset, error) {
	var (
		table *frame.Table
		kind  models.Kind
		err   error
	)
	if first := firstDataRow(rows); len(first) > 0 && s.resolver.IsTemporal(first[0]) {
		kind = models.KindTimeSeries
		table, err = frame.BuildTimeSeries(rows, columns, s.resolver, s.opts.Location, path)
	} else {
		kind = models.KindDataFrame
		table, err = frame.BuildDataFrame(rows, columns, path)
	}
	if err != nil {
		return nil, err
	}
	value, err := jsonpool.MarshalString(table)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeInternal, "failed to encode table").
			WithDetail("file", path)
	}
	return &schema.FileDataset{Kind: kind, Value: value}, nil
}

func (s *Session) resolveArray(path, resource string, rows [][]string) (*schema.FileDataset, error) {
	row := firstDataRow(rows)
	if row == nil {
		return nil, cerrors.New(cerrors.ErrorTypeNotFound, "no array row for resource").
			WithDetail("file", path).
			WithDetail("resource", resource)
	}
	if len(rows) > 1 {
		s.logger.Warn("several array rows for one resource, using the first",
			zap.String("file", path),
			zap.String("resource", resource),
			zap.Int("rows", len(rows)))
	}

	if len(row) == 0 {
		// "n1" alone: no shape cell and no values
		row = []string{""}
	}
	nested, err := shape.Reshape(row[1:], row[0])
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeShape, "invalid array").
			WithDetail("file", path).
			WithDetail("resource", resource)
	}
	value, err := jsonpool.MarshalString(nested)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeInternal, "failed to encode array").
			WithDetail("file", path)
	}
	return &schema.FileDataset{Kind: models.KindArray, Value: value}, nil
}

func (s *Session) loadDataFile(path string) (*dataFile, error) {
	if df, ok := s.files[path]; ok {
		s.metrics.CacheLookup("file", true)
		return df, nil
	}
	s.metrics.CacheLookup("file", false)

	all, err := csvfile.ReadRows(path)
	if err != nil {
		return nil, err
	}
	df := &dataFile{layout: layoutArray, rows: make(map[string][][]string)}
	if len(all) > 0 && csvfile.IsHeader(all[0]) {
		first := strings.ToLower(strings.ReplaceAll(all[0][0], " ", ""))
		if !strings.HasPrefix(first, "arraydescription") {
			df.layout = layoutTabular
			df.columns = csvfile.DataColumns(all[0])
			if err := csvfile.CheckHeader(path, df.columns); err != nil {
				return nil, err
			}
		}
		all = all[1:]
	}
	for _, row := range all {
		if frame.IsComment(row) {
			continue
		}
		resource := strings.TrimSpace(row[0])
		df.rows[resource] = append(df.rows[resource], row[1:])
	}

	s.files[path] = df
	s.logger.Debug("parsed data file",
		zap.String("path", path),
		zap.Int("resources", len(df.rows)),
		zap.Int("columns", len(df.columns)))
	return df, nil
}

// firstDataRow returns the first row stored for a resource. Comment rows
// were dropped when the file was loaded, so a row of blank cells here is
// data, e.g. an empty 1-D array.
func firstDataRow(rows [][]string) []string {
	if len(rows) == 0 {
		return nil
	}
	return rows[0]
}
