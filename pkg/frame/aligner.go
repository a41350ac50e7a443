package frame

import (
	"encoding/csv"
	"os"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/shape"
	"go.uber.org/zap"
)

// LeadingColumns is the number of fixed cells before the value columns of a
// tabular data file: resource, index and shape.
const LeadingColumns = 3

// Row is one index entry of a table written to a tabular data file. Values
// line up with the column names passed alongside the row.
type Row struct {
	Resource string
	Index    string
	Values   []interface{}
}

// outputFile is an open data file and the column order fixed by its header.
type outputFile struct {
	file   *os.File
	writer *csv.Writer
	order  []string
	header bool
}

// Aligner writes rows to data files, opening each path once per run. The
// first write to a tabular file fixes its column order and writes the header;
// later rows naming the same columns in another order are re-mapped to it.
type Aligner struct {
	logger *zap.Logger
	files  map[string]*outputFile
	paths  []string
}

// NewAligner creates an aligner with no open files.
func NewAligner(logger *zap.Logger) *Aligner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aligner{
		logger: logger,
		files:  make(map[string]*outputFile),
	}
}

// ReadOrInit returns the column order of path. The first call for a path
// creates the file, writes the header ",,,<columns>" and fixes the order.
func (a *Aligner) ReadOrInit(path string, columns []string) ([]string, error) {
	if f, ok := a.files[path]; ok {
		if !f.header {
			return nil, cerrors.New(cerrors.ErrorTypeAlignment, "file was opened without a header").
				WithDetail("file", path)
		}
		return f.order, nil
	}

	if err := checkColumns(path, columns); err != nil {
		return nil, err
	}
	f, err := a.open(path)
	if err != nil {
		return nil, err
	}
	f.order = append([]string(nil), columns...)
	f.header = true

	header := make([]string, LeadingColumns, LeadingColumns+len(columns))
	header = append(header, columns...)
	if err := f.writer.Write(header); err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to write header").
			WithDetail("path", path)
	}
	return f.order, nil
}

// Columns returns the column order fixed for path, if any.
func (a *Aligner) Columns(path string) ([]string, bool) {
	f, ok := a.files[path]
	if !ok || !f.header {
		return nil, false
	}
	return f.order, true
}

// Write appends row to the tabular file at path. columns names the row's
// values; when they are the file's columns in another order the values are
// re-mapped to the file order. A column set that differs from the file's is
// an alignment error.
func (a *Aligner) Write(path string, columns []string, row Row) error {
	if len(columns) != len(row.Values) {
		return cerrors.New(cerrors.ErrorTypeAlignment, "row and column counts differ").
			WithDetail("file", path).
			WithDetail("columns", len(columns)).
			WithDetail("values", len(row.Values))
	}
	order, err := a.ReadOrInit(path, columns)
	if err != nil {
		return err
	}

	values, err := remap(path, order, columns, row.Values)
	if err != nil {
		return err
	}

	flat, dims, err := shape.Flatten(values)
	if err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeShape, "unable to flatten row").
			WithDetail("file", path).
			WithDetail("resource", row.Resource).
			WithDetail("index", row.Index)
	}

	record := make([]string, 0, LeadingColumns+len(flat))
	record = append(record, row.Resource, row.Index, dims.String())
	record = append(record, flat...)
	return a.writeRecord(path, record)
}

// Append writes a raw record to path, opening it without a header on first
// use. Array files are written this way.
func (a *Aligner) Append(path string, record []string) error {
	if _, ok := a.files[path]; !ok {
		if _, err := a.open(path); err != nil {
			return err
		}
	}
	return a.writeRecord(path, record)
}

func (a *Aligner) writeRecord(path string, record []string) error {
	f := a.files[path]
	if err := f.writer.Write(record); err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to write row").
			WithDetail("path", path)
	}
	return nil
}

func (a *Aligner) open(path string) (*outputFile, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to create data file").
			WithDetail("path", path)
	}
	f := &outputFile{
		file:   file,
		writer: csv.NewWriter(file),
	}
	a.files[path] = f
	a.paths = append(a.paths, path)
	a.logger.Debug("opened data file", zap.String("path", path))
	return f, nil
}

// Flush writes buffered rows of every open file.
func (a *Aligner) Flush() error {
	for _, path := range a.paths {
		f := a.files[path]
		f.writer.Flush()
		if err := f.writer.Error(); err != nil {
			return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to flush data file").
				WithDetail("path", path)
		}
	}
	return nil
}

// Close flushes and closes every open file and forgets their column orders.
// All files are closed even when one fails; the first error is returned.
func (a *Aligner) Close() error {
	var first error
	for _, path := range a.paths {
		f := a.files[path]
		f.writer.Flush()
		err := f.writer.Error()
		if cerr := f.file.Close(); err == nil {
			err = cerr
		}
		if err != nil && first == nil {
			first = cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to close data file").
				WithDetail("path", path)
		}
	}
	a.files = make(map[string]*outputFile)
	a.paths = nil
	return first
}

func remap(path string, order, columns []string, values []interface{}) ([]interface{}, error) {
	if equal(order, columns) {
		return values, nil
	}
	byName := make(map[string]interface{}, len(columns))
	for i, c := range columns {
		byName[c] = values[i]
	}
	if len(byName) != len(order) {
		return nil, mismatch(path, order, columns)
	}
	out := make([]interface{}, len(order))
	for i, c := range order {
		v, ok := byName[c]
		if !ok {
			return nil, mismatch(path, order, columns)
		}
		out[i] = v
	}
	return out, nil
}

func mismatch(path string, order, columns []string) error {
	return cerrors.New(cerrors.ErrorTypeAlignment, "columns do not match the file's columns").
		WithDetail("file", path).
		WithDetail("expected", strings.Join(order, ",")).
		WithDetail("got", strings.Join(columns, ","))
}

func checkColumns(path string, columns []string) error {
	seen := make(map[string]struct{}, len(columns))
	for i, c := range columns {
		if strings.TrimSpace(c) == "" {
			return cerrors.New(cerrors.ErrorTypeValidation, "empty column name").
				WithDetail("file", path).
				WithDetail("column", i)
		}
		if _, ok := seen[c]; ok {
			return cerrors.New(cerrors.ErrorTypeValidation, "duplicate column name").
				WithDetail("file", path).
				WithDetail("column", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
