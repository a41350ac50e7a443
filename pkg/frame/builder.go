package frame

import (
	"strconv"
	"strings"
	"time"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/shape"
	"github.com/ajitpratap0/shapecsv/pkg/temporal"
)

// indexer turns a row's index literal into a table key.
type indexer func(literal string) (string, error)

// BuildTimeSeries builds a timeseries table from rows of
// (timestamp, shape, value...). Each timestamp is resolved through resolver,
// localised to loc and normalised to a time point. Two rows normalising to
// the same time point are a duplicate timestamp error. With no columns, the
// columns are named "0", "1", ... after the first row's values.
func BuildTimeSeries(rows [][]string, columns []string, resolver *temporal.Resolver, loc *time.Location, source string) (*Table, error) {
	if loc == nil {
		loc = time.UTC
	}
	index := func(literal string) (string, error) {
		tp, err := resolver.TimePoint(literal, loc)
		if err != nil {
			return "", cerrors.Wrap(err, cerrors.ErrorTypeFormatResolution, "invalid timestamp").
				WithDetail("file", source).
				WithDetail("timestamp", literal)
		}
		return tp, nil
	}
	return build(rows, columns, index, cerrors.ErrorTypeDuplicateTimestamp, "duplicate timestamp", source)
}

// BuildDataFrame builds a dataframe table from rows of (index, shape,
// value...). Index keys are the trimmed index literals; a repeated index is
// a validation error.
func BuildDataFrame(rows [][]string, columns []string, source string) (*Table, error) {
	index := func(literal string) (string, error) {
		return literal, nil
	}
	return build(rows, columns, index, cerrors.ErrorTypeValidation, "duplicate index", source)
}

func build(rows [][]string, columns []string, index indexer, dupType cerrors.ErrorType, dupMessage, source string) (*Table, error) {
	var table *Table
	if len(columns) > 0 {
		table = NewTable(columns)
	}

	for _, row := range rows {
		if IsComment(row) {
			continue
		}
		if len(row) < 2 {
			return nil, cerrors.New(cerrors.ErrorTypeShape, "row has no shape column").
				WithDetail("file", source).
				WithDetail("row", strings.Join(row, ","))
		}

		literal := strings.TrimSpace(row[0])
		key, err := index(literal)
		if err != nil {
			return nil, err
		}
		values := trimAll(row[2:])

		if table != nil && table.Has(key) {
			return nil, cerrors.New(dupType, dupMessage).
				WithDetail("timestamp", key).
				WithDetail("file", source).
				WithDetail("value", "["+strings.Join(values, ", ")+"]")
		}

		reshaped, err := shape.Reshape(values, strings.TrimSpace(row[1]))
		if err != nil {
			return nil, cerrors.Wrap(err, cerrors.ErrorTypeShape, "unable to convert row to an array").
				WithDetail("file", source).
				WithDetail("index", literal)
		}
		elements := reshaped.([]interface{})

		if table == nil {
			table = NewTable(defaultColumns(len(elements)))
		}
		if len(elements) != len(table.columns) {
			return nil, cerrors.New(cerrors.ErrorTypeShape, "row does not match the column count").
				WithDetail("file", source).
				WithDetail("index", literal).
				WithDetail("columns", len(table.columns)).
				WithDetail("length", len(elements))
		}
		for i, v := range elements {
			table.Set(table.columns[i], key, v)
		}
	}

	if table == nil {
		table = NewTable(nil)
	}
	return table, nil
}

// IsComment reports whether a row is blank or starts with '#'.
func IsComment(row []string) bool {
	if len(row) == 0 {
		return true
	}
	if strings.HasPrefix(strings.TrimSpace(row[0]), "#") {
		return true
	}
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func defaultColumns(n int) []string {
	cols := make([]string, n)
	for i := range cols {
		cols[i] = strconv.Itoa(i)
	}
	return cols
}

func trimAll(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = strings.TrimSpace(c)
	}
	return out
}
