// Package frame builds and writes column -> index -> value tables: the
// dataframe and timeseries values of the dataset model.
package frame

import (
	"bytes"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
)

// Table maps column -> index -> value. Columns and index keys keep their
// insertion order, and that order is kept through JSON encoding: one object
// per column, keyed by index.
type Table struct {
	columns []string
	index   []string
	seen    map[string]struct{}
	cells   map[string]map[string]interface{}
}

// NewTable creates an empty table with the given columns.
func NewTable(columns []string) *Table {
	t := &Table{
		seen:  make(map[string]struct{}),
		cells: make(map[string]map[string]interface{}, len(columns)),
	}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(c string) {
	if _, ok := t.cells[c]; ok {
		return
	}
	t.columns = append(t.columns, c)
	t.cells[c] = make(map[string]interface{})
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Index returns the index keys in insertion order.
func (t *Table) Index() []string {
	out := make([]string, len(t.index))
	copy(out, t.index)
	return out
}

// Has reports whether any column holds a value at index.
func (t *Table) Has(index string) bool {
	_, ok := t.seen[index]
	return ok
}

// Set stores v at (column, index), adding the column if needed.
func (t *Table) Set(column, index string, v interface{}) {
	t.addColumn(column)
	if _, ok := t.seen[index]; !ok {
		t.seen[index] = struct{}{}
		t.index = append(t.index, index)
	}
	t.cells[column][index] = v
}

// Get returns the value at (column, index).
func (t *Table) Get(column, index string) (interface{}, bool) {
	col, ok := t.cells[column]
	if !ok {
		return nil, false
	}
	v, ok := col[index]
	return v, ok
}

// Row returns the values at index across all columns, in column order.
// Columns without a value at index are skipped.
func (t *Table) Row(index string) []interface{} {
	row := make([]interface{}, 0, len(t.columns))
	for _, c := range t.columns {
		if v, ok := t.cells[c][index]; ok {
			row = append(row, v)
		}
	}
	return row
}

// RowColumns returns the columns holding a value at index, in column order.
func (t *Table) RowColumns(index string) []string {
	cols := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if _, ok := t.cells[c][index]; ok {
			cols = append(cols, c)
		}
	}
	return cols
}

// Len returns the number of index keys.
func (t *Table) Len() int {
	return len(t.index)
}

// IsEmpty reports whether the table holds no values.
func (t *Table) IsEmpty() bool {
	return len(t.index) == 0
}

// MarshalJSON writes one object per column, each keyed by index.
func (t *Table) MarshalJSON() ([]byte, error) {
	fields := make([]jsonpool.Field, 0, len(t.columns))
	for _, c := range t.columns {
		inner := make([]jsonpool.Field, 0, len(t.index))
		for _, idx := range t.index {
			if v, ok := t.cells[c][idx]; ok {
				inner = append(inner, jsonpool.Field{Key: idx, Value: v})
			}
		}
		raw, err := jsonpool.MarshalObject(inner)
		if err != nil {
			return nil, err
		}
		fields = append(fields, jsonpool.Field{Key: c, Value: jsonpool.RawMessage(raw)})
	}
	return jsonpool.MarshalObject(fields)
}

// UnmarshalJSON reads the column object layout written by MarshalJSON,
// keeping the column and index order of the document. Numbers keep their
// literal text.
func (t *Table) UnmarshalJSON(data []byte) error {
	columns, err := jsonpool.ObjectKeys(data)
	if err != nil {
		return err
	}
	var raw map[string]jsonpool.RawMessage
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}

	*t = *NewTable(columns)
	for _, c := range columns {
		body := raw[c]
		if bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
			continue
		}
		keys, err := jsonpool.ObjectKeys(body)
		if err != nil {
			return err
		}
		var cells map[string]jsonpool.RawMessage
		if err := jsonpool.Unmarshal(body, &cells); err != nil {
			return err
		}
		for _, k := range keys {
			var v interface{}
			if err := jsonpool.Decode(bytes.NewReader(cells[k]), &v); err != nil {
				return err
			}
			t.Set(c, k, v)
		}
	}
	return nil
}

// ParseTable decodes a dataframe or timeseries value.
func ParseTable(value string) (*Table, error) {
	t := NewTable(nil)
	if err := t.UnmarshalJSON([]byte(value)); err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeValidation, "invalid table value").
			WithDetail("value", truncate(value))
	}
	return t, nil
}

func truncate(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
