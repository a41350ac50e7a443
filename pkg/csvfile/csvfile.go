// Package csvfile reads the line-oriented CSV files exchanged with the
// codec: comment lines are skipped, lines that are not valid UTF-8 are
// reported together, and header rows are recognised and checked.
package csvfile

import (
	"bytes"
	"encoding/csv"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
)

// ReadLines returns the non-blank, non-comment lines of path with
// surrounding whitespace removed. Lines containing invalid UTF-8 are
// collected and reported in one encoding error.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "unable to read file").
			WithDetail("path", path)
	}
	return SplitLines(path, data)
}

// SplitLines is ReadLines over data already in memory; name identifies the
// source in errors.
func SplitLines(name string, data []byte) ([]string, error) {
	var (
		lines []string
		bad   []string
	)
	for i, raw := range bytes.Split(data, []byte("\n")) {
		line := strings.TrimSpace(string(raw))
		if line == "" || line[0] == '#' {
			continue
		}
		if !utf8.ValidString(line) {
			bad = append(bad, strconv.Itoa(i+1))
			continue
		}
		lines = append(lines, line)
	}
	if len(bad) > 0 {
		return nil, cerrors.New(cerrors.ErrorTypeEncoding, "lines contain invalid characters").
			WithDetail("file", name).
			WithDetail("lines", strings.Join(bad, ","))
	}
	return lines, nil
}

// ReadRows reads path and splits each line into trimmed cells.
func ReadRows(path string) ([][]string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return nil, err
	}
	return ParseLines(path, lines)
}

// ParseLines splits lines into cells. Rows may differ in length.
func ParseLines(name string, lines []string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "malformed CSV").
			WithDetail("file", name)
	}
	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, nil
}

// IsHeader reports whether row is the header of a data file: with spaces
// removed and lowercased it starts with "arraydescription",
// "timeseriesdescription" or an empty first cell.
func IsHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	compressed := strings.ToLower(strings.ReplaceAll(strings.Join(row, ","), " ", ""))
	return strings.HasPrefix(compressed, "arraydescription") ||
		strings.HasPrefix(compressed, "timeseriesdescription") ||
		strings.HasPrefix(compressed, ",")
}

// DataColumns returns the non-empty cells of a header row after its first
// cell, or nil when row is not a header.
func DataColumns(row []string) []string {
	if !IsHeader(row) {
		return nil
	}
	cols := []string{}
	for _, h := range row[1:] {
		if h != "" {
			cols = append(cols, h)
		}
	}
	return cols
}

// CheckHeader rejects headers with empty or duplicate column names.
func CheckHeader(name string, header []string) error {
	for i, h := range header {
		if strings.TrimSpace(h) == "" {
			return cerrors.New(cerrors.ErrorTypeValidation, "malformed header: empty column").
				WithDetail("file", name).
				WithDetail("column", i)
		}
	}
	seen := make(map[string]struct{}, len(header))
	var dupes []string
	for _, h := range header {
		if _, ok := seen[h]; ok {
			dupes = append(dupes, h)
			continue
		}
		seen[h] = struct{}{}
	}
	if len(dupes) > 0 {
		return cerrors.New(cerrors.ErrorTypeValidation, "malformed header: duplicate columns").
			WithDetail("file", name).
			WithDetail("columns", strings.Join(dupes, ","))
	}
	return nil
}

// ParseUnit splits a unit cell such as "1000 m^3" into its unit and factor.
// A cell without a leading number has factor 1.
func ParseUnit(cell string) (string, float64) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell[0] < '0' || cell[0] > '9' {
		return cell, 1.0
	}
	parts := strings.SplitN(cell, " ", 2)
	if len(parts) != 2 {
		return cell, 1.0
	}
	factor, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return cell, 1.0
	}
	return strings.TrimSpace(parts[1]), factor
}
