// Package models defines the typed dataset model transcoded by shapecsv and
// the network records that carry datasets through a scenario.
package models

import (
	"fmt"
	"strings"

	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
)

// Kind is the closed set of dataset kinds. Switches over Kind are expected to
// be exhaustive; Unknown is the catch-all for values no other kind fits.
type Kind int

const (
	// KindUnknown is a value that matches none of the recognised kinds
	KindUnknown Kind = iota
	// KindScalar is a single numeric value
	KindScalar
	// KindDescriptor is a single textual value
	KindDescriptor
	// KindArray is an n-dimensional array
	KindArray
	// KindDataFrame is a column -> index -> value table
	KindDataFrame
	// KindTimeSeries is a column -> time point -> value table
	KindTimeSeries
)

var kindNames = map[Kind]string{
	KindUnknown:    "unknown",
	KindScalar:     "scalar",
	KindDescriptor: "descriptor",
	KindArray:      "array",
	KindDataFrame:  "dataframe",
	KindTimeSeries: "timeseries",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a kind name, case-insensitively, to a Kind. Names outside
// the closed set map to KindUnknown.
func ParseKind(name string) Kind {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k
		}
	}
	return KindUnknown
}

// IsTabular reports whether values of this kind are written to a
// column-aligned data file.
func (k Kind) IsTabular() bool {
	return k == KindDataFrame || k == KindTimeSeries
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *Kind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

// DefaultDatasetName is used when the imported metadata carries no name.
const DefaultDatasetName = "Import CSV data"

// Dataset is one typed value attached to a resource attribute.
//
// Value holds the raw text for scalars and descriptors, and the JSON
// encoding for arrays, dataframes, timeseries and unknown values.
type Dataset struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"type"`
	TypeName string   `json:"type_name,omitempty"` // original type name of an unknown value
	Value    string   `json:"value"`
	Unit     string   `json:"unit,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// TypeLabel is the type name written alongside the value: the kind name, or
// for unknown values the original type name when one was recorded.
func (d *Dataset) TypeLabel() string {
	if d.Kind == KindUnknown && d.TypeName != "" {
		return d.TypeName
	}
	return d.Kind.String()
}

func (d *Dataset) String() string {
	return fmt.Sprintf("%s(%s)", d.Kind, d.Name)
}

// Metadata is an ordered string -> string mapping.
type Metadata struct {
	keys   []string
	values map[string]string
}

// NewMetadata creates metadata from alternating key, value pairs.
func NewMetadata(pairs ...string) Metadata {
	var m Metadata
	for i := 0; i+1 < len(pairs); i += 2 {
		m.Set(pairs[i], pairs[i+1])
	}
	return m
}

// Set inserts or replaces a value, keeping first-insertion order.
func (m *Metadata) Set(key, value string) {
	if m.values == nil {
		m.values = make(map[string]string)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key.
func (m Metadata) Get(key string) (string, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key.
func (m *Metadata) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (m Metadata) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of entries.
func (m Metadata) Len() int {
	return len(m.keys)
}

// MarshalJSON writes the entries in insertion order.
func (m Metadata) MarshalJSON() ([]byte, error) {
	fields := make([]jsonpool.Field, 0, len(m.keys))
	for _, k := range m.keys {
		fields = append(fields, jsonpool.Field{Key: k, Value: m.values[k]})
	}
	return jsonpool.MarshalObject(fields)
}

// UnmarshalJSON reads a JSON object, keeping its key order.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]string
	if err := jsonpool.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Metadata{}
	if raw == nil {
		return nil
	}
	keys, err := jsonpool.ObjectKeys(data)
	if err != nil {
		return err
	}
	for _, k := range keys {
		m.Set(k, raw[k])
	}
	return nil
}
