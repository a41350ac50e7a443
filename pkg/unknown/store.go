// Package unknown persists dataset values that match no recognised kind as
// keyed entries of one JSON document per target directory.
package unknown

import (
	"os"
	"path/filepath"
	"sort"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	jsonpool "github.com/ajitpratap0/shapecsv/pkg/json"
	"go.uber.org/zap"
)

// DefaultFileName is the document name used when none is configured.
const DefaultFileName = "unknown_values.json"

// Entry is one stored value.
type Entry struct {
	DataType string              `json:"data_type"`
	Data     jsonpool.RawMessage `json:"data"`
}

// Key composes the document key for a resource attribute.
func Key(resource, attribute string) string {
	return resource + "<>" + attribute
}

// Store records unknown values into <target dir>/<file name>.
type Store struct {
	logger   *zap.Logger
	fileName string
}

// NewStore creates a store writing to fileName in each target directory.
func NewStore(fileName string, logger *zap.Logger) *Store {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{logger: logger, fileName: fileName}
}

// Record stores value under resource<>attribute in the target directory's
// document, merging with any entries already there, and returns the document
// file name to reference from the attribute cell.
//
// A value that is not valid JSON cannot be stored; that is logged as a
// warning and the raw value is returned instead of the file name. Failing to
// read or write the document is a file error.
func (s *Store) Record(targetDir, resource, attribute, dataType, value string) (string, error) {
	if !jsonpool.Valid([]byte(value)) {
		s.logger.Warn("unknown value is not serializable, returning raw value",
			zap.String("resource", resource),
			zap.String("attribute", attribute),
			zap.String("data_type", dataType),
			zap.String("value", truncate(value)))
		return value, nil
	}

	path := filepath.Join(targetDir, s.fileName)
	doc, err := load(path)
	if err != nil {
		return "", err
	}
	doc[Key(resource, attribute)] = Entry{
		DataType: dataType,
		Data:     jsonpool.RawMessage(value),
	}
	if err := save(path, doc); err != nil {
		return "", err
	}
	s.logger.Debug("recorded unknown value",
		zap.String("path", path),
		zap.String("key", Key(resource, attribute)))
	return s.fileName, nil
}

// Read returns the entry for resource<>attribute in the document at path. A
// document holding a single entry answers any key. An empty resource and
// attribute select the first entry.
func Read(path, resource, attribute string) (Entry, error) {
	if _, err := os.Stat(path); err != nil {
		return Entry{}, cerrors.Wrap(err, cerrors.ErrorTypeFile, "unable to read JSON file").
			WithDetail("path", path)
	}
	doc, err := load(path)
	if err != nil {
		return Entry{}, err
	}
	if len(doc) == 0 {
		return Entry{}, cerrors.New(cerrors.ErrorTypeNotFound, "no data found").
			WithDetail("file", filepath.Base(path))
	}

	if resource == "" && attribute == "" {
		return doc[firstKey(path, doc)], nil
	}
	if e, ok := doc[Key(resource, attribute)]; ok {
		return e, nil
	}
	if len(doc) == 1 {
		return doc[firstKey(path, doc)], nil
	}
	return Entry{}, cerrors.New(cerrors.ErrorTypeNotFound, "no data for resource attribute").
		WithDetail("key", Key(resource, attribute)).
		WithDetail("file", filepath.Base(path))
}

// firstKey returns the first key in document order, falling back to the
// smallest key.
func firstKey(path string, doc map[string]Entry) string {
	if data, err := os.ReadFile(path); err == nil {
		if keys, err := jsonpool.ObjectKeys(data); err == nil && len(keys) > 0 {
			return keys[0]
		}
	}
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[0]
}

func load(path string) (map[string]Entry, error) {
	doc := make(map[string]Entry)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to read unknown value document").
			WithDetail("path", path)
	}
	if err := jsonpool.Unmarshal(data, &doc); err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeFile, "malformed unknown value document").
			WithDetail("path", path)
	}
	return doc, nil
}

// save writes entries in key order so repeated runs produce identical files.
func save(path string, doc map[string]Entry) error {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]jsonpool.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, jsonpool.Field{Key: k, Value: doc[k]})
	}
	data, err := jsonpool.MarshalObject(fields)
	if err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeInternal, "failed to encode unknown value document").
			WithDetail("path", path)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return cerrors.Wrap(err, cerrors.ErrorTypeFile, "failed to write unknown value document").
			WithDetail("path", path)
	}
	return nil
}

func truncate(s string) string {
	const max = 100
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
