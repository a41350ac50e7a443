// Package schema classifies raw CSV cells into typed datasets and checks
// dataset values against restriction rules.
package schema

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	cerrors "github.com/ajitpratap0/shapecsv/pkg/errors"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"go.uber.org/zap"
)

// Options control how one cell is classified.
type Options struct {
	// ExpandFilenames enables treating cells as data file references
	ExpandFilenames bool
	// BasePath is the directory file references are relative to
	BasePath string
	// Resource selects the rows of a data file that belong to the cell
	Resource string
	// Attribute names the attribute, used to look up unknown values
	Attribute string
	// Unit is attached to the dataset unchanged
	Unit string
	// Metadata is attached to the dataset; a "name" entry becomes the
	// dataset name and is removed
	Metadata models.Metadata
	// Restrictions are checked against the produced value
	Restrictions Restrictions
}

// FileDataset is the typed content a data file holds for one resource.
type FileDataset struct {
	Kind     models.Kind
	TypeName string
	Value    string
}

// FileResolver reads referenced data files. Implementations cache parsed
// files by path for the duration of a run.
type FileResolver interface {
	ResolveFile(path string, opts Options) (*FileDataset, error)
}

// TypeInferenceEngine decides whether a raw cell is a scalar, a reference
// to a data file, or a descriptor.
type TypeInferenceEngine struct {
	logger   *zap.Logger
	resolver FileResolver

	hexPattern *regexp.Regexp
}

// NewTypeInferenceEngine creates an engine. resolver may be nil, in which
// case no cell is treated as a file reference.
func NewTypeInferenceEngine(logger *zap.Logger, resolver FileResolver) *TypeInferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeInferenceEngine{
		logger:     logger,
		resolver:   resolver,
		hexPattern: regexp.MustCompile(`^[+-]?0[xX]`),
	}
}

// Classify builds the dataset a raw cell represents. The checks run in a
// fixed order: a number is a scalar; otherwise, with filename expansion, a
// path to an existing file is resolved to the file's dataset; anything else
// is a descriptor. The produced value is checked against opts.Restrictions
// in every case.
func (e *TypeInferenceEngine) Classify(raw string, opts Options) (*models.Dataset, error) {
	ds := &models.Dataset{
		Name:     models.DefaultDatasetName,
		Unit:     opts.Unit,
		Metadata: copyMetadata(opts.Metadata),
	}
	if name, ok := ds.Metadata.Get("name"); ok && name != "" {
		ds.Name = name
		ds.Metadata.Delete("name")
	}

	switch {
	case e.IsScalar(raw):
		ds.Kind = models.KindScalar
		ds.Value = strings.TrimSpace(raw)
	default:
		fd, err := e.resolveFile(raw, opts)
		if err != nil {
			return nil, err
		}
		if fd != nil {
			ds.Kind = fd.Kind
			ds.TypeName = fd.TypeName
			ds.Value = fd.Value
		} else {
			ds.Kind = models.KindDescriptor
			ds.Value = raw
		}
	}

	if err := opts.Restrictions.Validate(ds.Kind, ds.Value); err != nil {
		return nil, cerrors.Wrap(err, cerrors.ErrorTypeValidation, "dataset failed validation").
			WithDetail("resource", opts.Resource).
			WithDetail("attribute", opts.Attribute)
	}

	e.logger.Debug("classified cell",
		zap.String("resource", opts.Resource),
		zap.String("attribute", opts.Attribute),
		zap.Stringer("kind", ds.Kind))
	return ds, nil
}

// IsScalar reports whether raw parses as a decimal floating point number.
func (e *TypeInferenceEngine) IsScalar(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" || e.hexPattern.MatchString(s) || strings.Contains(s, "_") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil || isRangeError(err)
}

// FilePath returns the path raw refers to under opts.BasePath when filename
// expansion is enabled and that path is an existing regular file.
func (e *TypeInferenceEngine) FilePath(raw string, opts Options) (string, bool) {
	if !opts.ExpandFilenames || strings.TrimSpace(raw) == "" {
		return "", false
	}
	rel := strings.ReplaceAll(strings.TrimSpace(raw), `\`, string(os.PathSeparator))
	full := filepath.Join(opts.BasePath, rel)
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return "", false
	}
	return full, true
}

func (e *TypeInferenceEngine) resolveFile(raw string, opts Options) (*FileDataset, error) {
	if e.resolver == nil {
		return nil, nil
	}
	path, ok := e.FilePath(raw, opts)
	if !ok {
		return nil, nil
	}
	fd, err := e.resolver.ResolveFile(path, opts)
	if err != nil {
		return nil, err
	}
	return fd, nil
}

func isRangeError(err error) bool {
	var numErr *strconv.NumError
	return cerrors.As(err, &numErr) && numErr.Err == strconv.ErrRange
}

func copyMetadata(m models.Metadata) models.Metadata {
	var out models.Metadata
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		out.Set(k, v)
	}
	return out
}
