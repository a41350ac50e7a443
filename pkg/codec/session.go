// Package codec transcodes datasets to and from CSV for one run.
//
// A Session owns all state that must not outlive a run: the temporal format
// cache, the column order of every data file written, the cache of parsed
// data files and the open file handles. Create one Session per import or
// export and Close it when the run ends, successfully or not:
//
//	s, err := codec.NewSession(opts, logger, nil)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
package codec

import (
	"time"

	"github.com/ajitpratap0/shapecsv/pkg/config"
	"github.com/ajitpratap0/shapecsv/pkg/frame"
	"github.com/ajitpratap0/shapecsv/pkg/metrics"
	"github.com/ajitpratap0/shapecsv/pkg/models"
	"github.com/ajitpratap0/shapecsv/pkg/schema"
	"github.com/ajitpratap0/shapecsv/pkg/temporal"
	"github.com/ajitpratap0/shapecsv/pkg/unknown"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options configure a session.
type Options struct {
	// ExpandFilenames treats cells naming existing files as data file references
	ExpandFilenames bool
	// BasePath is the directory file references are relative to
	BasePath string
	// Location localises naive timestamps
	Location *time.Location
	// SeasonalKey is the sentinel year of seasonal time points
	SeasonalKey string
	// Placeholder is the year token of seasonal literals
	Placeholder string
	// UnknownFile names the unknown value document
	UnknownFile string
}

// OptionsFromConfig builds session options from a run configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Options{}, err
	}
	return Options{
		ExpandFilenames: cfg.Import.ExpandFilenames,
		BasePath:        cfg.Import.BasePath,
		Location:        loc,
		SeasonalKey:     cfg.Seasonal.Key,
		Placeholder:     cfg.Seasonal.Placeholder,
		UnknownFile:     cfg.Export.UnknownFile,
	}, nil
}

// Session is the state of one import or export run.
type Session struct {
	id      string
	logger  *zap.Logger
	opts    Options
	metrics *metrics.Collector

	resolver *temporal.Resolver
	aligner  *frame.Aligner
	unknown  *unknown.Store
	engine   *schema.TypeInferenceEngine

	files   map[string]*dataFile
	written map[string]struct{}
}

// NewSession starts a run. collector may be nil, in which case the session
// keeps its own.
func NewSession(opts Options, logger *zap.Logger, collector *metrics.Collector) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	id := uuid.NewString()
	logger = logger.With(zap.String("run_id", id))

	resolver, err := temporal.NewResolver(opts.SeasonalKey, opts.Placeholder, logger)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:       id,
		logger:   logger,
		opts:     opts,
		metrics:  collector,
		resolver: resolver,
		aligner:  frame.NewAligner(logger),
		unknown:  unknown.NewStore(opts.UnknownFile, logger),
		files:    make(map[string]*dataFile),
		written:  make(map[string]struct{}),
	}
	s.engine = schema.NewTypeInferenceEngine(logger, s)
	return s, nil
}

// ID returns the run ID.
func (s *Session) ID() string {
	return s.id
}

// Logger returns the session logger, tagged with the run ID.
func (s *Session) Logger() *zap.Logger {
	return s.logger
}

// Metrics returns the run's collector.
func (s *Session) Metrics() *metrics.Collector {
	return s.metrics
}

// Resolver returns the run's temporal format resolver.
func (s *Session) Resolver() *temporal.Resolver {
	return s.resolver
}

// Classify classifies one imported cell. ExpandFilenames and BasePath come
// from the session options.
func (s *Session) Classify(raw string, opts schema.Options) (*models.Dataset, error) {
	opts.ExpandFilenames = s.opts.ExpandFilenames
	if opts.BasePath == "" {
		opts.BasePath = s.opts.BasePath
	}
	ds, err := s.engine.Classify(raw, opts)
	if err != nil {
		s.countError(err)
		return nil, err
	}
	s.metrics.DatasetProcessed(metrics.DirectionImport, ds.Kind.String())
	return ds, nil
}

// Flush writes buffered rows of open data files.
func (s *Session) Flush() error {
	return s.aligner.Flush()
}

// Close ends the run: open data files are flushed and closed, and every
// cache is dropped.
func (s *Session) Close() error {
	err := s.aligner.Close()
	s.resolver.Reset()
	s.files = make(map[string]*dataFile)
	s.written = make(map[string]struct{})
	return err
}
