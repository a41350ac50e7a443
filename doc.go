// Package shapecsv transcodes networks of typed datasets between JSON
// documents and directories of CSV files.
//
// A network holds nodes, links and groups, and every resource carries
// attribute values per scenario. Each value is a dataset of one of a closed
// set of kinds:
//
//	scalar      a number, written inline in the resource file
//	descriptor  free text, written inline
//	array       an n-dimensional array, written to array_<ref>_<attr>.csv
//	dataframe   a table of named columns, written to dataframe_<ref>_<attr>.csv
//	timeseries  a table indexed by timestamps, written to timeseries_<ref>_<attr>.csv
//	unknown     anything else, kept verbatim in unknown_values.json
//
// # Quick Start
//
// Export a network document and import it back:
//
//	shapecsv export basin.json --target ./out
//	shapecsv import ./out/network_River_Basin/Base_case -o basin.json
//
// From Go, run the pipeline directly:
//
//	import (
//	    "context"
//	    "github.com/ajitpratap0/shapecsv/internal/pipeline"
//	    "github.com/ajitpratap0/shapecsv/pkg/codec"
//	    "github.com/ajitpratap0/shapecsv/pkg/config"
//	    "github.com/ajitpratap0/shapecsv/pkg/metrics"
//	)
//
//	cfg := config.NewConfig()
//	opts, _ := codec.OptionsFromConfig(cfg)
//	importer := pipeline.NewImporter(opts, metrics.NewCollector(), nil, logger)
//	result, err := importer.Import(context.Background(), pipeline.ImportOptions{Dir: dir})
//
// # Key Packages
//
//	pkg/codec          - Session, cell classification and dataset export
//	pkg/schema         - Type inference and restriction checks
//	pkg/shape          - Array shapes, flattening and reshaping
//	pkg/temporal       - Timestamp format resolution and normalisation
//	pkg/frame          - Ordered tables and column-aligned data files
//	pkg/unknown        - Side store for values of unknown type
//	pkg/csvfile        - Line-oriented CSV reading and header checks
//	pkg/models         - Datasets, networks and documents
//	pkg/config         - Configuration via viper and YAML
//	pkg/errors         - Structured error handling
//	pkg/logger         - Structured logging
//	pkg/metrics        - Prometheus counters per run
//	pkg/observability  - OpenTelemetry tracing
//
// # Configuration
//
// Configuration is read from shapecsv.yaml in the working directory, or the
// file given with --config. Environment variables prefixed SHAPECSV_
// override file values, e.g. SHAPECSV_IMPORT_TIMEZONE=Europe/London.
package shapecsv
