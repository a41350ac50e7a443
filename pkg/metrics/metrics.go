// Package metrics counts what a shapecsv run transcodes using Prometheus
// metrics.
//
// Each run owns a Collector registered on its own registry, so counts from
// one run never leak into the next:
//
//	collector := metrics.NewCollector()
//	collector.DatasetProcessed(metrics.DirectionImport, "timeseries")
//	collector.FileWritten("dataframe")
//
//	families, _ := collector.Registry().Gather()
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "shapecsv"

// Direction labels
const (
	DirectionImport = "import"
	DirectionExport = "export"
)

// Collector holds the metrics of one run.
type Collector struct {
	registry     *prometheus.Registry
	datasets     *prometheus.CounterVec   // datasets by direction and kind
	filesWritten *prometheus.CounterVec   // data files created by kind
	cacheLookups *prometheus.CounterVec   // cache hits and misses by cache
	errors       *prometheus.CounterVec   // errors by type
	runDuration  *prometheus.HistogramVec // run duration by direction
	startTime    time.Time
}

// NewCollector creates a collector on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		datasets: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datasets_total",
				Help:      "Total number of datasets transcoded",
			},
			[]string{"direction", "kind"},
		),
		filesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "data_files_total",
				Help:      "Total number of data files created",
			},
			[]string{"kind"},
		),
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by cache and result",
			},
			[]string{"cache", "result"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by type",
			},
			[]string{"type"},
		),
		runDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of import and export runs",
				Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"direction"},
		),
		startTime: time.Now(),
	}
}

// Registry returns the registry the collector's metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// DatasetProcessed counts one dataset.
func (c *Collector) DatasetProcessed(direction, kind string) {
	c.datasets.WithLabelValues(direction, kind).Inc()
}

// FileWritten counts one data file created.
func (c *Collector) FileWritten(kind string) {
	c.filesWritten.WithLabelValues(kind).Inc()
}

// CacheLookup counts a cache hit or miss.
func (c *Collector) CacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

// Error counts one error of errType.
func (c *Collector) Error(errType string) {
	c.errors.WithLabelValues(errType).Inc()
}

// ObserveRun records the time since the collector was created.
func (c *Collector) ObserveRun(direction string) time.Duration {
	d := time.Since(c.startTime)
	c.runDuration.WithLabelValues(direction).Observe(d.Seconds())
	return d
}

// StartTime returns when the collector was created
func (c *Collector) StartTime() time.Time {
	return c.startTime
}

// Counts returns counter totals keyed by metric name and label values,
// e.g. "datasets_total{import,scalar}".
func (c *Collector) Counts() (map[string]float64, error) {
	families, err := c.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		name := trimNamespace(mf.GetName())
		for _, m := range mf.GetMetric() {
			out[name+labelSuffix(m.GetLabel())] = m.GetCounter().GetValue()
		}
	}
	return out, nil
}

func trimNamespace(name string) string {
	prefix := namespace + "_"
	if len(name) > len(prefix) && name[:len(prefix)] == prefix {
		return name[len(prefix):]
	}
	return name
}

func labelSuffix(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	s := "{"
	for i, l := range labels {
		if i > 0 {
			s += ","
		}
		s += l.GetValue()
	}
	return s + "}"
}
