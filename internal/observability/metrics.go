package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "covid_dashboard"

// Metrics holds the Prometheus counters, histograms, and gauges for the dashboard pipeline.
type Metrics struct {
	SourceLoads  *prometheus.CounterVec // labels: outcome={success,error}
	SourceCache  *prometheus.CounterVec // labels: result={hit,miss}
	RowsIngested prometheus.Counter

	BuildDuration      *prometheus.HistogramVec // labels: kind={series,map,admissions}
	BuildErrors        *prometheus.CounterVec   // labels: kind
	StaleSnapshots     prometheus.Counter
	SnapshotsPublished prometheus.Counter
	PublishErrors      prometheus.Counter
	PipelineRunning    prometheus.Gauge
}

func newMetrics() *Metrics {
	return &Metrics{
		SourceLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_loads_total",
			Help:      "Source file loads by outcome.",
		}, []string{"outcome"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Parsed dataset cache lookups by result.",
		}, []string{"result"}),
		RowsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_ingested_total",
			Help:      "Total CSV rows parsed from source files.",
		}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of a complete load-aggregate-apply cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"kind"}),
		BuildErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_errors_total",
			Help:      "Builds abandoned because a source failed to load.",
		}, []string{"kind"}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_snapshots_total",
			Help:      "Snapshots discarded because a newer build was issued.",
		}),
		SnapshotsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_published_total",
			Help:      "Snapshots written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Snapshot publish failures.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
	}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.SourceLoads,
		m.SourceCache,
		m.RowsIngested,
		m.BuildDuration,
		m.BuildErrors,
		m.StaleSnapshots,
		m.SnapshotsPublished,
		m.PublishErrors,
		m.PipelineRunning,
	)
	return m
}

// NewUnregisteredMetrics creates Metrics that are never registered, for
// one-shot commands that do not serve /metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
