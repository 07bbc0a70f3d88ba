package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL
// pipeline.
type Metrics struct {
	LocationsFetched  prometheus.Counter
	ExtractFailures   prometheus.Counter
	RowsTransformed   prometheus.Counter
	RowsLoaded        prometheus.Counter
	RowsSkipped       prometheus.Counter
	LoadBatchFailures prometheus.Counter
	ChartsRendered    prometheus.Counter
	ChartFailures     prometheus.Counter

	PipelineRunning prometheus.Gauge
	RunsTotal       *prometheus.CounterVec   // label: outcome={success,failure}
	StageDuration   *prometheus.HistogramVec // label: stage={extract,transform,load,analyze}
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LocationsFetched,
		m.ExtractFailures,
		m.RowsTransformed,
		m.RowsLoaded,
		m.RowsSkipped,
		m.LoadBatchFailures,
		m.ChartsRendered,
		m.ChartFailures,
		m.PipelineRunning,
		m.RunsTotal,
		m.StageDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LocationsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "locations_fetched_total",
			Help:      "Raw documents fetched and persisted per (city, dataset).",
		}),
		ExtractFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "extract_failures_total",
			Help:      "Fetches that exhausted their retry budget.",
		}),
		RowsTransformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "rows_transformed_total",
			Help:      "Cleaned rows written to staged CSVs.",
		}),
		RowsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "rows_loaded_total",
			Help:      "Rows committed to the store.",
		}),
		RowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "rows_skipped_total",
			Help:      "Rows skipped after a failed batch retry.",
		}),
		LoadBatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "load_batch_failures_total",
			Help:      "Store batches that failed their retry.",
		}),
		ChartsRendered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "charts_rendered_total",
			Help:      "Chart artifacts rendered successfully.",
		}),
		ChartFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "chart_failures_total",
			Help:      "Charts that failed to render.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "airq_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is in progress.",
		}),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airq_etl",
			Name:      "runs_total",
			Help:      "Completed pipeline runs by outcome.",
		}, []string{"outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "airq_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"stage"}),
	}
}
