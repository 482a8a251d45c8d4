// Package observability holds the Prometheus metrics recorded by a pipeline
// run and their textfile export.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "accidents_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for one
// pipeline run. Every series is labelled by pipeline name.
type Metrics struct {
	Registry *prometheus.Registry

	RowsLoaded   *prometheus.CounterVec // labels: pipeline
	LinesSkipped *prometheus.CounterVec // labels: pipeline
	RowsRemoved  *prometheus.CounterVec // labels: pipeline, step
	Unparseable  *prometheus.CounterVec // labels: pipeline, column
	RowsExported *prometheus.CounterVec // labels: pipeline, file

	RunDuration *prometheus.HistogramVec // labels: pipeline
	RunSuccess  *prometheus.GaugeVec     // labels: pipeline
	LastSuccess *prometheus.GaugeVec     // labels: pipeline

	// Weather classification cache.
	ClassifierCache *prometheus.CounterVec // labels: pipeline, result={hit,miss}
}

// NewMetrics creates all run metrics on a private registry, so each test and
// each binary starts from zero.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_loaded_total",
			Help:      "Rows read from the raw source.",
		}, []string{"pipeline"}),
		LinesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_skipped_total",
			Help:      "Malformed source lines skipped by the loader.",
		}, []string{"pipeline"}),
		RowsRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_removed_total",
			Help:      "Rows removed per filter step.",
		}, []string{"pipeline", "step"}),
		Unparseable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unparseable_values_total",
			Help:      "Cells that could not be parsed for their column type.",
		}, []string{"pipeline", "column"}),
		RowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Rows written per output table.",
		}, []string{"pipeline", "file"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a complete pipeline run.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"pipeline"}),
		RunSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 when the last run committed its outputs, 0 when it failed.",
		}, []string{"pipeline"}),
		LastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}, []string{"pipeline"}),
		ClassifierCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weather_classifier_cache_total",
			Help:      "Weather classification lookups by cache result.",
		}, []string{"pipeline", "result"}),
	}

	m.Registry.MustRegister(
		m.RowsLoaded,
		m.LinesSkipped,
		m.RowsRemoved,
		m.Unparseable,
		m.RowsExported,
		m.RunDuration,
		m.RunSuccess,
		m.LastSuccess,
		m.ClassifierCache,
	)

	return m
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
