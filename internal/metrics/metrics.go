package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tendant/simple-thumbnail-pipeline/pkg/pipeline"
)

// Metrics holds the Prometheus metrics for one generator process.
// All methods are safe on a nil receiver so metrics stay optional.
type Metrics struct {
	registry *prometheus.Registry

	FilesTotal    *prometheus.CounterVec
	IgnoredTotal  prometheus.Counter
	UnitDuration  prometheus.Histogram
	UnitsInFlight prometheus.Gauge
	OutputBytes   prometheus.Counter
	BatchDuration prometheus.Gauge
}

// New creates the metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FilesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "thumbgen_files_total",
				Help: "Source files processed, by outcome",
			},
			[]string{"status"},
		),

		IgnoredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "thumbgen_ignored_files_total",
				Help: "Directory entries skipped because their extension is not allowed",
			},
		),

		UnitDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "thumbgen_unit_duration_seconds",
				Help:    "Time to decode, resize, encode and write one thumbnail",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),

		UnitsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "thumbgen_units_in_flight",
				Help: "Thumbnails currently being generated",
			},
		),

		OutputBytes: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "thumbgen_output_bytes_total",
				Help: "Bytes written to the thumbnail directory",
			},
		),

		BatchDuration: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "thumbgen_batch_duration_seconds",
				Help: "Wall time of the last completed batch",
			},
		),
	}
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// UnitStarted marks a unit as in flight
func (m *Metrics) UnitStarted() {
	if m == nil {
		return
	}
	m.UnitsInFlight.Inc()
}

// UnitFinished records the outcome of a unit that was started
func (m *Metrics) UnitFinished(r pipeline.FileResult) {
	if m == nil {
		return
	}
	m.UnitsInFlight.Dec()
	m.FileResolved(r)
	m.UnitDuration.Observe(r.Duration.Seconds())
}

// FileResolved counts a file outcome without touching the in-flight gauge
func (m *Metrics) FileResolved(r pipeline.FileResult) {
	if m == nil {
		return
	}
	m.FilesTotal.WithLabelValues(string(r.Status)).Inc()
	m.OutputBytes.Add(float64(r.Bytes))
}

// Ignored counts entries filtered out by the allow-list
func (m *Metrics) Ignored(n int) {
	if m == nil {
		return
	}
	m.IgnoredTotal.Add(float64(n))
}

// BatchFinished records the wall time of a batch
func (m *Metrics) BatchFinished(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Set(d.Seconds())
}

// WriteTextfile dumps the registry in text exposition format for a textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
