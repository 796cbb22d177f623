// Package observability holds the Prometheus metrics of a refresh run.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventcal"

// Run outcomes recorded in RunsTotal.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Metrics holds the counters, gauges and histograms of the refresh pipeline.
// Each instance owns its registry so it can be exported as a textfile.
type Metrics struct {
	registry *prometheus.Registry

	// RunsTotal is labelled by outcome; the calendar vectors by calendar file.
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	LastSuccess    prometheus.Gauge
	EventsFetched  prometheus.Gauge
	FormatErrors   prometheus.Counter
	EntriesWritten *prometheus.GaugeVec
	CalendarBytes  *prometheus.GaugeVec
	WriteErrors    *prometheus.CounterVec
}

// NewMetrics creates all pipeline metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Refresh runs by outcome.",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete fetch-format-write run.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that wrote every calendar.",
		}),
		EventsFetched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_fetched",
			Help:      "Valid events in the last fetched feed.",
		}),
		FormatErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_errors_total",
			Help:      "Events skipped because they could not be formatted.",
		}),
		EntriesWritten: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calendar_entries",
			Help:      "Entries in the last written calendar file.",
		}, []string{"calendar"}),
		CalendarBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "calendar_bytes",
			Help:      "Size of the last written calendar file.",
		}, []string{"calendar"}),
		WriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calendar_write_errors_total",
			Help:      "Calendar files that could not be rendered or written.",
		}, []string{"calendar"}),
	}

	m.registry.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.LastSuccess,
		m.EventsFetched,
		m.FormatErrors,
		m.EntriesWritten,
		m.CalendarBytes,
		m.WriteErrors,
	)
	return m
}

// NewMetricsForTesting returns metrics on a fresh registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics()
}

// Registry exposes the underlying registry, e.g. for testutil.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics for node-exporter's textfile
// collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
