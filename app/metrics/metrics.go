package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters of a single batch run
type Metrics struct {
	registry *prometheus.Registry

	Files       *prometheus.CounterVec
	Rows        *prometheus.CounterVec
	ReportRows  *prometheus.GaugeVec
	Duration    prometheus.Gauge
	LastSuccess prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Files: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "agile_merge", Name: "files_total", Help: "Export files by report and outcome."},
			[]string{"report", "status"}, // status: ok|skipped
		),
		Rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: "agile_merge", Name: "rows_total", Help: "Export rows by report and outcome."},
			[]string{"report", "outcome"}, // outcome: valid|invalid|untagged|ungrouped
		),
		ReportRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: "agile_merge", Name: "report_rows", Help: "Rows written to each report."},
			[]string{"report"},
		),
		Duration: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "agile_merge", Name: "run_duration_seconds", Help: "Duration of the last run."},
		),
		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: "agile_merge", Name: "last_success_timestamp_seconds", Help: "Unix time the last run wrote both reports."},
		),
	}

	m.registry.MustRegister(m.Files, m.Rows, m.ReportRows, m.Duration, m.LastSuccess)
	return m
}

func (m *Metrics) ObserveFile(report, status string) {
	m.Files.WithLabelValues(report, status).Inc()
}

func (m *Metrics) ObserveRows(report, outcome string, n int) {
	if n > 0 {
		m.Rows.WithLabelValues(report, outcome).Add(float64(n))
	}
}

func (m *Metrics) ObserveReport(report string, rows int) {
	m.ReportRows.WithLabelValues(report).Set(float64(rows))
}

func (m *Metrics) ObserveRun(dur time.Duration, success bool) {
	m.Duration.Set(dur.Seconds())
	if success {
		m.LastSuccess.SetToCurrentTime()
	}
}

// WriteTextfile exports the registry for node_exporter's textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
