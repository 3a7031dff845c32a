package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics holds the prometheus collectors for one pipeline process.
// Counters are labelled by source so the six parallel loads stay separable.
type PipelineMetrics struct {
	RowsAttempted *prometheus.CounterVec
	RowsLoaded    *prometheus.CounterVec
	RowsRejected  *prometheus.CounterVec
	IntegrityGaps *prometheus.CounterVec
	ZeroGuards    prometheus.Counter
	ExcludedRows  prometheus.Counter
	RunDuration   prometheus.Gauge
}

// NewPipelineMetrics creates and registers the pipeline collectors on the
// given registry.
func NewPipelineMetrics(reg prometheus.Registerer) *PipelineMetrics {
	m := &PipelineMetrics{
		RowsAttempted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorperf_rows_attempted_total",
			Help: "Rows read from a raw source.",
		}, []string{"source"}),
		RowsLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorperf_rows_loaded_total",
			Help: "Rows committed to the store.",
		}, []string{"source"}),
		RowsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorperf_rows_rejected_total",
			Help: "Rows skipped for per-row coercion failures.",
		}, []string{"source"}),
		IntegrityGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vendorperf_integrity_gaps_total",
			Help: "Fact rows whose dimension references did not resolve.",
		}, []string{"check"}),
		ZeroGuards: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vendorperf_zero_guard_activations_total",
			Help: "Ratio derivations short-circuited by a zero denominator.",
		}),
		ExcludedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vendorperf_excluded_master_rows_total",
			Help: "Summary rows dropped for invalid master data.",
		}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vendorperf_run_duration_seconds",
			Help: "Wall-clock duration of the last pipeline run.",
		}),
	}

	reg.MustRegister(
		m.RowsAttempted,
		m.RowsLoaded,
		m.RowsRejected,
		m.IntegrityGaps,
		m.ZeroGuards,
		m.ExcludedRows,
		m.RunDuration,
	)

	return m
}
