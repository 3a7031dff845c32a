package domain

import "time"

// RunStatus describes the terminal state of a pipeline run.
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// SourceReport records the load outcome for one source in one run.
// Attempted always equals Loaded + Rejected.
type SourceReport struct {
	Source        string `json:"source"`
	Attempted     int64  `json:"attempted"`
	Loaded        int64  `json:"loaded"`
	Rejected      int64  `json:"rejected"`
	OutOfBounds   bool   `json:"out_of_bounds,omitempty"`
	SchemaFailure string `json:"schema_failure,omitempty"`
}

// IntegrityReport counts fact rows whose dimension references did not
// resolve. The rows stay in the load; the gaps are reported, not dropped.
type IntegrityReport struct {
	Check string `json:"check"`
	Gaps  int64  `json:"gaps"`
}

// AggregationStats summarizes warnings raised while deriving the summary.
type AggregationStats struct {
	SummaryRows          int64 `json:"summary_rows"`
	ExcludedMasterRows   int64 `json:"excluded_master_rows"`
	ZeroGuardActivations int64 `json:"zero_guard_activations"`
	SalesOnlyPairs       int64 `json:"sales_only_pairs"`
	UnresolvedSalesPairs int64 `json:"unresolved_sales_pairs"`
}

// RunReport is the append-only record of one pipeline run.
type RunReport struct {
	RunID       string            `json:"run_id"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at"`
	Status      RunStatus         `json:"status"`
	Error       string            `json:"error,omitempty"`
	Sources     []SourceReport    `json:"sources"`
	Integrity   []IntegrityReport `json:"integrity,omitempty"`
	Aggregation AggregationStats  `json:"aggregation"`
}

// SourceFailed reports whether any source load ended in a schema failure.
// Aggregation cannot start when a required input is absent.
func (r *RunReport) SourceFailed() bool {
	for _, s := range r.Sources {
		if s.SchemaFailure != "" {
			return true
		}
	}
	return false
}
