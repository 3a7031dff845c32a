package pipeline

import (
	"context"
	"encoding/json"

	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/store"
	"vendorperf/pkg/contracts/domain"
)

// runTimeLayout is fixed-width so lexical order on started_at is
// chronological order.
const runTimeLayout = "2006-01-02T15:04:05.000000000Z"

// RunLog is the append-only record of pipeline runs, kept in the store next
// to the data it describes. Reports are stored as JSON blobs.
type RunLog struct {
	store *store.Store
}

// NewRunLog creates the run log, ensuring its relation exists.
func NewRunLog(ctx context.Context, st *store.Store) (*RunLog, error) {
	const ddl = `CREATE TABLE IF NOT EXISTS pipeline_runs (
		run_id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		status TEXT NOT NULL,
		report BLOB NOT NULL
	)`
	if _, err := st.DB().ExecContext(ctx, ddl); err != nil {
		return nil, apperrors.NewStorageError("create run log relation", err)
	}
	return &RunLog{store: st}, nil
}

// Append records one finished run. Existing entries are never rewritten.
func (l *RunLog) Append(ctx context.Context, report *domain.RunReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return apperrors.NewStorageError("encode run report", err)
	}

	_, err = l.store.DB().ExecContext(ctx,
		`INSERT INTO pipeline_runs (run_id, started_at, finished_at, status, report)
		 VALUES (?, ?, ?, ?, ?)`,
		report.RunID,
		report.StartedAt.UTC().Format(runTimeLayout),
		report.FinishedAt.UTC().Format(runTimeLayout),
		string(report.Status),
		payload,
	)
	if err != nil {
		return apperrors.NewStorageError("append run report", err)
	}
	return nil
}

// Runs returns the most recent run reports, newest first.
func (l *RunLog) Runs(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.store.DB().QueryContext(ctx,
		`SELECT report FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, apperrors.NewStorageError("query run log", err)
	}
	defer rows.Close()

	var reports []domain.RunReport
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, apperrors.NewStorageError("scan run report", err)
		}
		var report domain.RunReport
		if err := json.Unmarshal(payload, &report); err != nil {
			return nil, apperrors.NewStorageError("decode run report", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("query run log", err)
	}
	return reports, nil
}
