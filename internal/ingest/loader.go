// Package ingest implements the ingestion engine: chunked readers over raw
// tabular sources, schema-driven type coercion, and staged loads into the
// relational store.
package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"

	"vendorperf/internal/config"
	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/infrastructure"
	"vendorperf/internal/schema"
	"vendorperf/internal/store"
	"vendorperf/pkg/contracts/domain"
)

// rejectLogLimit caps per-row reject logging at warn level; everything past
// the cap is logged at debug so a corrupt multi-million-row source cannot
// flood the run log.
const rejectLogLimit = 10

// Loader loads one raw source at a time into the store under its declared
// schema. Each source load owns its own reader cursor and counters; loads
// for different sources share nothing and may run concurrently.
type Loader struct {
	store     *store.Store
	logger    *slog.Logger
	metrics   *infrastructure.PipelineMetrics
	chunkSize int
	tolerance float64
}

// NewLoader creates a loader with the configured chunk size and row-count
// tolerance.
func NewLoader(st *store.Store, logger *slog.Logger, metrics *infrastructure.PipelineMetrics, cfg config.IngestConfig) *Loader {
	return &Loader{
		store:     st,
		logger:    logger.With(slog.String("component", "loader")),
		metrics:   metrics,
		chunkSize: cfg.ChunkSize,
		tolerance: cfg.RowCountTolerance,
	}
}

// LoadSource streams the source through bounded chunks into a staging
// relation, then atomically replaces the live table. Re-running a load
// replaces prior contents; a failed load leaves them untouched.
//
// A header mismatch is fatal for the source and is reported both in the
// returned error and in the report's SchemaFailure. Per-row coercion
// failures are absorbed: the row is skipped, counted, and logged.
func (l *Loader) LoadSource(ctx context.Context, tbl schema.Table, r RecordReader) (domain.SourceReport, error) {
	report := domain.SourceReport{Source: tbl.Name}

	hm, err := ValidateHeader(tbl, r.Header())
	if err != nil {
		report.SchemaFailure = err.Error()
		l.logger.ErrorContext(ctx, "schema violation, source aborted",
			slog.String("source", tbl.Name),
			slog.String("error", err.Error()))
		return report, err
	}

	staging, err := l.store.CreateStaging(ctx, tbl)
	if err != nil {
		return report, err
	}

	chunk := make([][]interface{}, 0, l.chunkSize)
	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		if err := l.store.InsertChunk(ctx, staging, tbl, chunk); err != nil {
			return err
		}
		chunk = chunk[:0]
		return nil
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			l.dropStaging(ctx, tbl.Name)
			return report, apperrors.NewStorageError("read source record", err).
				WithContext("source", tbl.Name).
				WithContext("row", report.Attempted+1)
		}

		report.Attempted++
		values, cerr := CoerceRow(tbl, hm, record, report.Attempted)
		if cerr != nil {
			report.Rejected++
			l.logReject(ctx, tbl.Name, report.Attempted, report.Rejected, cerr)
			continue
		}

		chunk = append(chunk, values)
		report.Loaded++
		if len(chunk) >= l.chunkSize {
			if err := flush(); err != nil {
				l.dropStaging(ctx, tbl.Name)
				return report, err
			}
		}
	}

	if err := flush(); err != nil {
		l.dropStaging(ctx, tbl.Name)
		return report, err
	}

	if err := l.store.Swap(ctx, tbl); err != nil {
		l.dropStaging(ctx, tbl.Name)
		return report, err
	}

	report.OutOfBounds = l.outOfBounds(tbl.Expected, report.Loaded)
	if report.OutOfBounds {
		l.logger.WarnContext(ctx, "row count outside expected range",
			slog.String("source", tbl.Name),
			slog.Int64("loaded", report.Loaded),
			slog.Int64("expected_min", tbl.Expected.Min),
			slog.Int64("expected_max", tbl.Expected.Max))
	}

	if l.metrics != nil {
		l.metrics.RowsAttempted.WithLabelValues(tbl.Name).Add(float64(report.Attempted))
		l.metrics.RowsLoaded.WithLabelValues(tbl.Name).Add(float64(report.Loaded))
		l.metrics.RowsRejected.WithLabelValues(tbl.Name).Add(float64(report.Rejected))
	}

	l.logger.InfoContext(ctx, "source loaded",
		slog.String("source", tbl.Name),
		slog.Int64("attempted", report.Attempted),
		slog.Int64("loaded", report.Loaded),
		slog.Int64("rejected", report.Rejected))

	return report, nil
}

func (l *Loader) logReject(ctx context.Context, source string, row, rejected int64, err error) {
	level := slog.LevelWarn
	if rejected > rejectLogLimit {
		level = slog.LevelDebug
	}
	l.logger.Log(ctx, level, "row rejected",
		slog.String("source", source),
		slog.Int64("row", row),
		slog.String("error", err.Error()))
}

func (l *Loader) dropStaging(ctx context.Context, table string) {
	if err := l.store.DropStaging(ctx, table); err != nil {
		l.logger.WarnContext(ctx, "failed to drop staging table",
			slog.String("table", table),
			slog.String("error", err.Error()))
	}
}

// outOfBounds widens the declared bounds by the configured tolerance before
// flagging. Upstream volume legitimately varies run to run, so this is a
// warning signal, never fatal.
func (l *Loader) outOfBounds(bounds schema.RowBounds, loaded int64) bool {
	if bounds.Min > 0 {
		min := int64(math.Floor(float64(bounds.Min) * (1 - l.tolerance)))
		if loaded < min {
			return true
		}
	}
	if bounds.Max > 0 {
		max := int64(math.Ceil(float64(bounds.Max) * (1 + l.tolerance)))
		if loaded > max {
			return true
		}
	}
	return false
}

// IsSchemaFailure reports whether a load error was a schema violation, i.e.
// fatal for its source but not for the other, independent source loads.
func IsSchemaFailure(err error) bool {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Type == apperrors.ErrTypeSchema
	}
	return false
}
