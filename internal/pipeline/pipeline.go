// Package pipeline orchestrates a single batch run: parallel ingestion of
// the six sources, a hard barrier, the aggregation pass, and publication.
// A run either completes and publishes, or fails and leaves the previously
// published summary untouched.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"vendorperf/internal/config"
	apperrors "vendorperf/internal/errors"
	"vendorperf/internal/infrastructure"
	"vendorperf/internal/ingest"
	"vendorperf/internal/publish"
	"vendorperf/internal/schema"
	"vendorperf/internal/store"
	"vendorperf/internal/summary"
	"vendorperf/pkg/contracts/domain"
)

// Pipeline wires the components of one run.
type Pipeline struct {
	cfg       *config.Config
	registry  *schema.Registry
	store     *store.Store
	loader    *ingest.Loader
	aggregate *summary.Aggregator
	publisher *publish.Publisher
	runLog    *RunLog
	logger    *slog.Logger
	metrics   *infrastructure.PipelineMetrics
}

// New assembles a pipeline over an open store.
func New(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) (*Pipeline, error) {
	runLog, err := NewRunLog(ctx, st)
	if err != nil {
		return nil, err
	}

	registry := schema.NewRegistry()
	return &Pipeline{
		cfg:       cfg,
		registry:  registry,
		store:     st,
		loader:    ingest.NewLoader(st, logger, metrics, cfg.Ingest),
		aggregate: summary.NewAggregator(st, logger, metrics),
		publisher: publish.NewPublisher(st, registry, logger),
		runLog:    runLog,
		logger:    logger.With(slog.String("component", "pipeline")),
		metrics:   metrics,
	}, nil
}

// Publisher exposes the read-only summary surface for the query server.
func (p *Pipeline) Publisher() *publish.Publisher {
	return p.publisher
}

// RunLog exposes the append-only run record.
func (p *Pipeline) RunLog() *RunLog {
	return p.runLog
}

// Run executes one full pipeline run.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := p.logger.With(slog.String("run_id", report.RunID))
	logger.InfoContext(ctx, "pipeline run started")

	if err := p.Ingest(ctx, report); err != nil {
		return p.finish(ctx, report, err)
	}

	// Hard barrier passed: every source load finished. Aggregation cannot
	// proceed when any required input is absent.
	if report.SourceFailed() {
		err := apperrors.NewSchemaError("pipeline",
			"a required source failed its schema check; aggregation aborted")
		return p.finish(ctx, report, err)
	}

	integrity, err := p.loader.VerifyReferences(ctx)
	if err != nil {
		return p.finish(ctx, report, err)
	}
	report.Integrity = integrity

	rows, stats, err := p.aggregate.Build(ctx)
	if err != nil {
		return p.finish(ctx, report, err)
	}
	report.Aggregation = stats

	if err := p.publisher.Publish(ctx, rows); err != nil {
		return p.finish(ctx, report, err)
	}

	if p.cfg.Export.Enabled {
		if err := p.publisher.ExportCSV(ctx, p.cfg.Export.Path, rows); err != nil {
			return p.finish(ctx, report, err)
		}
	}

	return p.finish(ctx, report, nil)
}

// IngestOnly runs the load and integrity phases without aggregating, for
// operators reloading sources ahead of a later summarize run.
func (p *Pipeline) IngestOnly(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	if err := p.Ingest(ctx, report); err != nil {
		return p.finish(ctx, report, err)
	}
	if report.SourceFailed() {
		err := apperrors.NewSchemaError("pipeline",
			"a required source failed its schema check")
		return p.finish(ctx, report, err)
	}

	integrity, err := p.loader.VerifyReferences(ctx)
	if err != nil {
		return p.finish(ctx, report, err)
	}
	report.Integrity = integrity

	return p.finish(ctx, report, nil)
}

// Summarize aggregates and publishes from an already-loaded store.
func (p *Pipeline) Summarize(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}

	rows, stats, err := p.aggregate.Build(ctx)
	if err != nil {
		return p.finish(ctx, report, err)
	}
	report.Aggregation = stats

	if err := p.publisher.Publish(ctx, rows); err != nil {
		return p.finish(ctx, report, err)
	}

	if p.cfg.Export.Enabled {
		if err := p.publisher.ExportCSV(ctx, p.cfg.Export.Path, rows); err != nil {
			return p.finish(ctx, report, err)
		}
	}

	return p.finish(ctx, report, nil)
}

// Ingest loads the six sources concurrently. The loads are independent:
// each goroutine owns its own reader cursor and its own counters, and
// writes only its own slot of the report. A schema violation aborts its
// source but never the sibling loads.
func (p *Pipeline) Ingest(ctx context.Context, report *domain.RunReport) error {
	sources := p.registry.Sources()
	reports := make([]domain.SourceReport, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			rep, err := p.loadOne(gctx, src)
			reports[i] = rep
			if err != nil && !ingest.IsSchemaFailure(err) {
				return err
			}
			return nil
		})
	}

	err := g.Wait()
	report.Sources = reports
	return err
}

func (p *Pipeline) loadOne(ctx context.Context, src schema.Table) (domain.SourceReport, error) {
	path, err := p.resolveSourcePath(src.Name)
	if err != nil {
		report := domain.SourceReport{Source: src.Name, SchemaFailure: err.Error()}
		p.logger.ErrorContext(ctx, "source file not found",
			slog.String("source", src.Name),
			slog.String("error", err.Error()))
		return report, err
	}

	reader, err := ingest.OpenReader(path)
	if err != nil {
		report := domain.SourceReport{Source: src.Name, SchemaFailure: err.Error()}
		return report, apperrors.NewSchemaError(src.Name, err.Error())
	}
	defer reader.Close()

	return p.loader.LoadSource(ctx, src, reader)
}

// resolveSourcePath maps a source name onto its raw file. CSV drops take
// precedence over spreadsheet drops of the same source.
func (p *Pipeline) resolveSourcePath(source string) (string, error) {
	for _, ext := range []string{".csv", ".xlsx"} {
		path := filepath.Join(p.cfg.Data.RawDir, source+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", apperrors.NewSchemaError(source,
		fmt.Sprintf("no raw file for source %s under %s", source, p.cfg.Data.RawDir))
}

// finish closes out the report, records the run, and reports duration.
func (p *Pipeline) finish(ctx context.Context, report *domain.RunReport, runErr error) (*domain.RunReport, error) {
	report.FinishedAt = time.Now().UTC()
	if runErr != nil {
		report.Status = domain.RunStatusFailed
		report.Error = runErr.Error()
	} else {
		report.Status = domain.RunStatusCompleted
	}

	duration := report.FinishedAt.Sub(report.StartedAt)
	if p.metrics != nil {
		p.metrics.RunDuration.Set(duration.Seconds())
	}

	// Recording the run must not mask the run outcome itself.
	if err := p.runLog.Append(ctx, report); err != nil {
		p.logger.WarnContext(ctx, "failed to append run report",
			slog.String("run_id", report.RunID),
			slog.String("error", err.Error()))
	}

	p.logger.InfoContext(ctx, "pipeline run finished",
		slog.String("run_id", report.RunID),
		slog.String("status", string(report.Status)),
		slog.Duration("duration", duration))

	return report, runErr
}
