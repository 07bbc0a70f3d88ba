// Package pipeline orchestrates the extract, transform, load, and analyze
// stages of a run. Stages hand work to each other through on-disk artifacts,
// so each stage can be rerun or inspected in isolation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/urbanaq/airq-etl/internal/domain"
	"github.com/urbanaq/airq-etl/internal/observability"
)

// Extractor fetches raw provider documents for every configured city and
// persists them as raw artifacts.
type Extractor interface {
	ExtractAll(ctx context.Context) (domain.ExtractReport, error)
}

// Transformer flattens raw artifacts into cleaned, derived tables and writes
// them as staged artifacts.
type Transformer interface {
	TransformAll(ctx context.Context, report domain.ExtractReport) ([]domain.StagedArtifact, error)
}

// Loader commits staged rows to the warehouse.
type Loader interface {
	LoadAll(ctx context.Context, staged []domain.StagedArtifact) ([]domain.LoadReport, error)
}

// Analyzer computes summary statistics and charts from the staged tables.
type Analyzer interface {
	Analyze(ctx context.Context, staged []domain.StagedArtifact) (domain.SummaryReport, error)
}

// Pipeline runs the four stages in order and records per-stage observability.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	loader      Loader
	analyzer    Analyzer
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e Extractor, t Transformer, l Loader, a Analyzer, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		analyzer:    a,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once at least one run has completed.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no pipeline run has completed yet")
	}
	return nil
}

// Run executes one full extract-transform-load-analyze cycle. A stage error
// aborts the run; later stages never see partial input from a failed stage.
func (p *Pipeline) Run(ctx context.Context) (err error) {
	start := time.Now()
	p.logger.Info("pipeline run starting")
	p.metrics.PipelineRunning.Set(1)
	defer func() {
		p.metrics.PipelineRunning.Set(0)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		p.metrics.RunsTotal.WithLabelValues(outcome).Inc()
		p.logger.Info("pipeline run finished", "outcome", outcome, "duration", time.Since(start))
	}()

	extracted, err := p.runExtract(ctx)
	if err != nil {
		return err
	}

	staged, err := p.runTransform(ctx, extracted)
	if err != nil {
		return err
	}

	if err := p.runLoad(ctx, staged); err != nil {
		return err
	}

	if err := p.runAnalyze(ctx, staged); err != nil {
		return err
	}

	p.ready.Store(true)
	return nil
}

func (p *Pipeline) runExtract(ctx context.Context) (domain.ExtractReport, error) {
	stageStart := time.Now()
	report, err := p.extractor.ExtractAll(ctx)
	p.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(stageStart).Seconds())

	p.metrics.LocationsFetched.Add(float64(len(report.Artifacts)))
	p.metrics.ExtractFailures.Add(float64(len(report.Failures)))
	for _, f := range report.Failures {
		p.logger.Warn("extract failed for location",
			"city", f.City, "dataset", f.Kind, "error", f.Err)
	}
	if err != nil {
		return report, fmt.Errorf("extract: %w", err)
	}

	p.logger.Info("extract complete",
		"artifacts", len(report.Artifacts), "failures", len(report.Failures))
	return report, nil
}

func (p *Pipeline) runTransform(ctx context.Context, extracted domain.ExtractReport) ([]domain.StagedArtifact, error) {
	stageStart := time.Now()
	staged, err := p.transformer.TransformAll(ctx, extracted)
	p.metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return nil, fmt.Errorf("transform: %w", err)
	}

	rows := 0
	for _, s := range staged {
		rows += s.Rows
	}
	p.metrics.RowsTransformed.Add(float64(rows))
	p.logger.Info("transform complete", "tables", len(staged), "rows", rows)
	return staged, nil
}

func (p *Pipeline) runLoad(ctx context.Context, staged []domain.StagedArtifact) error {
	stageStart := time.Now()
	reports, err := p.loader.LoadAll(ctx, staged)
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(stageStart).Seconds())

	for _, r := range reports {
		p.metrics.RowsLoaded.Add(float64(r.Loaded))
		p.metrics.RowsSkipped.Add(float64(r.Skipped))
		p.metrics.LoadBatchFailures.Add(float64(len(r.FailedBatches)))
		for _, b := range r.FailedBatches {
			p.logger.Warn("batch skipped after retry",
				"table", r.Table, "rows_start", b.Start, "rows_end", b.End, "error", b.Err)
		}
		p.logger.Info("load complete",
			"table", r.Table, "loaded", r.Loaded, "skipped", r.Skipped)
	}
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	return nil
}

func (p *Pipeline) runAnalyze(ctx context.Context, staged []domain.StagedArtifact) error {
	stageStart := time.Now()
	summary, err := p.analyzer.Analyze(ctx, staged)
	p.metrics.StageDuration.WithLabelValues("analyze").Observe(time.Since(stageStart).Seconds())
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}

	p.metrics.ChartsRendered.Add(float64(len(summary.Charts)))
	p.metrics.ChartFailures.Add(float64(len(summary.ChartFailures)))
	for _, f := range summary.ChartFailures {
		p.logger.Warn("chart failed to render", "chart", f)
	}
	p.logger.Info("analyze complete",
		"metrics", len(summary.Metrics), "charts", len(summary.Charts))
	return nil
}
