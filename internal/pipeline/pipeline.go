// Package pipeline runs a Definition end to end: load, filter, derive,
// aggregate or sample, and export.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/filter"
	"github.com/alvdef/infoViz-8/internal/observability"
	"github.com/alvdef/infoViz-8/internal/sample"
)

// Source loads the projected raw table.
type Source interface {
	Load(path string, columns []domain.Column) (*domain.Table, error)
}

// Sink stages output tables and publishes them together.
type Sink interface {
	Stage(file string, t *domain.Table) (domain.OutputInfo, error)
	Commit() error
	Abort() error
	WriteManifest(file string, v any) error
}

type cacheStats interface {
	Stats() (hits, misses int)
}

// Pipeline executes one Definition against a Source and a Sink.
type Pipeline struct {
	def     Definition
	source  Source
	sink    Sink
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Pipeline with the given stages and observability.
func New(def Definition, source Source, sink Sink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		def:     def,
		source:  source,
		sink:    sink,
		logger:  logger.With("pipeline", def.Name),
		metrics: metrics,
	}
}

// ManifestFile is the manifest name written next to the outputs.
func (p *Pipeline) ManifestFile() string {
	return p.def.Name + ".manifest.json"
}

// Run processes input once. Outputs become visible only when every stage
// succeeds; on any error, staged files are discarded and nothing is written.
// Cancelling ctx between stages aborts the run the same way.
func (p *Pipeline) Run(ctx context.Context, input string) (Report, error) {
	clock := domain.Clock()
	start := clock.Now()
	report := Report{Pipeline: p.def.Name, Input: input, StartedAt: start}

	p.logger.Info("pipeline started", "input", input)

	err := p.run(ctx, input, &report)

	report.Duration = clock.Since(start)
	report.Seconds = report.Duration.Seconds()
	p.metrics.RunDuration.WithLabelValues(p.def.Name).Observe(report.Seconds)
	p.recordClassifierStats()

	if err != nil {
		p.metrics.RunSuccess.WithLabelValues(p.def.Name).Set(0)
		if aerr := p.sink.Abort(); aerr != nil {
			p.logger.Warn("discard staged outputs failed", "error", aerr)
		}
		return report, err
	}

	p.metrics.RunSuccess.WithLabelValues(p.def.Name).Set(1)
	p.metrics.LastSuccess.WithLabelValues(p.def.Name).Set(float64(clock.Now().Unix()))

	// Outputs are already committed; a missing manifest does not undo them.
	if merr := p.sink.WriteManifest(p.ManifestFile(), report); merr != nil {
		p.logger.Warn("write manifest failed", "error", merr)
	}

	p.logger.Info("pipeline finished",
		"rows_loaded", report.Loaded,
		"rows_kept", report.Kept,
		"outputs", len(report.Outputs),
		"duration", report.Duration,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, input string, report *Report) error {
	def := p.def

	table, err := p.source.Load(input, def.Columns)
	if err != nil {
		return fmt.Errorf("load source: %w", err)
	}
	report.Loaded = table.Len()
	report.Skipped = table.Skipped
	p.metrics.RowsLoaded.WithLabelValues(def.Name).Add(float64(report.Loaded))
	p.metrics.LinesSkipped.WithLabelValues(def.Name).Add(float64(report.Skipped))
	p.logger.Info("source loaded", "rows", report.Loaded, "skipped", report.Skipped)

	if err := ctx.Err(); err != nil {
		return err
	}

	rows := table.Rows
	if def.PreSample > 0 && len(rows) > def.PreSample {
		rows = sample.Take(rows, def.PreSample, def.Seed)
		report.PreSampled = len(rows)
		p.logger.Info("source pre-sampled", "rows", report.PreSampled, "seed", def.Seed)
	}

	recs, err := decode(table.Columns, rows, report)
	if err != nil {
		return err
	}

	recs, steps := def.RawFilters.Apply(recs)
	p.addSteps(report, steps)

	if err := ctx.Err(); err != nil {
		return err
	}

	recs, step, err := derive(recs, def, report)
	if err != nil {
		return err
	}
	p.addSteps(report, []filter.Step{step})

	recs, steps = def.DerivedFilters.Apply(recs)
	p.addSteps(report, steps)
	report.Kept = len(recs)

	for col, n := range report.Unparseable {
		p.metrics.Unparseable.WithLabelValues(def.Name, string(col)).Add(float64(n))
		p.logger.Warn("unparseable values dropped", "column", col, "count", n)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	for _, o := range def.Outputs {
		t, err := o.table(recs, def.Seed)
		if err != nil {
			return fmt.Errorf("build %s: %w", o.File, err)
		}
		info, err := p.sink.Stage(o.File, t)
		if err != nil {
			return err
		}
		report.Outputs = append(report.Outputs, info)
		p.logger.Debug("output staged", "file", info.File, "rows", info.Rows)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.sink.Commit(); err != nil {
		return err
	}

	for _, info := range report.Outputs {
		p.metrics.RowsExported.WithLabelValues(def.Name, info.File).Add(float64(info.Rows))
		p.logger.Info("output written", "file", info.File, "rows", info.Rows, "xxh3", info.Checksum)
	}

	report.Summary = summarize(def, recs)
	return nil
}

func (p *Pipeline) addSteps(report *Report, steps []filter.Step) {
	for _, s := range steps {
		report.Steps = append(report.Steps, s)
		p.metrics.RowsRemoved.WithLabelValues(p.def.Name, s.Name).Add(float64(s.Removed))
		p.logger.Debug("filter applied", "step", s.Name, "removed", s.Removed)
	}
}

func (p *Pipeline) recordClassifierStats() {
	cs, ok := p.def.Options.Classifier.(cacheStats)
	if !ok {
		return
	}
	hits, misses := cs.Stats()
	p.metrics.ClassifierCache.WithLabelValues(p.def.Name, "hit").Add(float64(hits))
	p.metrics.ClassifierCache.WithLabelValues(p.def.Name, "miss").Add(float64(misses))
}
