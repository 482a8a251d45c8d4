// Package app wires configuration, logging, metrics and one built-in
// pipeline into a single process run.
package app

import (
	"context"
	"errors"
	"log/slog"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	csvadapter "github.com/alvdef/infoViz-8/internal/adapter/csv"
	"github.com/alvdef/infoViz-8/internal/config"
	"github.com/alvdef/infoViz-8/internal/domain"
	"github.com/alvdef/infoViz-8/internal/observability"
	"github.com/alvdef/infoViz-8/internal/pipeline"
)

// Run executes the named pipeline once and returns the process exit code.
func Run(ctx context.Context, name string) int {
	params, err := pipeline.Defaults(name)
	if err != nil {
		slog.Error("unknown pipeline", "error", err)
		return 1
	}

	cfg, err := config.Load(defaultsFrom(params))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	def, err := pipeline.Builtin(name, paramsFrom(cfg))
	if err != nil {
		logger.Error("invalid pipeline definition", "pipeline", name, "error", err)
		return 1
	}

	p := pipeline.New(def,
		csvadapter.NewLoader(logger),
		csvadapter.NewWriter(cfg.OutputDir),
		logger,
		metrics,
	)
	report, runErr := p.Run(ctx, cfg.InputPath)

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("metrics export failed", "error", err)
		}
	}

	if runErr != nil {
		if errors.Is(runErr, domain.ErrSourceNotFound) {
			logger.Error("raw input not found; place the source CSV at INPUT_PATH",
				"pipeline", name, "path", cfg.InputPath)
			return 1
		}
		logger.Error("pipeline failed", "pipeline", name, "error", runErr)
		return 1
	}

	logSummary(logger, report)
	return 0
}

func logSummary(logger *slog.Logger, r pipeline.Report) {
	attrs := []any{
		"pipeline", r.Pipeline,
		"rows_kept", r.Kept,
		"states", r.Summary.States,
	}
	if r.Summary.From != "" {
		attrs = append(attrs, "from", r.Summary.From, "to", r.Summary.To)
	}
	if len(r.Summary.Conditions) > 0 {
		attrs = append(attrs, "conditions", r.Summary.Conditions)
	}
	for _, o := range r.Outputs {
		attrs = append(attrs, o.File, o.Rows)
	}
	logger.Info("run summary", attrs...)
}

func defaultsFrom(p pipeline.Params) config.Defaults {
	return config.Defaults{
		SampleSize:            p.SampleSize,
		Seed:                  p.Seed,
		FilterSource:          p.FilterSource,
		SourceTag:             p.SourceTag,
		HighSeverityThreshold: p.HighSeverityThreshold,
		Since:                 p.Since,
		ClassifierCacheSize:   p.ClassifierCacheSize,
	}
}

func paramsFrom(cfg *config.Config) pipeline.Params {
	return pipeline.Params{
		SourceTag:             cfg.SourceTag,
		FilterSource:          cfg.FilterSource,
		SampleSize:            cfg.SampleSize,
		Seed:                  cfg.Seed,
		HighSeverityThreshold: cfg.HighSeverityThreshold,
		Since:                 cfg.Since,
		ClassifierCacheSize:   cfg.ClassifierCacheSize,
	}
}
