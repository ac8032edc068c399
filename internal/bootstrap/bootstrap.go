// Package bootstrap wires the extraction stack from a Config.
package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/a3tai/docfields/internal/batch"
	"github.com/a3tai/docfields/internal/config"
	"github.com/a3tai/docfields/internal/extraction"
	"github.com/a3tai/docfields/internal/metrics"
	"github.com/a3tai/docfields/internal/templates"
	"github.com/a3tai/docfields/internal/textlayer"
)

// App holds the wired extraction stack shared by both binaries.
type App struct {
	Config   *config.Config
	Registry *templates.Registry
	Engine   *extraction.Engine
	Runner   *batch.Runner
	Metrics  *metrics.ExtractionMetrics
}

// New loads the templates and builds the engine, runner and metrics for cfg.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	reg, err := templates.Load(cfg.Templates...)
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	m := metrics.NewExtractionMetrics(cfg.ServerName)
	engine := extraction.NewEngine(reg,
		extraction.WithLogger(logger),
		extraction.WithObserver(m),
		extraction.WithPositionalConfig(extraction.PositionalConfig{
			MaxSpans: cfg.MaxSpans,
			RadiusX:  cfg.RadiusX,
			RadiusY:  cfg.RadiusY,
		}),
	)
	runner := batch.NewRunner(engine,
		batch.WithWorkers(cfg.Workers),
		batch.WithLogger(logger),
		batch.WithTracker(m),
		batch.WithLoader(batch.NewLoader(textlayer.NewReader(cfg.MaxFileSize))),
	)

	logger.Info("templates.loaded", "count", reg.Len(), "paths", cfg.Templates)

	return &App{
		Config:   cfg,
		Registry: reg,
		Engine:   engine,
		Runner:   runner,
		Metrics:  m,
	}, nil
}
