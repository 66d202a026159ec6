// Package bootstrap wires configuration, dataset, price model, cache and
// engine into one App shared by every transport.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spherical-ai/ev-assistant/internal/assistant"
	"github.com/spherical-ai/ev-assistant/internal/cache"
	"github.com/spherical-ai/ev-assistant/internal/config"
	"github.com/spherical-ai/ev-assistant/internal/dataset"
	"github.com/spherical-ai/ev-assistant/internal/insights"
	"github.com/spherical-ai/ev-assistant/internal/observability"
	"github.com/spherical-ai/ev-assistant/internal/pricing"
	"github.com/spherical-ai/ev-assistant/internal/session"
)

// App holds the immutable dataset and model plus the shared services built
// from them.
type App struct {
	Config   *config.Config
	Logger   *observability.Logger
	Table    *dataset.Table
	Model    *pricing.Adapter
	Engine   *assistant.Engine
	Sessions *session.Store
	Cache    cache.Client

	closers []func() error
}

// NewLogger creates the process logger from configuration.
func NewLogger(cfg *config.Config, service string) *observability.Logger {
	name := cfg.Observability.ServiceName
	if service != "" {
		name = service
	}
	return observability.NewLogger(observability.LogConfig{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		Output:      os.Stderr,
		ServiceName: name,
	})
}

// Build loads the dataset and price model once and assembles the engine.
// A dataset failure is fatal and returned as an error wrapping
// dataset.ErrDataUnavailable. A missing model only disables price estimates.
func Build(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	app := &App{Config: cfg, Logger: logger, Sessions: session.NewStore()}

	src, closeSrc, err := dataset.SourceFromConfig(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, closeSrc)

	table, err := dataset.NewLoader(src, logger).Load(ctx)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Table = table

	app.Model = pricing.Load(cfg.Model.Path, logger)

	client, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Cache.Driver).Msg("Reply cache disabled")
		client = cache.NopClient{}
	}
	app.Cache = client
	app.closers = append(app.closers, client.Close)

	engine, err := assistant.New(assistant.Options{
		Table:             table,
		Pricer:            app.Model,
		Cache:             client,
		CacheTTL:          cfg.Cache.TTL,
		Logger:            logger,
		FuzzyCutoff:       cfg.Engine.FuzzyCutoff,
		ListLimit:         cfg.Engine.ListLimit,
		PriceColumn:       dataset.NormalizeColumn(cfg.Engine.PriceColumn),
		IdentifierColumns: cfg.Engine.IdentifierColumns,
	})
	if err != nil {
		_ = app.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	app.Engine = engine

	if err := engine.RetireStaleReplies(ctx); err != nil {
		logger.Warn().Err(err).Msg("Could not retire stale cached replies")
	}

	logger.Info().
		Int("rows", table.Len()).
		Str("model", app.Model.Status().String()).
		Str("cache", cfg.Cache.Driver).
		Msg("EV assistant ready")

	return app, nil
}

// Summary returns the dashboard figures for the loaded dataset.
func (a *App) Summary(includePoints bool) insights.Summary {
	opts := insights.DefaultOptions()
	opts.IncludePoints = includePoints
	s := insights.Compute(a.Table, opts)
	s.ModelAvailable = a.Model.Available()
	return s
}

// Close releases the cache and any database handle.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
