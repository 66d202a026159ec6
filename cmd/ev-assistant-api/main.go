// Package main provides the EV assistant API server entrypoint.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spherical-ai/ev-assistant/internal/bootstrap"
	"github.com/spherical-ai/ev-assistant/internal/config"
)

// sessionIdleTimeout bounds how long an untouched chat session is kept.
const sessionIdleTimeout = 2 * time.Hour

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := bootstrap.NewLogger(cfg, "ev-assistant-api")

	logger.Info().
		Str("host", cfg.Server.Host).
		Int("port", cfg.Server.Port).
		Str("dataset", cfg.Dataset.Source).
		Str("cache", cfg.Cache.Driver).
		Msg("Starting EV assistant API")

	app, err := bootstrap.Build(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load EV assistant")
	}
	defer app.Close()

	srv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      NewRouter(app),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go pruneSessions(pruneCtx, app)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error().Err(err).Msg("Server error")
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
}

func pruneSessions(ctx context.Context, app *bootstrap.App) {
	ticker := time.NewTicker(sessionIdleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := app.Sessions.PruneIdle(sessionIdleTimeout); n > 0 {
				app.Logger.Info().Int("removed", n).Msg("Pruned idle sessions")
			}
		}
	}
}
