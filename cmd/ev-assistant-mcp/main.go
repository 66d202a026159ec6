// Package main runs the EV assistant as an MCP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/spherical-ai/ev-assistant/internal/bootstrap"
	"github.com/spherical-ai/ev-assistant/internal/config"
	"github.com/spherical-ai/ev-assistant/internal/mcpserver"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to configuration file")
	transport := flag.String("transport", "", "Transport mode: stdio or http (overrides config)")
	port := flag.Int("port", 0, "HTTP port (only used with --transport http)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *transport != "" {
		cfg.MCP.Transport = *transport
	}
	if *port != 0 {
		cfg.MCP.Port = *port
	}

	// stdout carries the stdio protocol, so the logger writes to stderr.
	logger := bootstrap.NewLogger(cfg, "ev-assistant-mcp")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to start EV assistant")
	}
	defer app.Close()

	srv := mcpserver.New(app, version)

	switch cfg.MCP.Transport {
	case "stdio":
		logger.Info().Msg("EV assistant MCP server starting (stdio)")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
			logger.Error().Err(err).Msg("Server error")
		}
	case "http":
		addr := fmt.Sprintf(":%d", cfg.MCP.Port)
		handler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil)
		httpSrv := &http.Server{
			Addr:        addr,
			Handler:     handler,
			ReadTimeout: cfg.Server.ReadTimeout,
			IdleTimeout: cfg.Server.IdleTimeout,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
			defer done()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		logger.Info().Str("addr", addr).Msg("EV assistant MCP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP server error")
		}
	default:
		logger.Error().Msgf("Unknown transport %q (use stdio or http)", cfg.MCP.Transport)
	}
}
