// Package main provides the API router setup.
package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spherical-ai/ev-assistant/cmd/ev-assistant-api/handlers"
	"github.com/spherical-ai/ev-assistant/cmd/ev-assistant-api/middleware"
	"github.com/spherical-ai/ev-assistant/internal/bootstrap"
)

// NewRouter creates the main API router with all routes configured.
func NewRouter(app *bootstrap.App) http.Handler {
	r := chi.NewRouter()
	logger := app.Logger.WithComponent("api")

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(app.Config.Server.AllowedOrigins))
	r.Use(chimiddleware.Timeout(app.Config.Server.RequestTimeout))

	chatHandler := handlers.NewChatHandler(logger, app.Engine, app.Sessions)
	insightsHandler := handlers.NewInsightsHandler(logger, app.Summary)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"ev-assistant"}`))
	})
	r.Get("/ready", insightsHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", chatHandler.Chat)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", chatHandler.CreateSession)
			r.Get("/{sessionId}/transcript", chatHandler.Transcript)
			r.Delete("/{sessionId}", chatHandler.DeleteSession)
		})

		r.Get("/dashboard", insightsHandler.Dashboard)
	})

	return r
}
