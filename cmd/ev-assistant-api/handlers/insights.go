package handlers

import (
	"net/http"
	"strconv"

	"github.com/spherical-ai/ev-assistant/internal/insights"
	"github.com/spherical-ai/ev-assistant/internal/observability"
)

// SummaryFunc computes the dashboard summary.
type SummaryFunc func(includePoints bool) insights.Summary

// InsightsHandler serves dataset summaries and readiness.
type InsightsHandler struct {
	logger  *observability.Logger
	summary SummaryFunc
}

// NewInsightsHandler creates a new insights handler.
func NewInsightsHandler(logger *observability.Logger, summary SummaryFunc) *InsightsHandler {
	return &InsightsHandler{
		logger:  logger.WithComponent("insights_handler"),
		summary: summary,
	}
}

// ReadyDTO reports whether the service can answer.
type ReadyDTO struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	Rows   int    `json:"rows"`
}

// Dashboard handles GET /dashboard. ?points=true adds the scatter points.
func (h *InsightsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	includePoints := false
	if raw := r.URL.Query().Get("points"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid points parameter", err.Error())
			return
		}
		includePoints = v
	}

	writeJSON(w, h.logger, http.StatusOK, h.summary(includePoints))
}

// Ready handles GET /ready.
func (h *InsightsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	s := h.summary(false)

	model := "unavailable"
	if s.ModelAvailable {
		model = "ready"
	}

	writeJSON(w, h.logger, http.StatusOK, ReadyDTO{
		Status: "ready",
		Model:  model,
		Rows:   s.TotalModels,
	})
}
