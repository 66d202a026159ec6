// Package metrics holds the Prometheus collectors of the EV assistant.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_assistant_queries_total",
			Help: "Total number of answered messages by intent",
		},
		[]string{"intent"},
	)

	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_assistant_predictions_total",
			Help: "Total number of price predictions by outcome",
		},
		[]string{"outcome"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_assistant_cache_lookups_total",
			Help: "Reply cache lookups by result",
		},
		[]string{"result"},
	)

	ReplyDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ev_assistant_reply_duration_seconds",
			Help:    "Time spent producing a reply",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"intent"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ev_assistant_http_requests_total",
			Help: "HTTP requests by route and status code",
		},
		[]string{"route", "status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ev_assistant_active_sessions",
			Help: "Number of open chat sessions",
		},
	)
)

// Prediction outcomes.
const (
	OutcomeOK           = "ok"
	OutcomeUnavailable  = "unavailable"
	OutcomeFailed       = "failed"
	OutcomeMissingInput = "missing_input"
)

// ObserveReply records one answered message.
func ObserveReply(intent string, elapsed time.Duration) {
	QueriesTotal.WithLabelValues(intent).Inc()
	ReplyDuration.WithLabelValues(intent).Observe(elapsed.Seconds())
}

// ObserveCache records a cache hit or miss.
func ObserveCache(hit bool) {
	if hit {
		CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	CacheLookups.WithLabelValues("miss").Inc()
}
