package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	agentQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlscout_agent_queries_total",
			Help: "Total number of agent queries processed, by outcome.",
		},
		[]string{"outcome"},
	)
	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlscout_stage_duration_seconds",
			Help:    "Pipeline stage latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)
	candidatesGeneratedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_candidates_generated_total",
			Help: "Total number of SQL candidates that survived generation.",
		},
	)
	tableFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_table_fallback_total",
			Help: "Total number of table-selection fallbacks to the full catalog.",
		},
	)
	duplicateCandidatesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_duplicate_candidates_total",
			Help: "Total number of duplicate validation records removed.",
		},
	)
	selectorFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlscout_selector_fallback_total",
			Help: "Total number of final-selector fallbacks to the first candidate.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		agentQueriesTotal,
		stageDurationSeconds,
		candidatesGeneratedTotal,
		tableFallbackTotal,
		duplicateCandidatesTotal,
		selectorFallbackTotal,
	)
}

func ObserveAgentQuery(outcome string) {
	agentQueriesTotal.WithLabelValues(outcome).Inc()
}

func ObserveStageDuration(stage string, elapsed time.Duration) {
	stageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
}

func AddCandidatesGenerated(count int) {
	if count > 0 {
		candidatesGeneratedTotal.Add(float64(count))
	}
}

func IncrementTableFallback() {
	tableFallbackTotal.Inc()
}

func AddDuplicateCandidates(count int) {
	if count > 0 {
		duplicateCandidatesTotal.Add(float64(count))
	}
}

func IncrementSelectorFallback() {
	selectorFallbackTotal.Inc()
}
