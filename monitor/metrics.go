// Package monitor exposes Prometheus metrics for the orchestration layer.
package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orchestra"

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
		},
		[]string{"endpoint"},
	)

	ToolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and outcome",
		},
		[]string{"tool", "outcome"},
	)

	ToolDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_duration_seconds",
			Help:      "Tool execution latency in seconds",
		},
		[]string{"tool"},
	)

	CompletionRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_rounds_total",
			Help:      "Completion calls by round and outcome",
		},
		[]string{"round", "outcome"},
	)

	RouteDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "route_decisions_total",
			Help:      "Which routing attempt produced the answer, by intent",
		},
		[]string{"intent", "attempt"},
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Swallowed conversation store failures",
		},
		[]string{"op"},
	)
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"

	// UnknownTool labels calls to names that are not registered.
	UnknownTool = "unknown"
)

func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

func ObserveTool(tool string, failed bool, elapsed time.Duration) {
	outcome := OutcomeOK
	if failed {
		outcome = OutcomeError
	}
	ToolCalls.WithLabelValues(tool, outcome).Inc()
	ToolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func ObserveRequest(endpoint string, status int, elapsed time.Duration) {
	RequestCount.WithLabelValues(endpoint, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// Handler serves the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
