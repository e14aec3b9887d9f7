// Package metrics holds the process-wide prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shambu"

// Result label values.
const (
	ResultOK        = "ok"
	ResultError     = "error"
	ResultDiscarded = "discarded"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "fetches_total",
			Help:      "Collection fetches by view and result.",
		},
		[]string{"view", "result"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "fetch_duration_seconds",
			Help:      "Collection fetch latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"view"},
	)

	WritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "view",
			Name:      "writes_total",
			Help:      "Mutations by operation and result.",
		},
		[]string{"operation", "result"},
	)

	RealtimeEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_total",
			Help:      "Change events received from the backend.",
		},
		[]string{"table", "op"},
	)

	RealtimeDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_coalesced_total",
			Help:      "Events not queued because the subscriber already had one pending.",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	MCPToolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mcp",
			Name:      "tool_calls_total",
			Help:      "MCP tool calls by tool and result.",
		},
		[]string{"tool", "result"},
	)

	RealtimeReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "reconnects_total",
			Help:      "Change source reconnect attempts.",
		},
	)
)

// ObserveFetch records one fetch outcome for view.
func ObserveFetch(view string, started time.Time, err error) {
	FetchDuration.WithLabelValues(view).Observe(time.Since(started).Seconds())
	FetchesTotal.WithLabelValues(view, resultLabel(err)).Inc()
}

// ObserveWrite records one mutation outcome.
func ObserveWrite(operation string, err error) {
	WritesTotal.WithLabelValues(operation, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
