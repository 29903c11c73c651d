// Package metrics provides Prometheus instrumentation for the messaging relay
// and history service. It exposes gauges for connection and topic counts,
// counters for event throughput and dropped deliveries, and histograms for
// history page latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// TopicsTotal tracks the current number of non-empty topics.
	TopicsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_topics_total",
		Help: "Current number of non-empty relay topics",
	})

	// EventsTotal counts inbound relay events, labeled by event type.
	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_total",
		Help: "Total number of inbound relay events processed",
	}, []string{"type"})

	// EventsDropped counts inbound events discarded by validation, labeled by
	// reason: "parse_error", "invalid", "rate_limited".
	EventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_events_dropped_total",
		Help: "Total number of inbound events dropped before fan-out",
	}, []string{"reason"})

	// EventsDelivered counts successful fan-out deliveries.
	EventsDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Total number of events delivered to member connections",
	})

	// DeliveriesDropped counts fan-out deliveries dropped because a member's
	// outbound queue was full or closed.
	DeliveriesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_deliveries_dropped_total",
		Help: "Total number of fan-out deliveries dropped (queue full or closed)",
	})

	// HistoryPageDuration records the latency of history page requests.
	HistoryPageDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "history_page_duration_seconds",
		Help:    "Latency of conversation history page requests",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// HistoryDuplicates counts messages found in both stores and collapsed by
	// the merge step.
	HistoryDuplicates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "history_merged_duplicates_total",
		Help: "Messages present in both stores and deduplicated by id",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		TopicsTotal,
		EventsTotal,
		EventsDropped,
		EventsDelivered,
		DeliveriesDropped,
		HistoryPageDuration,
		HistoryDuplicates,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
