package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PublishOutcomes counts publish attempts by terminal outcome code.
	PublishOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_publish_outcomes_total",
		Help: "Total publish attempts by outcome",
	}, []string{"outcome"})

	// BlobCompensations counts compensating blob deletes by result.
	BlobCompensations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_blob_compensations_total",
		Help: "Total compensating blob deletes after failed post creation",
	}, []string{"result"})

	// SearchQueries counts search executions by result state.
	SearchQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_search_queries_total",
		Help: "Total search queries by result state",
	}, []string{"state"})

	// PresenceViewers is the gauge of live viewers per room.
	PresenceViewers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_presence_viewers",
		Help: "Number of live viewers per room",
	}, []string{"room"})

	// FeedRoomConnections is the gauge of feed connections per post room.
	FeedRoomConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "inkwell_feed_room_connections",
		Help: "Number of WebSocket feed connections per room",
	}, []string{"room"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inkwell_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inkwell_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
