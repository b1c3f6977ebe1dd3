package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibefeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts cache-aside lookups by key family and outcome.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibefeed_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result (hit, miss, error)",
	}, []string{"family", "result"})

	// WebSocketConnections is the gauge of open WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vibefeed_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// MessagesSent counts direct messages persisted.
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibefeed_messages_sent_total",
		Help: "Total number of direct messages sent",
	})

	// WebSocketDrops counts frames dropped because a client send buffer was full.
	WebSocketDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibefeed_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket frames dropped due to backpressure",
	})

	// UploadsStored counts stored media files by backend and purpose.
	UploadsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibefeed_uploads_stored_total",
		Help: "Stored uploads by storage backend and purpose",
	}, []string{"backend", "purpose"})
)
