package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilo_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nilo_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilo_messages_published_total",
			Help: "Total messages published through the fanout bus",
		},
		[]string{"source"}, // "socket" or "rest"
	)

	HistoryReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nilo_history_replays_total",
			Help: "Total channel history replays sent to clients",
		},
	)

	FanoutDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nilo_fanout_dropped_total",
			Help: "Total live deliveries dropped due to full subscriber buffers",
		},
	)

	SocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nilo_socket_connections",
			Help: "Currently connected websocket sessions",
		},
	)

	// Rate limit metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nilo_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
