// Package metrics provides Prometheus instrumentation for the DM server. It
// exposes gauges for connection and presence counts, counters for message
// outcomes, and a histogram for delivery latency.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsTotal tracks the current number of active WebSocket connections.
	ConnectionsTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_connections_total",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineUsers tracks the number of users with a live presence entry.
	OnlineUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dm_online_users",
		Help: "Current number of users bound in the presence registry",
	})

	// MessagesTotal counts send outcomes, labeled by outcome:
	// "persisted", "delivered", "dropped", "persist_error", "enrich_error".
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dm_messages_total",
		Help: "Total number of message send outcomes",
	}, []string{"outcome"})

	// DeliveryLatency records end-to-end send handling latency in seconds,
	// from validation through fan-out.
	DeliveryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dm_delivery_latency_seconds",
		Help:    "Send handling latency from validation through fan-out",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		OnlineUsers,
		MessagesTotal,
		DeliveryLatency,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
