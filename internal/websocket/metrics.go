package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "laundry_websocket_active_connections",
		Help: "Open websocket connections.",
	})
	totalConnections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_websocket_connections_total",
		Help: "Websocket connections accepted since start.",
	})
	messagesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "laundry_websocket_messages_sent_total",
		Help: "Messages queued to clients, by type.",
	}, []string{"type"})
	messagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "laundry_websocket_messages_dropped_total",
		Help: "Messages dropped because a client buffer was full.",
	})
)
