package node

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the node's Prometheus instruments, following the
// teacher's NewMetricsWithRegistry shape (metrics.go: a
// promauto.With(registry) factory populating one struct of named
// instruments) narrowed to the node's own concerns instead of the
// teacher's channel/broker/auth metrics.
type Metrics struct {
	ConnectedAgents   prometheus.Gauge
	MessagesReceived  prometheus.Counter
	MessagesAccepted  prometheus.Counter
	MessagesRejected  prometheus.Counter
	DeliveryAttempts  *prometheus.CounterVec
	DeliveryDuration  prometheus.Histogram
}

// NewMetrics registers the node's instruments against the default
// registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers the node's instruments against
// registry, or the default registry if nil, mirroring the teacher's own
// test-vs-production registry split.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		ConnectedAgents: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tap_node_connected_agents",
			Help: "The current number of agents registered on this node",
		}),
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "tap_node_messages_received_total",
			Help: "The total number of inbound messages received",
		}),
		MessagesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "tap_node_messages_accepted_total",
			Help: "The total number of inbound messages that passed validation",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tap_node_messages_rejected_total",
			Help: "The total number of inbound messages rejected by the processor chain",
		}),
		DeliveryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tap_node_delivery_attempts_total",
				Help: "The total number of outbound delivery attempts by outcome",
			},
			[]string{"outcome"},
		),
		DeliveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name: "tap_node_delivery_duration_seconds",
			Help: "Outbound delivery latency in seconds",
		}),
	}
}
