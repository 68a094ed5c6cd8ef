// Package metrics exposes Prometheus collectors for the engine and message delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aura-dev/aura/internal/flow"
	"github.com/aura-dev/aura/internal/messaging"
	"github.com/aura-dev/aura/internal/models"
)

const namespace = "aura"

var (
	_ flow.Observer      = (*Metrics)(nil)
	_ messaging.Observer = (*Metrics)(nil)
)

// Metrics holds the collectors and the registry they are registered with.
type Metrics struct {
	registry *prometheus.Registry

	inbound          *prometheus.CounterVec // by channel
	inboundDuplicate *prometheus.CounterVec // by channel
	outbound         *prometheus.CounterVec // by channel and status
	nodes            *prometheus.CounterVec // by node type
	failures         *prometheus.CounterVec // by reason
	handleDuration   prometheus.Histogram
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		inbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "inbound_total",
			Help:      "Inbound end-user messages by channel",
		}, []string{"channel"}),
		inboundDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "inbound_duplicates_total",
			Help:      "Inbound redeliveries dropped by channel",
		}, []string{"channel"}),
		outbound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "messages",
			Name:      "outbound_total",
			Help:      "Outbound send attempts by channel and status",
		}, []string{"channel", "status"}), // status: sent, failed
		nodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "nodes_executed_total",
			Help:      "Nodes executed by type",
		}, []string{"type"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "failures_total",
			Help:      "Aborted traversals by reason",
		}, []string{"reason"}),
		handleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "handle_duration_seconds",
			Help:      "Time spent handling one inbound message",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.inbound, m.inboundDuplicate, m.outbound, m.nodes, m.failures, m.handleDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) NodeExecuted(t models.NodeType) {
	m.nodes.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) TraversalFailed(reason string) {
	m.failures.WithLabelValues(reason).Inc()
}

func (m *Metrics) TraversalCompleted(seconds float64) {
	m.handleDuration.Observe(seconds)
}

func (m *Metrics) InboundReceived(ch models.Channel) {
	m.inbound.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) InboundDuplicate(ch models.Channel) {
	m.inboundDuplicate.WithLabelValues(string(ch)).Inc()
}

func (m *Metrics) OutboundSent(ch models.Channel, ok bool) {
	status := "sent"
	if !ok {
		status = "failed"
	}
	m.outbound.WithLabelValues(string(ch), status).Inc()
}
