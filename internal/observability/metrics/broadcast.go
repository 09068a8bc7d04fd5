package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// BroadcastMetrics contains all Prometheus metrics related to WebSocket fan-out.
type BroadcastMetrics struct {
	ActiveConnections prometheus.Gauge
	MessagesDelivered *prometheus.CounterVec
	DroppedObservers  prometheus.Counter
	registry          *prometheus.Registry
}

// NewBroadcastMetrics creates a new instance of BroadcastMetrics.
func NewBroadcastMetrics(registry *prometheus.Registry) (*BroadcastMetrics, error) {
	m := &BroadcastMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize broadcast metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register broadcast metrics: %w", err)
	}
	return m, nil
}

func (m *BroadcastMetrics) initMetrics() error {
	m.ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_active_connections",
		Help: "Current number of connected WebSocket observers",
	})

	m.MessagesDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_messages_delivered_total",
		Help: "Total number of messages delivered to observers by type",
	}, []string{"type"})

	m.DroppedObservers = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_dropped_observers_total",
		Help: "Total number of observers dropped after failed writes",
	})

	return nil
}

// SetActiveConnections updates the observer connection gauge.
func (m *BroadcastMetrics) SetActiveConnections(count int) {
	m.ActiveConnections.Set(float64(count))
}

// AddDeliveries records successful deliveries of one message type.
func (m *BroadcastMetrics) AddDeliveries(messageType string, count int) {
	m.MessagesDelivered.WithLabelValues(messageType).Add(float64(count))
}

// IncrementDroppedObservers increments the count of dropped observers.
func (m *BroadcastMetrics) IncrementDroppedObservers() {
	m.DroppedObservers.Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *BroadcastMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.ActiveConnections
	m.MessagesDelivered.Collect(ch)
	ch <- m.DroppedObservers
}

// Describe implements the prometheus.Collector interface.
func (m *BroadcastMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.ActiveConnections.Desc()
	m.MessagesDelivered.Describe(ch)
	ch <- m.DroppedObservers.Desc()
}
