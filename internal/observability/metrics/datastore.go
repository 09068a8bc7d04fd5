package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DatastoreMetrics contains all Prometheus metrics related to prediction log persistence.
type DatastoreMetrics struct {
	SavesTotal    prometheus.Counter
	SaveErrors    prometheus.Counter
	QueryDuration *prometheus.HistogramVec
	registry      *prometheus.Registry
}

// NewDatastoreMetrics creates a new instance of DatastoreMetrics.
func NewDatastoreMetrics(registry *prometheus.Registry) (*DatastoreMetrics, error) {
	m := &DatastoreMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize datastore metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register datastore metrics: %w", err)
	}
	return m, nil
}

func (m *DatastoreMetrics) initMetrics() error {
	m.SavesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datastore_saves_total",
		Help: "Total number of prediction events written to the log",
	})

	m.SaveErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "datastore_save_errors_total",
		Help: "Total number of failed prediction log writes",
	})

	m.QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datastore_query_duration_seconds",
		Help:    "Duration of datastore queries by operation",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"operation"})

	return nil
}

// IncrementSaves increments the count of persisted prediction events.
func (m *DatastoreMetrics) IncrementSaves() {
	m.SavesTotal.Inc()
}

// IncrementSaveErrors increments the count of failed writes.
func (m *DatastoreMetrics) IncrementSaveErrors() {
	m.SaveErrors.Inc()
}

// ObserveQueryDuration records the duration of one datastore operation.
func (m *DatastoreMetrics) ObserveQueryDuration(operation string, d time.Duration) {
	m.QueryDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// Collect implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.SavesTotal
	ch <- m.SaveErrors
	m.QueryDuration.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *DatastoreMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.SavesTotal.Desc()
	ch <- m.SaveErrors.Desc()
	m.QueryDuration.Describe(ch)
}
