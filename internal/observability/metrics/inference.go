// Package metrics provides custom Prometheus metrics for various components of the FoodLens application.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// InferenceMetrics contains all Prometheus metrics related to food detection inference.
type InferenceMetrics struct {
	PredictionsTotal  *prometheus.CounterVec
	DetectionsTotal   prometheus.Counter
	InferenceDuration *prometheus.HistogramVec
	ErrorsTotal       *prometheus.CounterVec
	registry          *prometheus.Registry
}

// NewInferenceMetrics creates a new instance of InferenceMetrics.
// It requires a Prometheus registry to register the metrics.
func NewInferenceMetrics(registry *prometheus.Registry) (*InferenceMetrics, error) {
	m := &InferenceMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize inference metrics: %w", err)
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register inference metrics: %w", err)
	}
	return m, nil
}

func (m *InferenceMetrics) initMetrics() error {
	m.PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inference_predictions_total",
		Help: "Total number of prediction requests by backend and status",
	}, []string{"backend", "status"})

	m.DetectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inference_detections_total",
		Help: "Total number of food items detected across all predictions",
	})

	m.InferenceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inference_duration_seconds",
		Help:    "Time taken for a single inference by backend",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"backend"})

	m.ErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inference_errors_total",
		Help: "Total number of inference errors by backend",
	}, []string{"backend"})

	return nil
}

// RecordPrediction records the outcome of one prediction request.
func (m *InferenceMetrics) RecordPrediction(backend, status string) {
	m.PredictionsTotal.WithLabelValues(backend, status).Inc()
}

// AddDetections adds the number of items found in one prediction.
func (m *InferenceMetrics) AddDetections(count int) {
	m.DetectionsTotal.Add(float64(count))
}

// ObserveInferenceDuration records the duration of a backend inference.
func (m *InferenceMetrics) ObserveInferenceDuration(backend string, d time.Duration) {
	m.InferenceDuration.WithLabelValues(backend).Observe(d.Seconds())
}

// IncrementErrors increments the inference error count for a backend.
func (m *InferenceMetrics) IncrementErrors(backend string) {
	m.ErrorsTotal.WithLabelValues(backend).Inc()
}

// Collect implements the prometheus.Collector interface.
func (m *InferenceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.PredictionsTotal.Collect(ch)
	ch <- m.DetectionsTotal
	m.InferenceDuration.Collect(ch)
	m.ErrorsTotal.Collect(ch)
}

// Describe implements the prometheus.Collector interface.
func (m *InferenceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.PredictionsTotal.Describe(ch)
	ch <- m.DetectionsTotal.Desc()
	m.InferenceDuration.Describe(ch)
	m.ErrorsTotal.Describe(ch)
}
