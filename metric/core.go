package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all runtime-level metrics (not transform-specific)
type Metrics struct {
	// Stage metrics
	StageStatus        *prometheus.GaugeVec
	ItemsProcessed     *prometheus.CounterVec
	ItemsForwarded     *prometheus.CounterVec
	ProcessingDuration *prometheus.HistogramVec
	TransformErrors    *prometheus.CounterVec

	// Queue metrics
	QueueDepth *prometheus.GaugeVec
	QueuePuts  *prometheus.CounterVec
	QueueGets  *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all runtime metrics
func NewMetrics() *Metrics {
	return &Metrics{
		StageStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowpipe",
				Subsystem: "stage",
				Name:      "status",
				Help:      "Stage status (0=idle, 1=running, 2=halted, 3=failed)",
			},
			[]string{"stage"},
		),

		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowpipe",
				Subsystem: "stage",
				Name:      "items_processed_total",
				Help:      "Total number of items passed through a stage transform",
			},
			[]string{"stage", "status"},
		),

		ItemsForwarded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowpipe",
				Subsystem: "stage",
				Name:      "items_forwarded_total",
				Help:      "Total number of item copies forwarded to outbound queues",
			},
			[]string{"stage"},
		),

		ProcessingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "flowpipe",
				Subsystem: "stage",
				Name:      "processing_duration_seconds",
				Help:      "Time spent inside a stage transform per item",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"stage"},
		),

		TransformErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowpipe",
				Subsystem: "stage",
				Name:      "transform_errors_total",
				Help:      "Total number of transform invocations that returned an error",
			},
			[]string{"stage"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "flowpipe",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Current number of items waiting in a queue",
			},
			[]string{"queue"},
		),

		QueuePuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowpipe",
				Subsystem: "queue",
				Name:      "puts_total",
				Help:      "Total number of items enqueued",
			},
			[]string{"queue"},
		),

		QueueGets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "flowpipe",
				Subsystem: "queue",
				Name:      "gets_total",
				Help:      "Total number of items dequeued",
			},
			[]string{"queue"},
		),
	}
}

// RecordProcessed records one transform invocation with its outcome and duration.
func (m *Metrics) RecordProcessed(stage, status string, duration time.Duration) {
	m.ItemsProcessed.WithLabelValues(stage, status).Inc()
	m.ProcessingDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordForwarded records item copies fanned out to outbound queues.
func (m *Metrics) RecordForwarded(stage string, count int) {
	if count > 0 {
		m.ItemsForwarded.WithLabelValues(stage).Add(float64(count))
	}
}

// RecordTransformError records a transform invocation that returned an error.
func (m *Metrics) RecordTransformError(stage string) {
	m.TransformErrors.WithLabelValues(stage).Inc()
}

// SetStageStatus records the lifecycle state of a stage.
func (m *Metrics) SetStageStatus(stage string, status StageStatus) {
	m.StageStatus.WithLabelValues(stage).Set(float64(status))
}

// StageStatus is the numeric encoding used by the stage status gauge
type StageStatus int

// Stage status gauge values
const (
	StageIdle StageStatus = iota
	StageRunning
	StageHalted
	StageFailed
)
