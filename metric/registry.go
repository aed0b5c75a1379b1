package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/c360/flowpipe/errors"
)

// MetricsRegistrar defines the interface for registering component-specific metrics
type MetricsRegistrar interface {
	RegisterCounter(componentName, metricName string, counter prometheus.Counter) error
	RegisterGauge(componentName, metricName string, gauge prometheus.Gauge) error
	RegisterHistogram(componentName, metricName string, histogram prometheus.Histogram) error
	RegisterCounterVec(componentName, metricName string, counterVec *prometheus.CounterVec) error
	RegisterGaugeVec(componentName, metricName string, gaugeVec *prometheus.GaugeVec) error
	RegisterHistogramVec(componentName, metricName string, histogramVec *prometheus.HistogramVec) error
	Unregister(componentName, metricName string) bool
}

// MetricsRegistry manages the registration and lifecycle of metrics
type MetricsRegistry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
	registeredMetrics  map[string]prometheus.Collector
	mu                 sync.RWMutex
}

// NewMetricsRegistry creates a new metrics registry with core runtime metrics
func NewMetricsRegistry() *MetricsRegistry {
	prometheusRegistry := prometheus.NewRegistry()

	registry := &MetricsRegistry{
		prometheusRegistry: prometheusRegistry,
		registeredMetrics:  make(map[string]prometheus.Collector),
	}

	registry.Metrics = NewMetrics()
	registry.registerCoreMetrics()

	// Go runtime metrics
	registry.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return registry
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *MetricsRegistry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// CoreMetrics returns the core runtime metrics
func (r *MetricsRegistry) CoreMetrics() *Metrics {
	return r.Metrics
}

// register adds a collector under componentName.metricName with duplicate detection.
func (r *MetricsRegistry) register(componentName, metricName, operation string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)

	if _, exists := r.registeredMetrics[key]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("metric %s already registered for component %s", metricName, componentName),
			"MetricsRegistry", operation, "duplicate metric registration")
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if stderrors.As(err, &alreadyRegErr) {
			return errors.WrapInvalid(err, "MetricsRegistry", operation,
				fmt.Sprintf("prometheus conflict for metric %s", metricName))
		}
		return errors.WrapFatal(err, "MetricsRegistry", operation,
			"failed to register collector with prometheus")
	}

	r.registeredMetrics[key] = collector
	return nil
}

// RegisterCounter registers a counter metric for a component
func (r *MetricsRegistry) RegisterCounter(componentName, metricName string, counter prometheus.Counter) error {
	return r.register(componentName, metricName, "RegisterCounter", counter)
}

// RegisterGauge registers a gauge metric for a component
func (r *MetricsRegistry) RegisterGauge(componentName, metricName string, gauge prometheus.Gauge) error {
	return r.register(componentName, metricName, "RegisterGauge", gauge)
}

// RegisterHistogram registers a histogram metric for a component
func (r *MetricsRegistry) RegisterHistogram(componentName, metricName string, histogram prometheus.Histogram) error {
	return r.register(componentName, metricName, "RegisterHistogram", histogram)
}

// RegisterCounterVec registers a counter vector metric for a component
func (r *MetricsRegistry) RegisterCounterVec(
	componentName, metricName string, counterVec *prometheus.CounterVec) error {
	return r.register(componentName, metricName, "RegisterCounterVec", counterVec)
}

// RegisterGaugeVec registers a gauge vector metric for a component
func (r *MetricsRegistry) RegisterGaugeVec(componentName, metricName string, gaugeVec *prometheus.GaugeVec) error {
	return r.register(componentName, metricName, "RegisterGaugeVec", gaugeVec)
}

// RegisterHistogramVec registers a histogram vector metric for a component
func (r *MetricsRegistry) RegisterHistogramVec(
	componentName, metricName string, histogramVec *prometheus.HistogramVec) error {
	return r.register(componentName, metricName, "RegisterHistogramVec", histogramVec)
}

// Unregister removes a metric from the registry
func (r *MetricsRegistry) Unregister(componentName, metricName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", componentName, metricName)

	collector, exists := r.registeredMetrics[key]
	if !exists {
		return false
	}

	success := r.prometheusRegistry.Unregister(collector)
	if success {
		delete(r.registeredMetrics, key)
	}

	return success
}

// registerCoreMetrics registers all core runtime metrics
func (r *MetricsRegistry) registerCoreMetrics() {
	r.prometheusRegistry.MustRegister(
		r.Metrics.StageStatus,
		r.Metrics.ItemsProcessed,
		r.Metrics.ItemsForwarded,
		r.Metrics.ProcessingDuration,
		r.Metrics.TransformErrors,
		r.Metrics.QueueDepth,
		r.Metrics.QueuePuts,
		r.Metrics.QueueGets,
	)
}
