// Package metrics exposes evaluation telemetry in the Prometheus format
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "calculadora"

// Collector records evaluation outcomes, salvage recoveries and latencies.
// It satisfies calculator.Observer.
type Collector struct {
	registry *prometheus.Registry

	evaluations *prometheus.CounterVec
	salvages    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewCollector registers the calculator metrics on registry. A nil registry gets a
// fresh one carrying the Go and process collectors.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Evaluations by outcome (success, validation, engine, encoding, internal, decode).",
		}, []string{"outcome"}),
		salvages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salvage_recoveries_total",
			Help:      "Validation reports recovered from engine failures, by extraction strategy.",
		}, []string{"strategy"}),
		// Rule evaluation is CPU-bound and usually sub-millisecond
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Evaluation latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"outcome"}),
	}

	registry.MustRegister(c.evaluations, c.salvages, c.duration)
	return c
}

// ObserveEvaluation records one finished evaluation
func (c *Collector) ObserveEvaluation(outcome string, duration time.Duration) {
	c.evaluations.WithLabelValues(outcome).Inc()
	c.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveSalvage records a validation report recovered by strategy
func (c *Collector) ObserveSalvage(strategy string) {
	c.salvages.WithLabelValues(strategy).Inc()
}

// Registry returns the registry the collector writes to
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
