// Package metrics exposes Prometheus instrumentation for the engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Prometheus holds the engine collectors
type Prometheus struct {
	Ingestions *prometheus.CounterVec
	Searches   *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewPrometheusMetrics creates unregistered collectors
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Ingestions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spi",
				Name:      "ingestions_total",
				Help:      "Index upserts by namespace and outcome.",
			}, []string{"namespace", "outcome"}),
		Searches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spi",
				Name:      "searches_total",
				Help:      "Index searches by operation and namespace.",
			}, []string{"operation", "namespace"}),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spi",
				Name:      "operation_duration_seconds",
				Help:      "Latency of engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation", "outcome"}),
	}
}

// Register registers the collectors with r
func (p Prometheus) Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{p.Ingestions, p.Searches, p.Duration} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Observer is the process-wide metrics instance
var Observer = NewPrometheusMetrics()

func init() {
	prometheus.MustRegister(Observer.Ingestions, Observer.Searches, Observer.Duration)
}

// Ingested counts an upsert into namespace
func Ingested(namespace, outcome string) {
	Observer.Ingestions.WithLabelValues(namespace, outcome).Inc()
}

// Searched counts an index search made on behalf of operation
func Searched(operation, namespace string) {
	Observer.Searches.WithLabelValues(operation, namespace).Inc()
}

// Observe records the latency of operation since start
func Observe(operation, outcome string, start time.Time) {
	Observer.Duration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

// OutcomeOf classifies an operation error
func OutcomeOf(err error, notFound func(error) bool) string {
	switch {
	case err == nil:
		return OutcomeOK
	case notFound != nil && notFound(err):
		return OutcomeNotFound
	default:
		return OutcomeError
	}
}
