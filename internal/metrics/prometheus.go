package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus holds the collectors of a Recorder.
type Prometheus struct {
	Calls    *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the operation collectors.
func NewPrometheusMetrics() Prometheus {
	return Prometheus{
		Calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "polargrad",
				Name:      "op_calls_total",
				Help:      "Forward and backward calls per operation.",
			}, []string{"op", "pass"}),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "polargrad",
				Name:      "op_duration_seconds",
				Help:      "Time spent in forward and backward calls per operation.",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
			}, []string{"op", "pass"}),
	}
}
