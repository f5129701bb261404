// Package metrics exports operation call counts and durations to Prometheus.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pass labels.
const (
	Forward  = "forward"
	Backward = "backward"
)

// Recorder observes operation calls. A nil *Recorder ignores every call.
type Recorder struct {
	prometheus Prometheus
}

// NewRecorder creates a Recorder and registers its collectors on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{prometheus: NewPrometheusMetrics()}
	for _, c := range []prometheus.Collector{r.prometheus.Calls, r.prometheus.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return r, nil
}

// Observe records one call of op in the given pass.
func (r *Recorder) Observe(op, pass string, d time.Duration) {
	if r == nil {
		return
	}
	r.prometheus.Calls.WithLabelValues(op, pass).Inc()
	r.prometheus.Duration.WithLabelValues(op, pass).Observe(d.Seconds())
}

// Since records a call of op that started at start.
func (r *Recorder) Since(op, pass string, start time.Time) {
	r.Observe(op, pass, time.Since(start))
}
