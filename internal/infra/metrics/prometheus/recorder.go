// Package prometheus exports service metrics through Prometheus collectors.
package prometheus

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder implements the service MetricsRecorder with a latency histogram,
// an outcome counter and a gauge tracking the workspace size.
type Recorder struct {
	opLatency *prometheus.HistogramVec
	results   *prometheus.CounterVec
	records   prometheus.Gauge
}

// NewRecorder builds the collectors and registers them with reg. A nil reg
// uses the default registerer.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idfcore_operation_latency_seconds",
			Help:    "Latency of workspace service operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "status"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idfcore_operations_total",
			Help: "Workspace service operations by outcome",
		}, []string{"op", "status"}),
		records: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "idfcore_workspace_records",
			Help: "Number of records in the workspace after the last mutation",
		}),
	}
	var err error
	if r.opLatency, err = register(reg, r.opLatency); err != nil {
		return nil, err
	}
	if r.results, err = register(reg, r.results); err != nil {
		return nil, err
	}
	if r.records, err = register(reg, r.records); err != nil {
		return nil, err
	}
	return r, nil
}

// register adopts an already registered collector of the same shape so two
// services in one process share the series.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Observe records one operation outcome.
func (r *Recorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "success"
	if !success {
		status = "error"
	}
	r.opLatency.WithLabelValues(operation, status).Observe(duration.Seconds())
	r.results.WithLabelValues(operation, status).Inc()
}

// SetRecords updates the workspace size gauge.
func (r *Recorder) SetRecords(n int) { r.records.Set(float64(n)) }
