// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package endpoint

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts rendered counter documents. A nil *Metrics records
// nothing.
type Metrics struct {
	renders  *prometheus.CounterVec
	duration *prometheus.HistogramVec
	waits    prometheus.Histogram
}

// NewMetrics creates the endpoint metrics and registers them.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_server",
			Subsystem: "render",
			Name:      "documents_total",
			Help:      "Counter documents rendered, by route and format.",
		}, []string{"route", "format"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sensor_server",
			Subsystem: "render",
			Name:      "duration_seconds",
			Help:      "Time spent rendering one counter document.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		}, []string{"format"}),
		waits: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "sensor_server",
			Subsystem: "history",
			Name:      "wait_seconds",
			Help:      "Time requests spent waiting for enough samples or a fresh dispatch.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	registerer.MustRegister(metrics.renders, metrics.duration, metrics.waits)
	return metrics
}

func (m *Metrics) rendered(route, format string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(route, format).Inc()
	m.duration.WithLabelValues(format).Observe(elapsed.Seconds())
}

func (m *Metrics) waited(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.waits.Observe(elapsed.Seconds())
}
