// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2}

// Metrics counts connections and requests handled by a Server. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	connections *prometheus.CounterVec
	active      prometheus.Gauge
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics creates the server collectors and registers them with
// registerer. Registration fails if the collectors are already
// registered there, which is a programming error.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_server",
			Subsystem: "http",
			Name:      "connections_total",
			Help:      "Accepted connections by transport and outcome of the first byte sniff.",
		}, []string{"transport"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sensor_server",
			Subsystem: "http",
			Name:      "active_connections",
			Help:      "Connections currently held by a worker.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_server",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Responses written, by request method and status code.",
		}, []string{"method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sensor_server",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Time from a parsed request to its written response.",
			Buckets:   durationBuckets,
		}, []string{"method"}),
	}
	registerer.MustRegister(metrics.connections, metrics.active, metrics.requests, metrics.duration)
	return metrics
}

func (m *Metrics) connectionAccepted(transport string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(transport).Inc()
}

func (m *Metrics) connectionOpened() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) connectionClosed() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) requestServed(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method).Observe(duration.Seconds())
}
