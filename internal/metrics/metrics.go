// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics exposes gateway counters and gauges in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every gateway collector, registered on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	latency           prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	activeConnections prometheus.Gauge
	forwards          *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	serviceHealth     *prometheus.GaugeVec
	buildInfo         *prometheus.GaugeVec
}

// New creates the collectors on a fresh registry, along with the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_requests_total",
			Help: "Total classified requests by target service and intent category",
		}, []string{"service", "intent"}),
		latency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "router_latency_seconds",
			Help:    "Intent classification latency",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "router_cache_hits_total",
			Help: "Classification results served from the result cache",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "router_cache_misses_total",
			Help: "Classifications computed because the result cache had no entry",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "router_active_connections",
			Help: "HTTP requests currently being served",
		}),
		forwards: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "router_forward_total",
			Help: "Forwarded requests by target service and outcome",
		}, []string{"service", "outcome"}),
		breakerState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "router_breaker_state",
			Help: "Circuit breaker state per service: 0 closed, 1 half-open, 2 open",
		}, []string{"service"}),
		serviceHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "router_service_healthy",
			Help: "1 when the service's last health probe succeeded",
		}, []string{"service"}),
		buildInfo: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "router_build_info",
			Help: "Always 1; labelled with the running build",
		}, []string{"version", "commit"}),
	}
}

// Registry returns the registry holding the gateway collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveClassification implements intent.Recorder.
func (m *Metrics) ObserveClassification(service, category string, elapsed time.Duration) {
	m.requests.WithLabelValues(service, category).Inc()
	m.latency.Observe(elapsed.Seconds())
}

// CacheHit implements intent.Recorder.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss implements intent.Recorder.
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// ConnectionOpened increments the active connection gauge.
func (m *Metrics) ConnectionOpened() { m.activeConnections.Inc() }

// ConnectionClosed decrements the active connection gauge.
func (m *Metrics) ConnectionClosed() { m.activeConnections.Dec() }

// ObserveForward counts one forward attempt. outcome is "ok", "breaker_open",
// "downstream_failure" or "service_not_found".
func (m *Metrics) ObserveForward(service, outcome string) {
	m.forwards.WithLabelValues(service, outcome).Inc()
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(service, state string) {
	value := 0.0
	switch state {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(service).Set(value)
}

// SetServiceHealth implements registry.HealthRecorder.
func (m *Metrics) SetServiceHealth(service string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1
	}
	m.serviceHealth.WithLabelValues(service).Set(value)
}

// SetBuildInfo publishes the running build's version and commit.
func (m *Metrics) SetBuildInfo(version, commit string) {
	m.buildInfo.Reset()
	m.buildInfo.WithLabelValues(version, commit).Set(1)
}
