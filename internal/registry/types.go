// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package registry

import (
	"strings"
	"time"
)

// HealthState is the outcome of the latest health probe for a service.
type HealthState string

const (
	StatusHealthy   HealthState = "healthy"
	StatusUnhealthy HealthState = "unhealthy"
)

// ServiceDescriptor describes one downstream service.
type ServiceDescriptor struct {
	// Name is the service id used as a routing target.
	Name string `yaml:"name" json:"name"`

	// URL is the service base URL, without a trailing slash.
	URL string `yaml:"url" json:"url"`

	// HealthPath is probed with GET every health cycle.
	HealthPath string `yaml:"health-path" json:"health"`

	// TimeoutMs bounds forwarded requests to this service.
	TimeoutMs int `yaml:"timeout-ms" json:"timeout"`
}

// Timeout returns TimeoutMs as a duration.
func (d ServiceDescriptor) Timeout() time.Duration {
	return time.Duration(d.TimeoutMs) * time.Millisecond
}

// Endpoint joins the base URL with path.
func (d ServiceDescriptor) Endpoint(path string) string {
	base := strings.TrimRight(d.URL, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// HealthStatus is the latest probe result for one service.
type HealthStatus struct {
	Status      HealthState `json:"status"`
	LastChecked time.Time   `json:"lastChecked"`
}

// DefaultServices returns the built-in catalog used when no services are configured.
func DefaultServices() []ServiceDescriptor {
	return []ServiceDescriptor{
		{Name: "user-authentication-service", URL: "https://user-authentication-service.run.app", HealthPath: "/health", TimeoutMs: 10000},
		{Name: "payment-processing-service", URL: "https://payment-processing-service.run.app", HealthPath: "/healthz", TimeoutMs: 30000},
		{Name: "email-notification-service", URL: "https://email-notification-service.run.app", HealthPath: "/health/live", TimeoutMs: 15000},
		{Name: "image-processing-service", URL: "https://image-processing-service.run.app", HealthPath: "/ping", TimeoutMs: 120000},
		{Name: "data-analytics-service", URL: "https://data-analytics-service.run.app", HealthPath: "/health/liveness", TimeoutMs: 30000},
		{Name: "pdf-generator-service", URL: "https://pdf-generator-service.run.app", HealthPath: "/healthcheck", TimeoutMs: 60000},
		{Name: "websocket-chat-service", URL: "https://websocket-chat-service.run.app", HealthPath: "/ws/health", TimeoutMs: 3600000},
		{Name: "machine-learning-inference-service", URL: "https://machine-learning-inference-service.run.app", HealthPath: "/v1/models/recommendation-model", TimeoutMs: 60000},
		{Name: "scheduled-batch-processor-service", URL: "https://scheduled-batch-processor-service.run.app", HealthPath: "/health", TimeoutMs: 1800000},
		{Name: "api-gateway-service", URL: "https://api-gateway-service.run.app", HealthPath: "/health/live", TimeoutMs: 30000},
	}
}
