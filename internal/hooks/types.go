// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hooks distributes gateway events (routing decisions, breaker
// transitions, health changes, configuration reloads) to in-process subscribers.
package hooks

import (
	"time"
)

// HookEvent defines the type of event published on the bus.
type HookEvent string

const (
	EventRoutingDecision      HookEvent = "routing_decision"
	EventForwardFailed        HookEvent = "forward_failed"
	EventBreakerStateChanged  HookEvent = "breaker_state_changed"
	EventServiceHealthChanged HookEvent = "service_health_changed"
	EventHealthCycleCompleted HookEvent = "health_cycle_completed"
	EventConfigReloaded       HookEvent = "config_reloaded"
)

// AllEvents lists every event type, in publication-independent order.
var AllEvents = []HookEvent{
	EventRoutingDecision,
	EventForwardFailed,
	EventBreakerStateChanged,
	EventServiceHealthChanged,
	EventHealthCycleCompleted,
	EventConfigReloaded,
}

// EventContext is the payload delivered to subscribers.
type EventContext struct {
	Event        HookEvent              `json:"event"`
	Timestamp    time.Time              `json:"timestamp"`
	Data         map[string]interface{} `json:"data"`
	Service      string                 `json:"service,omitempty"`
	Category     string                 `json:"category,omitempty"`
	Error        error                  `json:"-"`
	ErrorMessage string                 `json:"error,omitempty"`
}
