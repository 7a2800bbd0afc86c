// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	log "github.com/sirupsen/logrus"
)

// SubscribeLogger logs every bus event. Failures and state transitions are logged
// at info level, routing decisions at debug level.
func SubscribeLogger(bus *EventBus) []*Subscription {
	subs := make([]*Subscription, 0, len(AllEvents))
	for _, event := range AllEvents {
		subs = append(subs, bus.Subscribe(event, logEvent))
	}
	return subs
}

func logEvent(ev *EventContext) {
	entry := log.WithField("event", string(ev.Event))
	if ev.Service != "" {
		entry = entry.WithField("service", ev.Service)
	}
	for k, v := range ev.Data {
		entry = entry.WithField(k, v)
	}

	switch ev.Event {
	case EventRoutingDecision, EventHealthCycleCompleted:
		entry.Debug("gateway event")
	case EventForwardFailed:
		entry.Warnf("gateway event: %s", ev.ErrorMessage)
	default:
		entry.Info("gateway event")
	}
}
