// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package hooks

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_Subscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	var got *EventContext
	bus.Subscribe(EventRoutingDecision, func(ev *EventContext) { got = ev })

	bus.Publish(&EventContext{Event: EventRoutingDecision, Service: "payment-processing-service"})

	require.NotNil(t, got)
	assert.Equal(t, "payment-processing-service", got.Service)
}

func TestEventBus_OtherEventsNotDelivered(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	calls := 0
	bus.Subscribe(EventConfigReloaded, func(*EventContext) { calls++ })
	bus.Publish(&EventContext{Event: EventRoutingDecision})

	assert.Equal(t, 0, calls)
}

func TestEventBus_SubscribeWithFilter(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	var services []string
	bus.SubscribeWithFilter(EventBreakerStateChanged, func(ev *EventContext) {
		services = append(services, ev.Service)
	}, func(ev *EventContext) bool {
		return ev.Service == "email-notification-service"
	})

	bus.Publish(&EventContext{Event: EventBreakerStateChanged, Service: "pdf-generator-service"})
	bus.Publish(&EventContext{Event: EventBreakerStateChanged, Service: "email-notification-service"})

	assert.Equal(t, []string{"email-notification-service"}, services)
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	var first, second int
	sub := bus.Subscribe(EventForwardFailed, func(*EventContext) { first++ })
	bus.Subscribe(EventForwardFailed, func(*EventContext) { second++ })

	bus.Publish(&EventContext{Event: EventForwardFailed})
	sub.Unsubscribe()
	bus.Publish(&EventContext{Event: EventForwardFailed})

	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestEventBus_PanickingSubscriberIsolated(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	delivered := false
	bus.Subscribe(EventConfigReloaded, func(*EventContext) { panic("boom") })
	bus.Subscribe(EventConfigReloaded, func(*EventContext) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(&EventContext{Event: EventConfigReloaded})
	})
	assert.True(t, delivered)
}

func TestEventBus_PublishAsync(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	var wg sync.WaitGroup
	wg.Add(3)
	var count int32
	bus.Subscribe(EventRoutingDecision, func(*EventContext) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})

	for i := 0; i < 3; i++ {
		bus.PublishAsync(&EventContext{Event: EventRoutingDecision})
	}

	waitOrFail(t, &wg, time.Second)
	assert.Equal(t, int32(3), atomic.LoadInt32(&count))
}

func TestEventBus_AsyncPreservesOrder(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup
	wg.Add(3)
	bus.Subscribe(EventServiceHealthChanged, func(ev *EventContext) {
		mu.Lock()
		order = append(order, ev.Service)
		mu.Unlock()
		wg.Done()
	})

	for _, name := range []string{"a", "b", "c"} {
		bus.PublishAsync(&EventContext{Event: EventServiceHealthChanged, Service: name})
	}

	waitOrFail(t, &wg, time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestEventBus_QueueOverflowDrops(t *testing.T) {
	bus := NewEventBus(1)
	defer bus.Shutdown()

	release := make(chan struct{})
	bus.Subscribe(EventRoutingDecision, func(*EventContext) { <-release })

	assert.NotPanics(t, func() {
		for i := 0; i < 50; i++ {
			bus.PublishAsync(&EventContext{Event: EventRoutingDecision})
		}
	})
	close(release)
}

func TestEventBus_ShutdownStopsDelivery(t *testing.T) {
	bus := NewEventBus(10)

	var count int32
	bus.Subscribe(EventRoutingDecision, func(*EventContext) { atomic.AddInt32(&count, 1) })

	bus.Shutdown()
	bus.Shutdown()
	bus.PublishAsync(&EventContext{Event: EventRoutingDecision})

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestEventBus_ConcurrentAccess(t *testing.T) {
	bus := NewEventBus(100)
	defer bus.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := bus.Subscribe(EventRoutingDecision, func(*EventContext) {})
			bus.PublishAsync(&EventContext{Event: EventRoutingDecision})
			bus.Publish(&EventContext{Event: EventRoutingDecision})
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
}

func TestSubscribeLogger_CoversAllEvents(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Shutdown()

	subs := SubscribeLogger(bus)
	assert.Len(t, subs, len(AllEvents))

	assert.NotPanics(t, func() {
		for _, event := range AllEvents {
			bus.Publish(&EventContext{
				Event:   event,
				Service: "api-gateway-service",
				Data:    map[string]interface{}{"k": "v"},
			})
		}
	})
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("timed out waiting for async delivery")
	}
}
