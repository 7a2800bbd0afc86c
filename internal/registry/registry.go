// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package registry holds the static catalog of downstream services and their
// live health status, refreshed by a background probe loop.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"golang.org/x/sync/errgroup"
)

// HealthRecorder receives per-service health results.
type HealthRecorder interface {
	SetServiceHealth(service string, healthy bool)
}

// Options configures the health loop.
type Options struct {
	// Interval is the pause between the end of one cycle and the start of the next.
	Interval time.Duration

	// Timeout bounds each health probe.
	Timeout time.Duration

	// MaxConcurrent bounds the number of probes in flight.
	MaxConcurrent int

	Client   *http.Client
	Events   *hooks.EventBus
	Recorder HealthRecorder
}

// DefaultOptions returns the standard health loop settings.
func DefaultOptions() Options {
	return Options{
		Interval:      30 * time.Second,
		Timeout:       5 * time.Second,
		MaxConcurrent: 10,
	}
}

// Registry is the service catalog plus health map. The catalog is immutable after
// construction; the health map is replaced wholesale at the end of each cycle.
type Registry struct {
	services map[string]ServiceDescriptor
	names    []string
	opts     Options

	mu     sync.RWMutex
	health map[string]HealthStatus

	cycles atomic.Int64
}

// New creates a registry over services. Later duplicates of a name replace earlier ones.
func New(services []ServiceDescriptor, opts Options) *Registry {
	defaults := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = defaults.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaults.MaxConcurrent
	}
	if opts.Client == nil {
		opts.Client = &http.Client{}
	}

	r := &Registry{
		services: make(map[string]ServiceDescriptor, len(services)),
		opts:     opts,
		health:   make(map[string]HealthStatus),
	}
	for _, svc := range services {
		if svc.Name == "" {
			continue
		}
		r.services[svc.Name] = svc
	}
	for name := range r.services {
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)
	return r
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (ServiceDescriptor, bool) {
	svc, ok := r.services[name]
	return svc, ok
}

// Has implements intent.ServiceCatalog.
func (r *Registry) Has(name string) bool {
	_, ok := r.services[name]
	return ok
}

// TimeoutMs implements intent.ServiceCatalog.
func (r *Registry) TimeoutMs(name string) (int, bool) {
	svc, ok := r.services[name]
	if !ok {
		return 0, false
	}
	return svc.TimeoutMs, true
}

// Names returns the catalog's service names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Services returns the catalog sorted by name.
func (r *Registry) Services() []ServiceDescriptor {
	out := make([]ServiceDescriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.services[name])
	}
	return out
}

// Snapshot returns a copy of the latest health map.
func (r *Registry) Snapshot() map[string]HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]HealthStatus, len(r.health))
	for name, status := range r.health {
		out[name] = status
	}
	return out
}

// HasCompletedCycle reports whether at least one health cycle has finished.
func (r *Registry) HasCompletedCycle() bool {
	return r.cycles.Load() > 0
}

// Run probes every service, waits Interval, and repeats until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	log.Infof("service health loop started (%d services, interval %s)", len(r.names), r.opts.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("service health loop stopped")
			return
		case <-timer.C:
		}

		r.CheckAll(ctx)
		timer.Reset(r.opts.Interval)
	}
}

// CheckAll runs one health cycle and swaps in the resulting map.
func (r *Registry) CheckAll(ctx context.Context) {
	start := time.Now()
	results := make([]HealthStatus, len(r.names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrent)
	for i, name := range r.names {
		svc := r.services[name]
		g.Go(func() error {
			defer func() {
				if p := recover(); p != nil {
					log.Errorf("panic in health check for %s: %v", svc.Name, p)
					results[i] = HealthStatus{Status: StatusUnhealthy, LastChecked: time.Now()}
				}
			}()
			results[i] = r.probe(gctx, svc)
			return nil
		})
	}
	_ = g.Wait()

	next := make(map[string]HealthStatus, len(r.names))
	for i, name := range r.names {
		next[name] = results[i]
	}

	r.mu.Lock()
	previous := r.health
	r.health = next
	r.mu.Unlock()
	r.cycles.Add(1)

	healthy := 0
	for _, name := range r.names {
		status := next[name]
		if status.Status == StatusHealthy {
			healthy++
		}
		if r.opts.Recorder != nil {
			r.opts.Recorder.SetServiceHealth(name, status.Status == StatusHealthy)
		}
		if prev, ok := previous[name]; ok && prev.Status != status.Status {
			r.publish(&hooks.EventContext{
				Event:   hooks.EventServiceHealthChanged,
				Service: name,
				Data: map[string]interface{}{
					"previous": string(prev.Status),
					"status":   string(status.Status),
				},
			})
		}
	}
	r.publish(&hooks.EventContext{
		Event: hooks.EventHealthCycleCompleted,
		Data: map[string]interface{}{
			"healthy":  healthy,
			"total":    len(r.names),
			"duration": time.Since(start).String(),
		},
	})
	log.Debugf("health cycle finished: %d/%d healthy in %s", healthy, len(r.names), time.Since(start))
}

// probe issues one bounded GET against the service's health path.
// Only a 200 response counts as healthy.
func (r *Registry) probe(ctx context.Context, svc ServiceDescriptor) HealthStatus {
	status := HealthStatus{Status: StatusUnhealthy}
	if err := r.checkHealth(ctx, svc); err != nil {
		log.Debugf("health check for %s failed: %v", svc.Name, err)
	} else {
		status.Status = StatusHealthy
	}
	status.LastChecked = time.Now()
	return status
}

func (r *Registry) checkHealth(ctx context.Context, svc ServiceDescriptor) error {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, svc.Endpoint(svc.HealthPath), nil)
	if err != nil {
		return err
	}
	resp, err := r.opts.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}

func (r *Registry) publish(ev *hooks.EventContext) {
	if r.opts.Events == nil {
		return
	}
	ev.Timestamp = time.Now()
	r.opts.Events.PublishAsync(ev)
}
