// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package breaker keeps one circuit breaker per downstream service.
// A breaker opens after a run of consecutive failures, rejects calls until the
// recovery timeout elapses, then lets a single probe through to decide whether
// to close again.
package breaker

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// ErrBreakerOpen is returned without attempting the call while a breaker is open,
// or while its half-open probe is already in flight.
var ErrBreakerOpen = errors.New("circuit breaker open")

// Breaker states as reported by State.
const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half-open"
)

// Settings configures every breaker in a Set.
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens a breaker.
	FailureThreshold uint32

	// RecoveryTimeout is how long a breaker stays open before allowing a probe.
	RecoveryTimeout time.Duration

	// OnStateChange is called on every transition.
	OnStateChange func(service, from, to string)
}

// DefaultSettings returns a threshold of 5 failures and a 30s recovery window.
func DefaultSettings() Settings {
	return Settings{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
	}
}

// Set lazily creates and holds a breaker per service name.
type Set[T any] struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[T]
}

// NewSet creates an empty breaker set.
func NewSet[T any](settings Settings) *Set[T] {
	defaults := DefaultSettings()
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = defaults.FailureThreshold
	}
	if settings.RecoveryTimeout <= 0 {
		settings.RecoveryTimeout = defaults.RecoveryTimeout
	}
	return &Set[T]{
		settings: settings,
		breakers: make(map[string]*gobreaker.CircuitBreaker[T]),
	}
}

// Execute runs fn under service's breaker. A non-nil error from fn counts as a
// failure. While the breaker rejects calls, fn is not invoked and the returned
// error wraps ErrBreakerOpen.
func (s *Set[T]) Execute(service string, fn func() (T, error)) (T, error) {
	out, err := s.get(service).Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return out, fmt.Errorf("%w: %s", ErrBreakerOpen, service)
	}
	return out, err
}

// State returns the current state of service's breaker. Services that have never
// been called are closed.
func (s *Set[T]) State(service string) string {
	s.mu.Lock()
	cb, ok := s.breakers[service]
	s.mu.Unlock()
	if !ok {
		return StateClosed
	}
	return stateName(cb.State())
}

// States returns the state of every breaker created so far, by service.
func (s *Set[T]) States() map[string]string {
	s.mu.Lock()
	names := make([]string, 0, len(s.breakers))
	for name := range s.breakers {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = s.State(name)
	}
	return out
}

func (s *Set[T]) get(service string) *gobreaker.CircuitBreaker[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cb, ok := s.breakers[service]; ok {
		return cb
	}
	threshold := s.settings.FailureThreshold
	cb := gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        service,
		MaxRequests: 1,
		Timeout:     s.settings.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("circuit breaker for %s: %s -> %s", name, stateName(from), stateName(to))
			if s.settings.OnStateChange != nil {
				s.settings.OnStateChange(name, stateName(from), stateName(to))
			}
		},
	})
	s.breakers[service] = cb
	return cb
}

func stateName(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
