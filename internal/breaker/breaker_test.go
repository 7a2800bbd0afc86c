// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package breaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTransport = errors.New("dial tcp: connection refused")

func fail() (int, error) { return 0, errTransport }

func succeed() (int, error) { return 200, nil }

func TestSet_OpensAfterThreshold(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 3, RecoveryTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		_, err := set.Execute("pdf-generator-service", fail)
		require.ErrorIs(t, err, errTransport)
	}
	assert.Equal(t, StateOpen, set.State("pdf-generator-service"))

	calls := 0
	_, err := set.Execute("pdf-generator-service", func() (int, error) {
		calls++
		return succeed()
	})
	assert.ErrorIs(t, err, ErrBreakerOpen)
	assert.Zero(t, calls, "open breaker must not attempt the call")
}

func TestSet_SuccessResetsConsecutiveFailures(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 2, RecoveryTimeout: time.Hour})

	_, _ = set.Execute("svc", fail)
	_, _ = set.Execute("svc", succeed)
	_, _ = set.Execute("svc", fail)

	assert.Equal(t, StateClosed, set.State("svc"))
}

func TestSet_HalfOpenProbe(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})

	_, _ = set.Execute("svc", fail)
	require.Equal(t, StateOpen, set.State("svc"))

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, set.State("svc"))

	out, err := set.Execute("svc", succeed)
	require.NoError(t, err)
	assert.Equal(t, 200, out)
	assert.Equal(t, StateClosed, set.State("svc"))
}

func TestSet_HalfOpenProbeFailureReopens(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})

	_, _ = set.Execute("svc", fail)
	time.Sleep(80 * time.Millisecond)

	_, err := set.Execute("svc", fail)
	assert.ErrorIs(t, err, errTransport)
	assert.Equal(t, StateOpen, set.State("svc"))

	_, err = set.Execute("svc", succeed)
	assert.ErrorIs(t, err, ErrBreakerOpen)
}

func TestSet_SingleProbeInHalfOpen(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 1, RecoveryTimeout: 50 * time.Millisecond})
	_, _ = set.Execute("svc", fail)
	time.Sleep(80 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = set.Execute("svc", func() (int, error) {
			close(started)
			<-release
			return 200, nil
		})
	}()
	<-started

	_, err := set.Execute("svc", succeed)
	assert.ErrorIs(t, err, ErrBreakerOpen)

	close(release)
	wg.Wait()
	assert.Equal(t, StateClosed, set.State("svc"))
}

func TestSet_BreakersArePerService(t *testing.T) {
	set := NewSet[int](Settings{FailureThreshold: 1, RecoveryTimeout: time.Hour})

	_, _ = set.Execute("email-notification-service", fail)

	_, err := set.Execute("payment-processing-service", succeed)
	assert.NoError(t, err)
	assert.Equal(t, map[string]string{
		"email-notification-service": StateOpen,
		"payment-processing-service": StateClosed,
	}, set.States())
	assert.Equal(t, StateClosed, set.State("never-called"))
}

func TestSet_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string
	set := NewSet[int](Settings{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		OnStateChange: func(service, from, to string) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, service+":"+from+"->"+to)
		},
	})

	_, _ = set.Execute("svc", fail)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"svc:closed->open"}, transitions)
}

func TestNewSet_Defaults(t *testing.T) {
	set := NewSet[int](Settings{})

	assert.Equal(t, uint32(5), set.settings.FailureThreshold)
	assert.Equal(t, 30*time.Second, set.settings.RecoveryTimeout)
}
