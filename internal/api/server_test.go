// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tsubouchi/intent-router/internal/breaker"
	"github.com/tsubouchi/intent-router/internal/cache"
	"github.com/tsubouchi/intent-router/internal/forwarder"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/metrics"
	"github.com/tsubouchi/intent-router/internal/registry"
)

const testMetaRouting = `{
  "intentCategories": {
    "payments": {
      "targetService": "payment-service",
      "keywords": ["refund", "payment"],
      "patterns": ["/payments/.*"],
      "priority": 10
    },
    "general": {
      "targetService": "api-gateway-service",
      "keywords": ["hello"]
    }
  }
}`

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

type backend struct {
	*httptest.Server
	mu   sync.Mutex
	seen []capturedRequest
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.seen = append(b.seen, capturedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Body: string(body)})
		b.mu.Unlock()
		w.Header().Set("X-Backend", "yes")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("handled " + r.URL.Path))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) requests() []capturedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedRequest(nil), b.seen...)
}

type staticRouting struct {
	mu   sync.Mutex
	meta string
}

func (s *staticRouting) set(meta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = meta
}

func (s *staticRouting) Load() (*intent.RoutingConfig, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta, err := intent.ParseMetaRouting([]byte(s.meta))
	if err != nil {
		return intent.NewRoutingConfig(intent.MetaRouting{}, nil), "empty"
	}
	return intent.NewRoutingConfig(meta, nil), "files"
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	server   *Server
	registry *registry.Registry
	routing  *staticRouting
	events   *hooks.EventBus
	metrics  *metrics.Metrics
}

func newTestEnv(t *testing.T, services []registry.ServiceDescriptor, settings breaker.Settings) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	events := hooks.NewEventBus(64)
	t.Cleanup(events.Shutdown)

	m := metrics.New()
	reg := registry.New(services, registry.Options{Interval: time.Hour, Timeout: time.Second, MaxConcurrent: 2})
	store := cache.NewMemoryStore(100)
	results := cache.NewResultCache(store)

	routing := &staticRouting{meta: testMetaRouting}
	cfg, _ := routing.Load()
	engine := intent.NewEngine(cfg, intent.DefaultEngineOptions(), intent.Dependencies{
		Cache:    results,
		Catalog:  reg,
		Recorder: m,
		Events:   events,
	})
	fwd := forwarder.New(reg, breaker.NewSet[*forwarder.Response](settings), forwarder.Options{Recorder: m, Events: events})

	server := NewServer(":0", Options{
		Engine:    engine,
		Forwarder: fwd,
		Health:    reg,
		Cache:     results,
		Routing:   routing,
		Metrics:   m,
		Events:    events,
	})
	return &testEnv{server: server, registry: reg, routing: routing, events: events, metrics: m}
}

func servicesAt(url string, names ...string) []registry.ServiceDescriptor {
	out := make([]registry.ServiceDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, registry.ServiceDescriptor{Name: name, URL: url, HealthPath: "/health", TimeoutMs: 2000})
	}
	return out
}

func (e *testEnv) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rr, req)
	return rr
}

func TestRecognize(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodPost, "/intent/recognize", `{"text":"I want a refund for my payment"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Equal(t, "payment-service", gjson.Get(body, "routing.targetService").String())
	assert.Equal(t, "payments", gjson.Get(body, "recognizedIntent.category").String())
	assert.InDelta(t, 1.0, gjson.Get(body, "recognizedIntent.confidence").Float(), 1e-9)
	assert.Equal(t, int64(2000), gjson.Get(body, "routing.timeout").Int())
	assert.False(t, gjson.Get(body, "metadata.cacheHit").Bool())
	assert.NotEmpty(t, gjson.Get(body, "intentId").String())

	again := env.do(http.MethodPost, "/intent/recognize", `{"text":"I want a refund for my payment"}`)
	require.Equal(t, http.StatusOK, again.Code)
	assert.True(t, gjson.Get(again.Body.String(), "metadata.cacheHit").Bool())
	assert.Equal(t, gjson.Get(body, "intentId").String(), gjson.Get(again.Body.String(), "intentId").String())
}

func TestRecognize_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil, breaker.DefaultSettings())

	rr := env.do(http.MethodPost, "/intent/recognize", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, CodeInvalidRequest, gjson.Get(rr.Body.String(), "error").String())
}

func TestAnalyze(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodPost, "/intent/analyze?text=hello+there", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "api-gateway-service", gjson.Get(rr.Body.String(), "routing.targetService").String())

	missing := env.do(http.MethodPost, "/intent/analyze", "")
	assert.Equal(t, http.StatusBadRequest, missing.Code)
}

func TestIntentTest_Simulation(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodPost, "/intent/test", `{"text":"refund please"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Equal(t, "payment-service", gjson.Get(body, "route.routing.targetService").String())
	assert.False(t, gjson.Get(body, "simulation.wouldRoute").Bool())
	assert.InDelta(t, 0.5, gjson.Get(body, "simulation.confidence").Float(), 1e-9)
	assert.InDelta(t, 200.0, gjson.Get(body, "simulation.estimatedLatency").Float(), 1e-9)
	assert.Equal(t, "payment-service", gjson.Get(body, "simulation.targetService").String())
	assert.Empty(t, b.requests(), "test endpoint must not forward")

	sure := env.do(http.MethodPost, "/intent/test", `{"text":"refund my payment"}`)
	assert.True(t, gjson.Get(sure.Body.String(), "simulation.wouldRoute").Bool())
}

func TestRoute_ForwardsSubpath(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodPost, "/route/payments/refund?order=9", `{"amount":5}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Equal(t, int64(http.StatusAccepted), gjson.Get(body, "status").Int())
	assert.Equal(t, "handled /payments/refund", gjson.Get(body, "body").String())
	assert.Equal(t, "yes", gjson.Get(body, "headers.X-Backend").String())
	assert.Equal(t, "payment-service", gjson.Get(body, "routing.service").String())
	assert.NotEmpty(t, gjson.Get(body, "routing.intentId").String())

	seen := b.requests()
	require.Len(t, seen, 1)
	assert.Equal(t, capturedRequest{Method: http.MethodPost, Path: "/payments/refund", Query: "order=9", Body: `{"amount":5}`}, seen[0])
}

func TestRoute_BareRouteUsesFallback(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodGet, "/route", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "api-gateway-service", gjson.Get(rr.Body.String(), "routing.service").String())

	seen := b.requests()
	require.Len(t, seen, 1)
	assert.Equal(t, "/route", seen[0].Path)
}

func TestRoute_ServiceNotFound(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service"), breaker.DefaultSettings())

	rr := env.do(http.MethodGet, "/route/unknown", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, CodeServiceNotFound, gjson.Get(rr.Body.String(), "error").String())
}

func TestRoute_DownstreamFailureThenBreakerOpen(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	env := newTestEnv(t, servicesAt(url, "payment-service", "api-gateway-service"), breaker.Settings{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
	})

	first := env.do(http.MethodGet, "/route/payments/1", "")
	assert.Equal(t, http.StatusBadGateway, first.Code)
	assert.Equal(t, CodeDownstreamFailure, gjson.Get(first.Body.String(), "error").String())

	second := env.do(http.MethodGet, "/route/payments/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	assert.Equal(t, CodeBreakerOpen, gjson.Get(second.Body.String(), "error").String())
}

func TestRoute_DownstreamTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	services := []registry.ServiceDescriptor{
		{Name: "payment-service", URL: slow.URL, HealthPath: "/health", TimeoutMs: 50},
	}
	env := newTestEnv(t, services, breaker.DefaultSettings())

	rr := env.do(http.MethodGet, "/route/payments/slow", "")
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)
	assert.Equal(t, CodeDownstreamFailure, gjson.Get(rr.Body.String(), "error").String())
}

func TestHealthEndpoints(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	live := env.do(http.MethodGet, "/health/live", "")
	assert.Equal(t, http.StatusOK, live.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, live.Body.String())

	notReady := env.do(http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, notReady.Code)
	assert.Equal(t, "not ready", gjson.Get(notReady.Body.String(), "status").String())
	assert.True(t, gjson.Get(notReady.Body.String(), "checks.redis").Bool())
	assert.False(t, gjson.Get(notReady.Body.String(), "checks.services").Bool())

	env.registry.CheckAll(context.Background())

	ready := env.do(http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"redis":true,"services":true}}`, ready.Body.String())

	services := env.do(http.MethodGet, "/health/services", "")
	require.Equal(t, http.StatusOK, services.Code)
	assert.Equal(t, "healthy", gjson.Get(services.Body.String(), "payment-service.status").String())
	assert.True(t, gjson.Get(services.Body.String(), "api-gateway-service.lastChecked").Exists())
}

func TestReady_CacheUnreachable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := registry.New(nil, registry.Options{Interval: time.Hour})
	reg.CheckAll(context.Background())

	server := NewServer(":0", Options{
		Engine: intent.NewEngine(nil, intent.DefaultEngineOptions(), intent.Dependencies{}),
		Health: reg,
		Cache:  failingPinger{},
	})
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.False(t, gjson.Get(rr.Body.String(), "checks.redis").Bool())
	assert.True(t, gjson.Get(rr.Body.String(), "checks.services").Bool())
}

func TestConfigReload(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	reloaded := make(chan *hooks.EventContext, 1)
	env.events.Subscribe(hooks.EventConfigReloaded, func(ev *hooks.EventContext) { reloaded <- ev })

	env.routing.set(`{"intentCategories": {"greetings": {"targetService": "payment-service", "keywords": ["hello"]}}}`)

	rr := env.do(http.MethodPost, "/config/reload", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Configuration reloaded"}`, rr.Body.String())

	select {
	case ev := <-reloaded:
		assert.Equal(t, "api", ev.Data["trigger"])
		assert.Equal(t, "files", ev.Data["source"])
		assert.Equal(t, 1, ev.Data["categories"])
	case <-time.After(2 * time.Second):
		t.Fatal("config_reloaded event not published")
	}

	after := env.do(http.MethodPost, "/intent/analyze?text=hello", "")
	assert.Equal(t, "payment-service", gjson.Get(after.Body.String(), "routing.targetService").String())
	assert.Equal(t, "greetings", gjson.Get(after.Body.String(), "recognizedIntent.category").String())
}

func TestMetricsEndpoint(t *testing.T) {
	b := newBackend(t)
	env := newTestEnv(t, servicesAt(b.URL, "payment-service", "api-gateway-service"), breaker.DefaultSettings())

	env.do(http.MethodPost, "/intent/analyze?text=refund", "")

	rr := env.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "router_requests_total")
	assert.Contains(t, rr.Body.String(), "router_cache_misses_total 1")
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil, breaker.DefaultSettings())

	req := httptest.NewRequest(http.MethodOptions, "/intent/recognize", nil)
	req.Header.Set("Origin", "https://console.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	live := env.do(http.MethodGet, "/health/live", "")
	assert.Equal(t, "*", live.Header().Get("Access-Control-Allow-Origin"))
}
