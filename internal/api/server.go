// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api exposes the intent router over HTTP: classification, live
// routing, health probes, configuration reload and metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/forwarder"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/logging"
	"github.com/tsubouchi/intent-router/internal/registry"
)

// Classifier produces routing decisions.
type Classifier interface {
	Classify(ctx context.Context, req intent.IntentRequest) *intent.ClassificationResult
	SetConfig(cfg *intent.RoutingConfig)
}

// Forwarder replays a request against the service chosen for it.
type Forwarder interface {
	Forward(ctx context.Context, result *intent.ClassificationResult, req forwarder.Request) (*forwarder.Response, error)
}

// HealthSource reports downstream service health.
type HealthSource interface {
	Snapshot() map[string]registry.HealthStatus
	HasCompletedCycle() bool
}

// Pinger checks that the cache backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RoutingSource loads the routing documents. The second result names where
// they came from.
type RoutingSource interface {
	Load() (*intent.RoutingConfig, string)
}

// ScriptReloader reloads a classifier script.
type ScriptReloader interface {
	Reload() error
}

// Metrics is the subset of the metrics collector the server uses.
type Metrics interface {
	logging.ConnectionTracker
	Handler() http.Handler
}

// Options wires the server's collaborators. Engine is required.
type Options struct {
	Engine    Classifier
	Forwarder Forwarder
	Health    HealthSource
	Cache     Pinger
	Routing   RoutingSource
	Script    ScriptReloader
	Metrics   Metrics
	Events    *hooks.EventBus

	// ReadyTimeout bounds the cache ping of the readiness probe.
	ReadyTimeout time.Duration

	// MaxBodyBytes caps request bodies accepted by /route.
	MaxBodyBytes int64
}

// Server is the HTTP front of the router.
type Server struct {
	engine *gin.Engine
	server *http.Server
	opts   Options
}

// NewServer builds the gin engine and registers every route.
func NewServer(addr string, opts Options) *Server {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 32 << 20
	}

	engine := gin.New()
	engine.Use(logging.Recovery(), logging.RequestID(), logging.AccessLog(), CORS())

	s := &Server{
		engine: engine,
		opts:   opts,
		server: &http.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	var tracker logging.ConnectionTracker
	if s.opts.Metrics != nil {
		tracker = s.opts.Metrics
	}
	tracked := logging.TrackConnections(tracker)

	intentGroup := s.engine.Group("/intent", tracked)
	{
		intentGroup.POST("/recognize", s.handleRecognize)
		intentGroup.POST("/analyze", s.handleAnalyze)
		intentGroup.POST("/test", s.handleTest)
	}

	s.engine.Any("/route", tracked, s.handleRoute)
	s.engine.Any("/route/*path", tracked, s.handleRoute)

	health := s.engine.Group("/health")
	{
		health.GET("/services", s.handleServices)
		health.GET("/live", s.handleLive)
		health.GET("/ready", s.handleReady)
	}

	s.engine.POST("/config/reload", s.handleReload)

	if s.opts.Metrics != nil {
		s.engine.GET("/metrics", gin.WrapH(s.opts.Metrics.Handler()))
	}
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	log.Infof("intent router listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	log.Info("stopping intent router")
	return s.server.Shutdown(ctx)
}

// Reload re-reads the routing documents and the classifier script and swaps
// them in. trigger names what asked for the reload. It returns the document source.
func (s *Server) Reload(trigger string) string {
	data := map[string]interface{}{"trigger": trigger}

	source := ""
	if s.opts.Routing != nil {
		cfg, src := s.opts.Routing.Load()
		s.opts.Engine.SetConfig(cfg)
		source = src
		data["source"] = src
		data["categories"] = len(cfg.Categories)
		data["rules"] = len(cfg.Rules)
	}

	if s.opts.Script != nil {
		if err := s.opts.Script.Reload(); err != nil {
			log.Warnf("classifier script reload failed, keeping previous script: %v", err)
			data["script_error"] = err.Error()
		}
	}

	if s.opts.Events != nil {
		s.opts.Events.PublishAsync(&hooks.EventContext{
			Event:     hooks.EventConfigReloaded,
			Timestamp: time.Now(),
			Data:      data,
		})
	}
	return source
}

// CORS allows every origin, method and header, answering preflights directly.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "*")
		c.Header("Access-Control-Allow-Headers", "*")

		if c.Request.Method == http.MethodOptions && c.GetHeader("Access-Control-Request-Method") != "" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
