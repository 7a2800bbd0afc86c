// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/api"
	"github.com/tsubouchi/intent-router/internal/breaker"
	"github.com/tsubouchi/intent-router/internal/buildinfo"
	"github.com/tsubouchi/intent-router/internal/cache"
	"github.com/tsubouchi/intent-router/internal/classifier"
	"github.com/tsubouchi/intent-router/internal/config"
	"github.com/tsubouchi/intent-router/internal/forwarder"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/metrics"
	"github.com/tsubouchi/intent-router/internal/plugin"
	"github.com/tsubouchi/intent-router/internal/registry"
	"github.com/tsubouchi/intent-router/internal/watcher"
)

const shutdownTimeout = 10 * time.Second

// app holds the wired router components for one process lifetime.
type app struct {
	cfg      *config.Config
	events   *hooks.EventBus
	metrics  *metrics.Metrics
	registry *registry.Registry
	results  *cache.ResultCache
	engine   *intent.Engine
	server   *api.Server
	loader   *config.RoutingLoader
	script   *plugin.LuaClassifier
}

// newCacheStore picks Redis when a URL is configured, the in-memory store otherwise.
func newCacheStore(cfg *config.Config) (cache.Store, error) {
	if cfg.Cache.RedisURL == "" {
		log.Info("result cache: in-memory store")
		return cache.NewMemoryStore(cfg.Cache.MemoryEntries), nil
	}
	store, err := cache.NewRedisStore(cfg.Cache.RedisURL, cfg.Cache.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("result cache: %w", err)
	}
	log.Info("result cache: redis store")
	return store, nil
}

// newClassifier builds the optional text classifier. A Lua script wins over an
// HTTP endpoint. A script that fails to load falls back to the endpoint.
func newClassifier(cfg *config.Config) (intent.TextClassifier, *plugin.LuaClassifier) {
	if cfg.Classifier.Script != "" {
		script, err := plugin.NewLuaClassifier(cfg.Classifier.Script, cfg.Classifier.Timeout)
		if err == nil {
			log.Infof("text classifier: lua script %s", script.Path())
			return script, script
		}
		log.Warnf("text classifier script %s unusable: %v", cfg.Classifier.Script, err)
	}
	if cfg.Classifier.Endpoint != "" {
		log.Infof("text classifier: %s", cfg.Classifier.Endpoint)
		return classifier.NewHTTPClassifier(cfg.Classifier.Endpoint, cfg.Classifier.Timeout, nil), nil
	}
	log.Info("text classifier: disabled")
	return nil, nil
}

// buildApp wires every component from cfg without starting anything.
func buildApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, events: hooks.NewEventBus(1024), metrics: metrics.New()}
	hooks.SubscribeLogger(a.events)
	a.metrics.SetBuildInfo(buildinfo.Version, buildinfo.Commit)

	store, err := newCacheStore(cfg)
	if err != nil {
		a.events.Shutdown()
		return nil, err
	}
	a.results = cache.NewResultCache(store)

	a.registry = registry.New(cfg.ServiceCatalog(), registry.Options{
		Interval:      cfg.Health.Interval,
		Timeout:       cfg.Health.Timeout,
		MaxConcurrent: cfg.Health.MaxConcurrent,
		Events:        a.events,
		Recorder:      a.metrics,
	})

	breakers := breaker.NewSet[*forwarder.Response](breaker.Settings{
		FailureThreshold: uint32(cfg.Breaker.FailureThreshold),
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		OnStateChange: func(service, from, to string) {
			a.metrics.SetBreakerState(service, to)
			a.events.PublishAsync(&hooks.EventContext{
				Event:     hooks.EventBreakerStateChanged,
				Timestamp: time.Now(),
				Service:   service,
				Data:      map[string]interface{}{"from": from, "to": to},
			})
		},
	})
	fwd := forwarder.New(a.registry, breakers, forwarder.Options{Recorder: a.metrics, Events: a.events})

	a.loader = config.NewRoutingLoader(cfg.Routing.ConfigDir)
	routing, source := a.loader.Load()
	log.Infof("routing configuration loaded from %s: %d categories, %d rules", source, len(routing.Categories), len(routing.Rules))

	textClassifier, script := newClassifier(cfg)
	a.script = script
	a.engine = intent.NewEngine(routing, intent.EngineOptions{
		FallbackService:  cfg.Routing.FallbackService,
		FallbackCategory: cfg.Routing.FallbackCategory,
		ModelVersion:     cfg.Routing.ModelVersion,
	}, intent.Dependencies{
		Classifier: textClassifier,
		Cache:      a.results,
		Catalog:    a.registry,
		Recorder:   a.metrics,
		Events:     a.events,
	})

	opts := api.Options{
		Engine:    a.engine,
		Forwarder: fwd,
		Health:    a.registry,
		Cache:     a.results,
		Routing:   a.loader,
		Metrics:   a.metrics,
		Events:    a.events,
	}
	if script != nil {
		opts.Script = script
	}
	a.server = api.NewServer(cfg.Addr(), opts)
	return a, nil
}

// watchedFiles lists the files whose changes trigger a reload.
func (a *app) watchedFiles() []string {
	files := a.loader.Paths()
	if a.script != nil {
		files = append(files, a.script.Path())
	}
	return files
}

// run starts the health loop, the optional watcher and the HTTP server, and
// blocks until ctx is cancelled or the server fails.
func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.registry.Run(ctx)

	if a.cfg.Routing.Watch {
		w := watcher.New(a.watchedFiles(), watcher.DefaultDebounce, func(changed []string) {
			log.Infof("routing files changed: %v", changed)
			a.server.Reload("watcher")
		})
		go func() {
			if err := w.Run(ctx); err != nil {
				log.Warnf("routing watcher disabled: %v", err)
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := a.server.Stop(shutdownCtx); err != nil {
		log.Warnf("http server shutdown: %v", err)
	}
	a.close()
	return serveErr
}

func (a *app) close() {
	if err := a.results.Close(); err != nil {
		log.Debugf("result cache close: %v", err)
	}
	a.events.Shutdown()
}
