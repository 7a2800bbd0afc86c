// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/hooks"
	"golang.org/x/sync/singleflight"
)

// ResultCache stores classification results by fingerprint. Implementations are
// best-effort: a fault must look like a miss on Get and a no-op on Set.
type ResultCache interface {
	Get(ctx context.Context, key string) (*ClassificationResult, bool)
	Set(ctx context.Context, key string, result *ClassificationResult, ttl time.Duration)
}

// ServiceCatalog answers questions about the configured downstream services.
type ServiceCatalog interface {
	Has(name string) bool
	TimeoutMs(name string) (int, bool)
}

// Recorder receives classification metrics.
type Recorder interface {
	ObserveClassification(service, category string, elapsed time.Duration)
	CacheHit()
	CacheMiss()
}

// EngineOptions holds the engine's fixed routing defaults.
type EngineOptions struct {
	FallbackService  string
	FallbackCategory string
	ModelVersion     string
	DefaultTimeoutMs int
}

// DefaultEngineOptions returns the defaults used by the gateway.
func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		FallbackService:  "api-gateway-service",
		FallbackCategory: "general",
		ModelVersion:     "v1.0.0",
		DefaultTimeoutMs: 30000,
	}
}

// Dependencies are the engine's collaborators. Every field is optional.
type Dependencies struct {
	Classifier TextClassifier
	Cache      ResultCache
	Catalog    ServiceCatalog
	Recorder   Recorder
	Events     *hooks.EventBus
	Clock      func() time.Time
	NewID      func() string
}

// routingState pairs a configuration with the evaluator memoizing its patterns.
type routingState struct {
	config    *RoutingConfig
	evaluator *Evaluator
}

// Engine orchestrates cache lookup, scoring, combination and selection.
type Engine struct {
	state   atomic.Pointer[routingState]
	factors *FactorEvaluator
	opts    EngineOptions
	deps    Dependencies
	flight  singleflight.Group
}

// NewEngine creates an engine over cfg. A nil cfg behaves as an empty configuration.
func NewEngine(cfg *RoutingConfig, opts EngineOptions, deps Dependencies) *Engine {
	defaults := DefaultEngineOptions()
	if opts.FallbackService == "" {
		opts.FallbackService = defaults.FallbackService
	}
	if opts.FallbackCategory == "" {
		opts.FallbackCategory = defaults.FallbackCategory
	}
	if opts.ModelVersion == "" {
		opts.ModelVersion = defaults.ModelVersion
	}
	if opts.DefaultTimeoutMs <= 0 {
		opts.DefaultTimeoutMs = defaults.DefaultTimeoutMs
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	e := &Engine{
		factors: NewFactorEvaluator(deps.Clock),
		opts:    opts,
		deps:    deps,
	}
	e.SetConfig(cfg)
	return e
}

// SetConfig atomically replaces the routing configuration. In-flight
// classifications finish with the configuration they started with. Compiled
// patterns and expressions are dropped along with the old configuration.
func (e *Engine) SetConfig(cfg *RoutingConfig) {
	if cfg == nil {
		cfg = NewRoutingConfig(MetaRouting{}, nil)
	}
	e.state.Store(&routingState{config: cfg, evaluator: NewEvaluator()})
}

// Config returns the active routing configuration.
func (e *Engine) Config() *RoutingConfig {
	return e.state.Load().config
}

// Options returns the engine's routing defaults.
func (e *Engine) Options() EngineOptions {
	return e.opts
}

// Classify returns the routing decision for req. Cache, classifier and metric
// faults are absorbed, so classification always produces a result.
func (e *Engine) Classify(ctx context.Context, req IntentRequest) *ClassificationResult {
	start := time.Now()
	req = req.Normalized()
	key := CacheKey(req)

	if e.deps.Cache != nil {
		if cached, ok := e.deps.Cache.Get(ctx, key); ok && cached != nil {
			e.cacheHit()
			cached.Metadata.CacheHit = true
			return cached
		}
	}
	e.cacheMiss()

	// The result is cached and shared with other waiters, so it is computed
	// without the caller's cancellation. The classifier timeout bounds it.
	detached := context.WithoutCancel(ctx)
	leader := false
	v, _, shared := e.flight.Do(key, func() (any, error) {
		leader = true
		return e.classify(detached, req, key, start), nil
	})
	result := v.(*ClassificationResult)
	if !shared {
		return result
	}
	result = result.Clone()
	if !leader {
		// Waiters read the leader's decision like a cache hit, with factors
		// computed for their own request.
		result.Metadata.CacheHit = true
		result.ContextualFactors = e.factors.Evaluate(e.Config().Factors, req)
	}
	return result
}

func (e *Engine) classify(ctx context.Context, req IntentRequest, key string, start time.Time) *ClassificationResult {
	state := e.state.Load()
	cfg := state.config

	ruleScores := e.admissible(state.evaluator.ScoreRules(cfg.Rules, req))
	patternScores := e.admissible(state.evaluator.ScorePatterns(cfg.Categories, req))
	mlScores := e.admissible(scoreML(ctx, e.deps.Classifier, cfg, req))
	factors := e.factors.Evaluate(cfg.Factors, req)

	combined := CombineScores(ruleScores, patternScores, mlScores)
	recognized, priority, service := e.selectIntent(cfg, combined)

	timeout := e.opts.DefaultTimeoutMs
	if e.deps.Catalog != nil {
		if ms, ok := e.deps.Catalog.TimeoutMs(service); ok {
			timeout = ms
		}
	}

	result := &ClassificationResult{
		IntentID:         e.deps.NewID(),
		RecognizedIntent: recognized,
		Routing: RoutingDecision{
			TargetService: service,
			Priority:      priority,
			Strategy:      cfg.Strategy,
			Timeout:       timeout,
		},
		Metadata: ResultMetadata{
			ProcessingTime: float64(time.Since(start).Microseconds()) / 1000.0,
			CacheHit:       false,
			ModelVersion:   e.opts.ModelVersion,
		},
		ContextualFactors: factors,
	}

	if e.deps.Cache != nil {
		e.deps.Cache.Set(ctx, key, result, cfg.CacheTTL)
	}
	if e.deps.Recorder != nil {
		e.deps.Recorder.ObserveClassification(service, recognized.Category, time.Since(start))
	}
	e.publish(result)

	log.Debugf("classified intent %s as %s -> %s (confidence %.3f)", result.IntentID, recognized.Category, service, recognized.Confidence)
	return result
}

// selectIntent picks the winning service and resolves its category.
func (e *Engine) selectIntent(cfg *RoutingConfig, combined map[string]float64) (RecognizedIntent, int, string) {
	service, confidence, ok := SelectBest(combined)
	if !ok {
		return RecognizedIntent{
			Category:   e.opts.FallbackCategory,
			Confidence: 0.0,
			Keywords:   []string{},
		}, DefaultPriority, e.opts.FallbackService
	}

	category, found := cfg.CategoryFor(service)
	if !found {
		return RecognizedIntent{
			Category:   UnknownCategory,
			Confidence: confidence,
			Keywords:   []string{},
		}, DefaultPriority, service
	}

	keywords := append([]string{}, category.Keywords...)
	return RecognizedIntent{
		Category:   category.Name,
		Confidence: confidence,
		Keywords:   keywords,
		MLModel:    category.MLModel,
	}, category.Priority, service
}

// admissible drops scores for services missing from the catalog, so every
// selected target is routable.
func (e *Engine) admissible(scores map[string]float64) map[string]float64 {
	if e.deps.Catalog == nil {
		return scores
	}
	for service := range scores {
		if service == e.opts.FallbackService || e.deps.Catalog.Has(service) {
			continue
		}
		log.Debugf("dropping score for unknown service %q", service)
		delete(scores, service)
	}
	return scores
}

func (e *Engine) cacheHit() {
	if e.deps.Recorder != nil {
		e.deps.Recorder.CacheHit()
	}
}

func (e *Engine) cacheMiss() {
	if e.deps.Recorder != nil {
		e.deps.Recorder.CacheMiss()
	}
}

func (e *Engine) publish(result *ClassificationResult) {
	if e.deps.Events == nil {
		return
	}
	e.deps.Events.PublishAsync(&hooks.EventContext{
		Event:     hooks.EventRoutingDecision,
		Timestamp: time.Now(),
		Service:   result.Routing.TargetService,
		Category:  result.RecognizedIntent.Category,
		Data: map[string]interface{}{
			"intent_id":  result.IntentID,
			"confidence": result.RecognizedIntent.Confidence,
			"priority":   result.Routing.Priority,
		},
	})
}
