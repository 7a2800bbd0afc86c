// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import "time"

// Contextual factor names with a dedicated heuristic.
const (
	FactorUserProfile     = "userProfile"
	FactorRequestMetadata = "requestMetadata"
	FactorSystemState     = "systemState"
	FactorTemporalContext = "temporalContext"
	FactorBusinessLogic   = "businessLogic"
)

// ContextualFactorConfig configures one advisory factor.
type ContextualFactorConfig struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// FactorEvaluator computes weighted contextual factor scores. The scores are
// reported alongside a result but never change which service is selected.
type FactorEvaluator struct {
	now func() time.Time
}

// NewFactorEvaluator creates an evaluator reading the given clock; nil means time.Now.
func NewFactorEvaluator(now func() time.Time) *FactorEvaluator {
	if now == nil {
		now = time.Now
	}
	return &FactorEvaluator{now: now}
}

// Evaluate returns factor name -> base score * weight for every configured factor.
func (f *FactorEvaluator) Evaluate(factors []ContextualFactorConfig, req IntentRequest) map[string]float64 {
	out := make(map[string]float64, len(factors))
	for _, factor := range factors {
		out[factor.Name] = f.baseScore(factor.Name, req) * factor.Weight
	}
	return out
}

func (f *FactorEvaluator) baseScore(name string, req IntentRequest) float64 {
	switch name {
	case FactorUserProfile:
		if present(req.Context["userId"]) {
			return 0.7
		}
	case FactorRequestMetadata:
		if len(req.Headers) > 0 {
			return 0.6
		}
	case FactorSystemState:
		return 0.8
	case FactorTemporalContext:
		hour := f.now().UTC().Hour()
		if hour >= 9 && hour <= 17 {
			return 0.9
		}
		return 0.4
	case FactorBusinessLogic:
		return 0.75
	}
	return 0.5
}

// present mirrors a truthiness check on a loosely typed context value.
func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
