// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	log "github.com/sirupsen/logrus"
)

// Condition tree combinators.
const (
	CombinatorAnd = "AND"
	CombinatorOr  = "OR"
)

// Leaf condition types.
const (
	ConditionPath   = "path"
	ConditionMethod = "method"
	ConditionHeader = "header"
	ConditionAny    = "any"
	ConditionExpr   = "expr"
)

// Leaf operators.
const (
	OpEquals   = "equals"
	OpMatches  = "matches"
	OpContains = "contains"
	OpStarts   = "starts"
	OpIn       = "in"
	OpExists   = "exists"
	OpGreater  = "greater"
)

// ConditionTree is an AND/OR group of conditions. An empty or unrecognized
// combinator never matches.
type ConditionTree struct {
	Combinator string      `json:"combinator"`
	Conditions []Condition `json:"conditions"`
}

// Condition is a single leaf test, or a nested tree when Tree is set.
type Condition struct {
	Type     string         `json:"type"`
	Operator string         `json:"operator"`
	Key      string         `json:"key,omitempty"`
	Value    any            `json:"value,omitempty"`
	Tree     *ConditionTree `json:"tree,omitempty"`
}

// RuleActions names the target of a matching rule.
type RuleActions struct {
	Route    string `json:"route"`
	Priority int    `json:"priority"`
}

// RoutingRule pairs a condition tree with a routing action.
type RoutingRule struct {
	Name       string        `json:"name,omitempty"`
	Conditions ConditionTree `json:"conditions"`
	Actions    RuleActions   `json:"actions"`
}

// Score returns the rule's contribution, priority/1000 clamped to [0,1].
func (r RoutingRule) Score() float64 {
	return clampUnit(float64(r.Actions.Priority) / 1000.0)
}

// Evaluator evaluates routing rules and category patterns against requests.
// Compiled regular expressions and expressions are memoized; it is safe for
// concurrent use.
type Evaluator struct {
	patterns sync.Map // string -> *regexp.Regexp (nil for invalid)
	programs sync.Map // string -> *vm.Program (nil for invalid)
}

// NewEvaluator creates an evaluator with empty memo tables.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// ScoreRules runs every rule in order and returns service -> score. A later
// matching rule for the same service overwrites an earlier one.
func (e *Evaluator) ScoreRules(rules []RoutingRule, req IntentRequest) map[string]float64 {
	scores := make(map[string]float64)
	for _, rule := range rules {
		if rule.Actions.Route == "" {
			continue
		}
		if e.Matches(rule, req) {
			scores[rule.Actions.Route] = rule.Score()
		}
	}
	return scores
}

// Matches reports whether the rule's condition tree holds for the request.
func (e *Evaluator) Matches(rule RoutingRule, req IntentRequest) bool {
	return e.evaluateTree(rule.Conditions, req)
}

func (e *Evaluator) evaluateTree(tree ConditionTree, req IntentRequest) bool {
	switch tree.Combinator {
	case CombinatorAnd:
		for _, cond := range tree.Conditions {
			if !e.evaluateCondition(cond, req) {
				return false
			}
		}
		return true
	case CombinatorOr:
		for _, cond := range tree.Conditions {
			if e.evaluateCondition(cond, req) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func (e *Evaluator) evaluateCondition(cond Condition, req IntentRequest) bool {
	if cond.Tree != nil {
		return e.evaluateTree(*cond.Tree, req)
	}

	switch cond.Type {
	case ConditionPath:
		path, ok := "", req.Path != nil
		if ok {
			path = *req.Path
		}
		return e.matchValue(path, ok, cond.Operator, cond.Value)
	case ConditionMethod:
		return e.matchValue(req.Method, req.Method != "", cond.Operator, cond.Value)
	case ConditionHeader:
		value, ok := req.Header(cond.Key)
		return e.matchValue(value, ok, cond.Operator, cond.Value)
	case ConditionAny:
		return cond.Operator == "true"
	case ConditionExpr:
		src, ok := cond.Value.(string)
		if !ok {
			return false
		}
		return e.evalExpr(src, req)
	default:
		return false
	}
}

// matchValue applies a leaf operator. An absent actual value never matches.
func (e *Evaluator) matchValue(actual string, present bool, operator string, expected any) bool {
	if !present {
		return false
	}

	switch operator {
	case OpEquals:
		s, ok := expected.(string)
		return ok && actual == s
	case OpMatches:
		s, ok := expected.(string)
		if !ok {
			return false
		}
		re := e.compilePattern(s)
		return re != nil && re.MatchString(actual)
	case OpContains:
		s, ok := expected.(string)
		return ok && strings.Contains(actual, s)
	case OpStarts:
		s, ok := expected.(string)
		return ok && strings.HasPrefix(actual, s)
	case OpIn:
		return memberOf(actual, expected)
	case OpExists:
		return true
	case OpGreater:
		left, err := strconv.ParseFloat(strings.TrimSpace(actual), 64)
		if err != nil {
			return false
		}
		right, ok := toFloat(expected)
		return ok && left > right
	default:
		return false
	}
}

// compilePattern compiles an expression anchored at the start of the input.
func (e *Evaluator) compilePattern(pattern string) *regexp.Regexp {
	if cached, ok := e.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		log.Debugf("invalid routing pattern %q: %v", pattern, err)
		re = nil
	}
	e.patterns.Store(pattern, re)
	return re
}

func (e *Evaluator) evalExpr(src string, req IntentRequest) bool {
	var program *vm.Program
	if cached, ok := e.programs.Load(src); ok {
		program = cached.(*vm.Program)
	} else {
		compiled, err := expr.Compile(src, expr.Env(exprEnv(IntentRequest{})), expr.AsBool())
		if err != nil {
			log.Debugf("invalid rule expression %q: %v", src, err)
			compiled = nil
		}
		e.programs.Store(src, compiled)
		program = compiled
	}
	if program == nil {
		return false
	}

	out, err := expr.Run(program, exprEnv(req))
	if err != nil {
		return false
	}
	matched, ok := out.(bool)
	return ok && matched
}

// exprEnv exposes request fields to rule expressions.
func exprEnv(req IntentRequest) map[string]any {
	text, _ := req.TextValue()
	path, _ := req.PathValue()
	headers := req.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	ctx := req.Context
	if ctx == nil {
		ctx = map[string]any{}
	}
	return map[string]any{
		"text":    text,
		"path":    path,
		"method":  req.Method,
		"headers": headers,
		"context": ctx,
	}
}

func memberOf(actual string, expected any) bool {
	switch v := expected.(type) {
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && s == actual {
				return true
			}
		}
		return false
	case []string:
		for _, s := range v {
			if s == actual {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := v[actual]
		return ok
	case string:
		return strings.Contains(v, actual)
	default:
		return false
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
