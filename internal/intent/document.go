// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

const (
	// DefaultStrategy is reported when the meta-routing document names no algorithm.
	DefaultStrategy = "ml-enhanced"

	// DefaultCacheTTL applies when routingStrategies.caching.ttl is absent.
	DefaultCacheTTL = 300 * time.Second
)

// MetaRouting is the parsed meta-routing document.
type MetaRouting struct {
	Categories []IntentCategory
	Factors    []ContextualFactorConfig
	MLLabels   []MLLabel
	Strategy   string
	CacheTTL   time.Duration
}

// RoutingConfig is the complete, immutable routing configuration used by the engine.
type RoutingConfig struct {
	MetaRouting
	Rules []RoutingRule
}

// NewRoutingConfig joins a meta-routing document with a rule set.
func NewRoutingConfig(meta MetaRouting, rules []RoutingRule) *RoutingConfig {
	if meta.Strategy == "" {
		meta.Strategy = DefaultStrategy
	}
	if meta.CacheTTL <= 0 {
		meta.CacheTTL = DefaultCacheTTL
	}
	return &RoutingConfig{MetaRouting: meta, Rules: rules}
}

// CategoryFor returns the first declared category routing to service.
func (c *RoutingConfig) CategoryFor(service string) (IntentCategory, bool) {
	for _, category := range c.Categories {
		if category.TargetService == service {
			return category, true
		}
	}
	return IntentCategory{}, false
}

// resolveTarget turns a label target into a service name. Category names resolve
// to their target service; anything else is taken as a service name.
func (c *RoutingConfig) resolveTarget(target string) string {
	for _, category := range c.Categories {
		if category.Name == target {
			return category.TargetService
		}
	}
	return target
}

// ParseMetaRouting decodes a meta-routing document. Category, factor and label
// order follows the document.
func ParseMetaRouting(data []byte) (MetaRouting, error) {
	var meta MetaRouting
	if len(data) == 0 {
		return meta, nil
	}
	if !gjson.ValidBytes(data) {
		return meta, fmt.Errorf("%w: meta-routing document is not valid JSON", ErrConfigurationUnavailable)
	}
	doc := gjson.ParseBytes(data)

	var decodeErr error
	doc.Get("intentCategories").ForEach(func(key, value gjson.Result) bool {
		var category IntentCategory
		if err := json.Unmarshal([]byte(value.Raw), &category); err != nil {
			decodeErr = fmt.Errorf("%w: category %q: %v", ErrConfigurationUnavailable, key.String(), err)
			return false
		}
		category.Name = key.String()
		if !value.Get("priority").Exists() {
			category.Priority = DefaultPriority
		}
		meta.Categories = append(meta.Categories, category)
		return true
	})
	if decodeErr != nil {
		return MetaRouting{}, decodeErr
	}

	doc.Get("contextualFactors").ForEach(func(key, value gjson.Result) bool {
		weight := 1.0
		if w := value.Get("weight"); w.Exists() {
			weight = w.Float()
		}
		meta.Factors = append(meta.Factors, ContextualFactorConfig{Name: key.String(), Weight: weight})
		return true
	})

	doc.Get("mlLabels").ForEach(func(key, value gjson.Result) bool {
		meta.MLLabels = append(meta.MLLabels, MLLabel{Label: key.String(), Target: value.String()})
		return true
	})

	meta.Strategy = doc.Get("metaRoutingEngine.algorithmType").String()
	if ttl := doc.Get("routingStrategies.caching.ttl"); ttl.Exists() && ttl.Float() > 0 {
		meta.CacheTTL = time.Duration(ttl.Float() * float64(time.Second))
	}

	return meta, nil
}

// ParseRoutingRules decodes a routing-rules document.
func ParseRoutingRules(data []byte) ([]RoutingRule, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: routing-rules document is not valid JSON", ErrConfigurationUnavailable)
	}

	var rules []RoutingRule
	gjson.GetBytes(data, "rules").ForEach(func(_, value gjson.Result) bool {
		priority := DefaultPriority
		if p := value.Get("actions.priority"); p.Exists() {
			priority = int(p.Int())
		}
		rules = append(rules, RoutingRule{
			Name:       value.Get("name").String(),
			Conditions: parseTree(value.Get("conditions")),
			Actions: RuleActions{
				Route:    value.Get("actions.route").String(),
				Priority: priority,
			},
		})
		return true
	})
	return rules, nil
}

// parseTree reads an {"AND": [...]} or {"OR": [...]} group. AND wins when both
// keys are present; a group with neither never matches.
func parseTree(node gjson.Result) ConditionTree {
	var tree ConditionTree
	var items gjson.Result
	switch {
	case node.Get(CombinatorAnd).Exists():
		tree.Combinator, items = CombinatorAnd, node.Get(CombinatorAnd)
	case node.Get(CombinatorOr).Exists():
		tree.Combinator, items = CombinatorOr, node.Get(CombinatorOr)
	default:
		return tree
	}

	tree.Conditions = []Condition{}
	items.ForEach(func(_, item gjson.Result) bool {
		if item.Get(CombinatorAnd).Exists() || item.Get(CombinatorOr).Exists() {
			sub := parseTree(item)
			tree.Conditions = append(tree.Conditions, Condition{Tree: &sub})
			return true
		}
		tree.Conditions = append(tree.Conditions, Condition{
			Type:     item.Get("type").String(),
			Operator: item.Get("operator").String(),
			Key:      item.Get("key").String(),
			Value:    item.Get("value").Value(),
		})
		return true
	})
	return tree
}
