// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package intent implements the intent classification engine.
// Requests are scored by independent sources (routing rules, category patterns and
// an optional text classifier), the scores are combined per service, and the best
// service is selected as the routing target.
package intent

import (
	"encoding/json"
	"strings"
)

const (
	// DefaultMethod is assumed when a request carries no HTTP method.
	DefaultMethod = "GET"

	// DefaultPriority is used for rules and categories that declare none.
	DefaultPriority = 100

	// UnknownCategory names the synthesized category for services with no declared category.
	UnknownCategory = "unknown"
)

// IntentRequest is the unit being classified. It is treated as immutable once built.
type IntentRequest struct {
	Text    *string           `json:"text,omitempty"`
	Path    *string           `json:"path,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Context map[string]any    `json:"context,omitempty"`
}

// NewTextRequest builds a GET request carrying only free text.
func NewTextRequest(text string) IntentRequest {
	return IntentRequest{Text: &text, Method: DefaultMethod}
}

// Normalized returns a copy with the method defaulted and nil maps replaced.
func (r IntentRequest) Normalized() IntentRequest {
	out := r
	if strings.TrimSpace(out.Method) == "" {
		out.Method = DefaultMethod
	}
	if out.Headers == nil {
		out.Headers = map[string]string{}
	}
	if out.Context == nil {
		out.Context = map[string]any{}
	}
	return out
}

// TextValue reports the request text and whether it is present and non-empty.
func (r IntentRequest) TextValue() (string, bool) {
	if r.Text == nil || *r.Text == "" {
		return "", false
	}
	return *r.Text, true
}

// PathValue reports the request path and whether it is present and non-empty.
func (r IntentRequest) PathValue() (string, bool) {
	if r.Path == nil || *r.Path == "" {
		return "", false
	}
	return *r.Path, true
}

// Header looks up a header by exact name first, then case-insensitively.
func (r IntentRequest) Header(key string) (string, bool) {
	if v, ok := r.Headers[key]; ok {
		return v, true
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// RecognizedIntent describes the winning category.
type RecognizedIntent struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Keywords   []string `json:"keywords"`
	MLModel    string   `json:"mlModel,omitempty"`
}

// RoutingDecision describes where and how the request should be forwarded.
type RoutingDecision struct {
	TargetService string `json:"targetService"`
	Priority      int    `json:"priority"`
	Strategy      string `json:"strategy"`
	Timeout       int    `json:"timeout"`
}

// ResultMetadata carries bookkeeping about how the result was produced.
type ResultMetadata struct {
	ProcessingTime float64 `json:"processingTime"`
	CacheHit       bool    `json:"cacheHit"`
	ModelVersion   string  `json:"modelVersion"`
}

// ClassificationResult is the cacheable outcome of one classification.
type ClassificationResult struct {
	IntentID          string             `json:"intentId"`
	RecognizedIntent  RecognizedIntent   `json:"recognizedIntent"`
	Routing           RoutingDecision    `json:"routing"`
	Metadata          ResultMetadata     `json:"metadata"`
	ContextualFactors map[string]float64 `json:"contextualFactors,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *ClassificationResult) Clone() *ClassificationResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.RecognizedIntent.Keywords != nil {
		out.RecognizedIntent.Keywords = append([]string(nil), r.RecognizedIntent.Keywords...)
	}
	if r.ContextualFactors != nil {
		out.ContextualFactors = make(map[string]float64, len(r.ContextualFactors))
		for k, v := range r.ContextualFactors {
			out.ContextualFactors[k] = v
		}
	}
	return &out
}
