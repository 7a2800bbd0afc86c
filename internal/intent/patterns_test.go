// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePatterns_KeywordFraction(t *testing.T) {
	e := NewEvaluator()
	categories := []IntentCategory{{
		Name:          "billing",
		TargetService: "payment-processing-service",
		Keywords:      []string{"refund", "payment"},
	}}

	scores := e.ScorePatterns(categories, NewTextRequest("I need a refund"))

	assert.Equal(t, map[string]float64{"payment-processing-service": 0.5}, scores)
}

func TestScorePatterns_KeywordsCaseInsensitive(t *testing.T) {
	e := NewEvaluator()
	categories := []IntentCategory{{
		Name:          "email",
		TargetService: "email-notification-service",
		Keywords:      []string{"Email"},
	}}

	scores := e.ScorePatterns(categories, NewTextRequest("send an EMAIL please"))

	assert.Equal(t, 1.0, scores["email-notification-service"])
}

func TestScorePatterns_PathFloor(t *testing.T) {
	e := NewEvaluator()
	categories := []IntentCategory{{
		Name:          "images",
		TargetService: "image-processing-service",
		Keywords:      []string{"resize", "crop", "rotate", "blur"},
		Patterns:      []string{`/images/.*`},
	}}
	req := IntentRequest{Text: strPtr("resize it"), Path: strPtr("/images/42")}

	scores := e.ScorePatterns(categories, req)
	assert.Equal(t, pathPatternFloor, scores["image-processing-service"])

	req.Text = strPtr("resize crop rotate blur")
	scores = e.ScorePatterns(categories, req)
	assert.Equal(t, 1.0, scores["image-processing-service"])
}

func TestScorePatterns_NoSignal(t *testing.T) {
	e := NewEvaluator()
	categories := []IntentCategory{{
		Name:          "images",
		TargetService: "image-processing-service",
		Keywords:      []string{"resize"},
		Patterns:      []string{`/images/.*`},
	}}

	assert.Empty(t, e.ScorePatterns(categories, IntentRequest{}))
	assert.Empty(t, e.ScorePatterns(categories, IntentRequest{Path: strPtr("/v1/images")}))
}

func TestScorePatterns_LaterCategoryOverwrites(t *testing.T) {
	e := NewEvaluator()
	categories := []IntentCategory{
		{Name: "a", TargetService: "svc", Keywords: []string{"report"}},
		{Name: "b", TargetService: "svc", Keywords: []string{"report", "chart", "graph", "trend"}},
	}

	scores := e.ScorePatterns(categories, NewTextRequest("monthly report"))

	assert.Equal(t, 0.25, scores["svc"])
}
