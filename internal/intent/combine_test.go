// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestCombineScores_MeanOverNamingSources(t *testing.T) {
	combined := CombineScores(
		map[string]float64{"a": 0.9, "b": 0.4},
		map[string]float64{"a": 0.5},
		map[string]float64{},
	)

	assert.InDelta(t, 0.7, combined["a"], 1e-9)
	assert.InDelta(t, 0.4, combined["b"], 1e-9)
	assert.Len(t, combined, 2)
}

func TestSelectBest(t *testing.T) {
	_, _, ok := SelectBest(nil)
	assert.False(t, ok)

	service, score, ok := SelectBest(map[string]float64{"a": 0.2, "b": 0.8})
	assert.True(t, ok)
	assert.Equal(t, "b", service)
	assert.Equal(t, 0.8, score)
}

func TestSelectBest_TieBreakIsLexicographic(t *testing.T) {
	for i := 0; i < 20; i++ {
		service, _, _ := SelectBest(map[string]float64{
			"pdf-generator-service":      0.5,
			"email-notification-service": 0.5,
			"data-analytics-service":     0.5,
		})
		assert.Equal(t, "data-analytics-service", service)
	}
}

func scoresFrom(values []float64, prefix string) map[string]float64 {
	out := make(map[string]float64, len(values))
	for i, v := range values {
		out[fmt.Sprintf("%s-%d", prefix, i)] = v
	}
	return out
}

func TestProperty_CombineIgnoresUnlistedServices(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a source naming only new services leaves existing scores unchanged", prop.ForAll(
		func(first, second []float64, extra float64) bool {
			a := scoresFrom(first, "svc")
			b := scoresFrom(second, "svc")
			before := CombineScores(a, b)
			after := CombineScores(a, b, map[string]float64{"unlisted-service": extra})

			for service, score := range before {
				if math.Abs(after[service]-score) > 1e-12 {
					return false
				}
			}
			return after["unlisted-service"] == extra
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.Float64Range(0, 1),
	))

	properties.Property("combined score is the mean of the naming sources", prop.ForAll(
		func(x, y float64) bool {
			combined := CombineScores(map[string]float64{"s": x}, map[string]float64{"s": y}, map[string]float64{"t": 1})
			return math.Abs(combined["s"]-(x+y)/2) < 1e-12
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("combined scores stay within [0,1]", prop.ForAll(
		func(first, second []float64) bool {
			for _, score := range CombineScores(scoresFrom(first, "svc"), scoresFrom(second, "svc")) {
				if score < 0 || score > 1 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
