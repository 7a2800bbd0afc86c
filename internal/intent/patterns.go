// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import "strings"

// pathPatternFloor is the minimum score granted when a category path pattern matches.
const pathPatternFloor = 0.8

// IntentCategory declares a named intent, its target service and the signals that
// recognize it.
type IntentCategory struct {
	Name          string   `json:"name"`
	TargetService string   `json:"targetService"`
	Keywords      []string `json:"keywords,omitempty"`
	Patterns      []string `json:"patterns,omitempty"`
	Priority      int      `json:"priority,omitempty"`
	MLModel       string   `json:"mlModel,omitempty"`
}

// ScorePatterns scores categories by keyword overlap with the request text and
// by path pattern matches. Categories are visited in declaration order and a later
// category for the same service overwrites an earlier score.
func (e *Evaluator) ScorePatterns(categories []IntentCategory, req IntentRequest) map[string]float64 {
	scores := make(map[string]float64)

	text, hasText := req.TextValue()
	lowered := strings.ToLower(text)
	path, hasPath := req.PathValue()

	for _, category := range categories {
		if category.TargetService == "" {
			continue
		}
		score := 0.0

		if hasText && len(category.Keywords) > 0 {
			matched := 0
			for _, kw := range category.Keywords {
				if strings.Contains(lowered, strings.ToLower(kw)) {
					matched++
				}
			}
			if matched > 0 {
				score = float64(matched) / float64(len(category.Keywords))
			}
		}

		if hasPath {
			for _, pattern := range category.Patterns {
				re := e.compilePattern(pattern)
				if re != nil && re.MatchString(path) {
					score = max(score, pathPatternFloor)
					break
				}
			}
		}

		if score > 0 {
			scores[category.TargetService] = score
		}
	}

	return scores
}
