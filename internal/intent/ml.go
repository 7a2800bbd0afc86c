// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// TextClassifier scores free text against a set of candidate labels.
// Implementations may be remote; any error is treated as an empty result.
type TextClassifier interface {
	Classify(ctx context.Context, text string, labels []string) (map[string]float64, error)
}

// MLLabel maps a classifier label onto a category name or a service name.
type MLLabel struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// candidateLabels returns the labels offered to the classifier. Explicit label
// mappings win; otherwise every category name is a candidate.
func candidateLabels(cfg *RoutingConfig) []MLLabel {
	if len(cfg.MLLabels) > 0 {
		return cfg.MLLabels
	}
	labels := make([]MLLabel, 0, len(cfg.Categories))
	for _, category := range cfg.Categories {
		labels = append(labels, MLLabel{Label: category.Name, Target: category.Name})
	}
	return labels
}

// scoreML asks the classifier about the request text and maps label scores onto
// services. It degrades to an empty map whenever the classifier is absent or fails.
func scoreML(ctx context.Context, classifier TextClassifier, cfg *RoutingConfig, req IntentRequest) map[string]float64 {
	scores := make(map[string]float64)
	if classifier == nil {
		return scores
	}
	text, ok := req.TextValue()
	if !ok {
		return scores
	}

	labels := candidateLabels(cfg)
	if len(labels) == 0 {
		return scores
	}
	names := make([]string, 0, len(labels))
	for _, l := range labels {
		names = append(names, l.Label)
	}

	raw, err := safeClassify(ctx, classifier, text, names)
	if err != nil {
		log.Debugf("text classifier skipped: %v", err)
		return scores
	}

	for _, l := range labels {
		score, found := raw[l.Label]
		if !found {
			continue
		}
		service := cfg.resolveTarget(l.Target)
		if service == "" {
			continue
		}
		scores[service] = clampUnit(score)
	}
	return scores
}

func safeClassify(ctx context.Context, classifier TextClassifier, text string, labels []string) (out map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: classifier panic: %v", ErrScoreSourceUnavailable, r)
		}
	}()
	out, err = classifier.Classify(ctx, text, labels)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrScoreSourceUnavailable, err)
	}
	return out, nil
}
