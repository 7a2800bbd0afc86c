// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package classifier calls a remote zero-shot text classification endpoint.
package classifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// DefaultTimeout bounds a classification call when none is configured.
const DefaultTimeout = 3 * time.Second

type zeroShotParameters struct {
	CandidateLabels []string `json:"candidate_labels"`
	MultiLabel      bool     `json:"multi_label"`
}

type zeroShotRequest struct {
	Inputs     string             `json:"inputs"`
	Parameters zeroShotParameters `json:"parameters"`
}

// HTTPClassifier posts text and candidate labels to a zero-shot inference endpoint.
type HTTPClassifier struct {
	endpoint string
	client   *http.Client
}

// NewHTTPClassifier creates a classifier for endpoint. A nil client gets one with timeout.
func NewHTTPClassifier(endpoint string, timeout time.Duration, client *http.Client) *HTTPClassifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPClassifier{endpoint: endpoint, client: client}
}

// Endpoint returns the configured URL.
func (c *HTTPClassifier) Endpoint() string {
	return c.endpoint
}

// Classify implements intent.TextClassifier.
func (c *HTTPClassifier) Classify(ctx context.Context, text string, labels []string) (map[string]float64, error) {
	payload, err := json.Marshal(zeroShotRequest{
		Inputs:     text,
		Parameters: zeroShotParameters{CandidateLabels: labels},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("classifier returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return ParseScores(body)
}

// ParseScores reads either the {"labels": [...], "scores": [...]} form or a list
// of {"label": ..., "score": ...} objects. A one-element outer list is unwrapped.
func ParseScores(body []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("classifier response is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if doc.IsArray() && len(doc.Array()) == 1 && doc.Get("0").IsObject() && doc.Get("0.labels").Exists() {
		doc = doc.Get("0")
	}

	scores := make(map[string]float64)
	switch {
	case doc.IsObject() && doc.Get("labels").IsArray():
		labels := doc.Get("labels").Array()
		values := doc.Get("scores").Array()
		if len(labels) != len(values) {
			return nil, fmt.Errorf("classifier response has %d labels but %d scores", len(labels), len(values))
		}
		for i, label := range labels {
			scores[label.String()] = values[i].Float()
		}
	case doc.IsArray():
		doc.ForEach(func(_, item gjson.Result) bool {
			if label := item.Get("label"); label.Exists() {
				scores[label.String()] = item.Get("score").Float()
			}
			return true
		})
	default:
		return nil, fmt.Errorf("unrecognized classifier response shape")
	}
	return scores, nil
}
