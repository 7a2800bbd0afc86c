// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intent

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/goccy/go-json"
)

// CacheKeyPrefix namespaces result cache entries.
const CacheKeyPrefix = "intent:"

// fingerprint is the canonical subset of a request used as its cache identity.
// Context and body are deliberately excluded.
type fingerprint struct {
	Headers map[string]string `json:"headers"`
	Method  string            `json:"method"`
	Path    *string           `json:"path"`
	Text    *string           `json:"text"`
}

// CacheKey returns the namespaced digest of (text, path, method, headers).
// Header keys are serialized in sorted order, so equal header sets hash equally.
func CacheKey(req IntentRequest) string {
	req = req.Normalized()
	// Only strings are encoded, so marshaling cannot fail.
	payload, _ := json.Marshal(fingerprint{
		Headers: req.Headers,
		Method:  req.Method,
		Path:    req.Path,
		Text:    req.Text,
	})
	sum := sha256.Sum256(payload)
	return CacheKeyPrefix + hex.EncodeToString(sum[:])
}
