// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logging

import (
	"net/url"
	"sort"
	"strings"
)

// HideSecret keeps a few leading and trailing characters of a secret.
func HideSecret(secret string) string {
	switch {
	case len(secret) > 8:
		return secret[:4] + "..." + secret[len(secret)-4:]
	case len(secret) > 4:
		return secret[:2] + "..." + secret[len(secret)-2:]
	case len(secret) > 2:
		return secret[:1] + "..." + secret[len(secret)-1:]
	}
	return secret
}

// MaskHeaderValue masks credentials carried in a header. Authorization keeps its
// scheme prefix ("Bearer ..."); API key, token and secret headers are masked
// whole; every other header is returned unchanged.
func MaskHeaderValue(key, value string) string {
	lowerKey := strings.ToLower(strings.TrimSpace(key))
	switch {
	case strings.Contains(lowerKey, "authorization"), lowerKey == "cookie":
		parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
		if len(parts) < 2 {
			return HideSecret(value)
		}
		return parts[0] + " " + HideSecret(parts[1])
	case strings.Contains(lowerKey, "api-key"),
		strings.Contains(lowerKey, "apikey"),
		strings.Contains(lowerKey, "token"),
		strings.Contains(lowerKey, "secret"):
		return HideSecret(value)
	default:
		return value
	}
}

// MaskHeaders renders headers as "k=v" pairs in name order with credentials masked.
func MaskHeaders(headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+MaskHeaderValue(k, headers[k]))
	}
	return strings.Join(parts, " ")
}

// MaskQuery masks credential-like parameters in a raw query string.
func MaskQuery(raw string) string {
	if raw == "" {
		return ""
	}
	parts := strings.Split(raw, "&")
	changed := false
	for i, part := range parts {
		if part == "" {
			continue
		}
		keyPart, valuePart, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(keyPart)
		if err != nil {
			key = keyPart
		}
		if !sensitiveQueryParam(key) {
			continue
		}
		value, err := url.QueryUnescape(valuePart)
		if err != nil {
			value = valuePart
		}
		parts[i] = keyPart + "=" + url.QueryEscape(HideSecret(strings.TrimSpace(value)))
		changed = true
	}
	if !changed {
		return raw
	}
	return strings.Join(parts, "&")
}

func sensitiveQueryParam(key string) bool {
	key = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(key)), "[]")
	if key == "" {
		return false
	}
	if key == "key" || strings.Contains(key, "api-key") || strings.Contains(key, "apikey") || strings.Contains(key, "api_key") {
		return true
	}
	return strings.Contains(key, "token") || strings.Contains(key, "secret")
}
