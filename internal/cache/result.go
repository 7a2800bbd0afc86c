// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/intent"
)

// ResultCache stores classification results in a Store. Every backend or codec
// fault is logged and absorbed: reads degrade to a miss and writes to a no-op.
type ResultCache struct {
	store Store
}

// NewResultCache wraps store.
func NewResultCache(store Store) *ResultCache {
	return &ResultCache{store: store}
}

// Get implements intent.ResultCache.
func (c *ResultCache) Get(ctx context.Context, key string) (*intent.ClassificationResult, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			log.Warnf("result cache read failed: %v", fmt.Errorf("%w: %v", intent.ErrCacheUnavailable, err))
		}
		return nil, false
	}

	var result intent.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		log.Warnf("result cache entry %s is corrupt: %v", key, err)
		return nil, false
	}
	return &result, true
}

// Set implements intent.ResultCache.
func (c *ResultCache) Set(ctx context.Context, key string, result *intent.ClassificationResult, ttl time.Duration) {
	if result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		log.Warnf("result cache encode failed: %v", err)
		return
	}
	if err := c.store.SetEx(ctx, key, data, ttl); err != nil {
		log.Warnf("result cache write failed: %v", fmt.Errorf("%w: %v", intent.ErrCacheUnavailable, err))
	}
}

// Ping reports whether the backing store is reachable.
func (c *ResultCache) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", intent.ErrCacheUnavailable, err)
	}
	return nil
}

// Close releases the backing store.
func (c *ResultCache) Close() error {
	return c.store.Close()
}
