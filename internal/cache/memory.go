// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// DefaultMemoryEntries bounds a MemoryStore created with a non-positive size.
const DefaultMemoryEntries = 10000

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
	element   *list.Element
}

// MemoryStats is a snapshot of MemoryStore counters.
type MemoryStats struct {
	Size      int
	Evictions int64
	Expired   int64
}

// MemoryStore is an in-process Store with LRU eviction and per-entry expiry.
// It is used when no Redis URL is configured.
type MemoryStore struct {
	maxSize int
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
	lruList *list.List
	stats   MemoryStats
}

// NewMemoryStore creates a store holding at most maxSize entries.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = DefaultMemoryEntries
	}
	return &MemoryStore{
		maxSize: maxSize,
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
		lruList: list.New(),
	}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !m.now().Before(entry.expiresAt) {
		m.removeLocked(entry)
		m.stats.Expired++
		return nil, ErrMiss
	}
	m.lruList.MoveToFront(entry.element)
	return append([]byte(nil), entry.value...), nil
}

// SetEx implements Store. A non-positive ttl deletes the key.
func (m *MemoryStore) SetEx(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.entries[key]; ok {
		m.removeLocked(existing)
	}
	if ttl <= 0 {
		return nil
	}
	if len(m.entries) >= m.maxSize {
		m.evictLRU()
	}

	entry := &memoryEntry{
		key:       key,
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	entry.element = m.lruList.PushFront(entry)
	m.entries[key] = entry
	return nil
}

// Ping implements Store; an in-process store is always reachable.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close implements Store and drops every entry.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*memoryEntry)
	m.lruList = list.New()
	return nil
}

// Stats returns current counters.
func (m *MemoryStore) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := m.stats
	stats.Size = len(m.entries)
	return stats
}

// evictLRU removes the least recently used entry. Must be called with lock held.
func (m *MemoryStore) evictLRU() {
	oldest := m.lruList.Back()
	if oldest == nil {
		return
	}
	m.removeLocked(oldest.Value.(*memoryEntry))
	m.stats.Evictions++
}

func (m *MemoryStore) removeLocked(entry *memoryEntry) {
	delete(m.entries, entry.key)
	m.lruList.Remove(entry.element)
}
