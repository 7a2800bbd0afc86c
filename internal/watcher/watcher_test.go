// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeLog struct {
	mu    sync.Mutex
	calls [][]string
}

func (l *changeLog) record(changed []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, changed)
}

func (l *changeLog) snapshot() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([][]string(nil), l.calls...)
}

func TestNew_DeduplicatesDirectories(t *testing.T) {
	w := New([]string{"/config/meta-routing.json", "/config/routing-rules.json", "", "/scripts/classify.lua"}, 0, nil)

	assert.Equal(t, []string{"/config", "/scripts"}, w.Dirs())
	assert.Equal(t, DefaultDebounce, w.debounce)
}

func TestRelevant(t *testing.T) {
	w := New([]string{"/config/meta-routing.json"}, time.Millisecond, nil)

	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"write to watched file", fsnotify.Event{Name: "/config/meta-routing.json", Op: fsnotify.Write}, true},
		{"rename of watched file", fsnotify.Event{Name: "/config/./meta-routing.json", Op: fsnotify.Rename}, true},
		{"chmod only", fsnotify.Event{Name: "/config/meta-routing.json", Op: fsnotify.Chmod}, false},
		{"unrelated file", fsnotify.Event{Name: "/config/other.json", Op: fsnotify.Write}, false},
		{"configmap swap", fsnotify.Event{Name: "/config/..data", Op: fsnotify.Create}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := w.relevant(tt.ev)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule_DebouncesBurst(t *testing.T) {
	var changes changeLog
	w := New([]string{"/config/a.json", "/config/b.json"}, 20*time.Millisecond, changes.record)

	w.schedule("/config/b.json")
	w.schedule("/config/a.json")
	w.schedule("/config/b.json")

	require.Eventually(t, func() bool { return len(changes.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	calls := changes.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"/config/a.json", "/config/b.json"}, calls[0])
}

func TestRun_DetectsFileWrite(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "routing-rules.json")
	require.NoError(t, os.WriteFile(target, []byte(`{"rules":[]}`), 0o644))

	var changes changeLog
	w := New([]string{target}, 20*time.Millisecond, changes.record)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		_ = os.WriteFile(target, []byte(`{"rules":[{}]}`), 0o644)
		return len(changes.snapshot()) > 0
	}, 5*time.Second, 100*time.Millisecond)

	assert.Contains(t, changes.snapshot()[0], target)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestRun_NoWatchableDirectory(t *testing.T) {
	w := New([]string{filepath.Join(t.TempDir(), "absent", "meta-routing.json")}, 0, nil)

	err := w.Run(context.Background())
	assert.Error(t, err)
}
