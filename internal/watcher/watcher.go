// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package watcher triggers hot reloads when routing documents or the
// classifier script change on disk.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces the bursts editors and ConfigMap updates produce.
const DefaultDebounce = 250 * time.Millisecond

// kubernetes ConfigMap volumes swap this symlink on every update.
const configMapDataDir = "..data"

// Watcher watches the parent directories of a set of files and calls OnChange
// once per burst of changes touching any of them.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	debounce time.Duration
	onChange func(changed []string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New creates a watcher for files. Empty paths are ignored.
func New(files []string, debounce time.Duration, onChange func(changed []string)) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		files:    make(map[string]struct{}),
		debounce: debounce,
		onChange: onChange,
		pending:  make(map[string]struct{}),
	}
	dirs := make(map[string]struct{})
	for _, f := range files {
		if strings.TrimSpace(f) == "" {
			continue
		}
		clean := filepath.Clean(f)
		w.files[clean] = struct{}{}
		dirs[filepath.Dir(clean)] = struct{}{}
	}
	for d := range dirs {
		w.dirs = append(w.dirs, d)
	}
	sort.Strings(w.dirs)
	return w
}

// Dirs returns the watched directories.
func (w *Watcher) Dirs() []string {
	return append([]string(nil), w.dirs...)
}

// Run watches until ctx is cancelled. It fails only when no directory can be watched.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fw.Close()

	added := 0
	for _, dir := range w.dirs {
		if err := fw.Add(dir); err != nil {
			log.Warnf("watcher: cannot watch %s: %v", dir, err)
			continue
		}
		added++
	}
	if added == 0 {
		return fmt.Errorf("watcher: no watchable directory among %v", w.dirs)
	}
	log.Infof("watching %v for routing changes", w.dirs)

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if name, relevant := w.relevant(ev); relevant {
				w.schedule(name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) (string, bool) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	name := filepath.Clean(ev.Name)
	if _, ok := w.files[name]; ok {
		return name, true
	}
	if filepath.Base(name) == configMapDataDir && ev.Op&fsnotify.Create != 0 {
		return name, true
	}
	return "", false
}

func (w *Watcher) schedule(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for name := range w.pending {
		changed = append(changed, name)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(changed) == 0 || w.onChange == nil {
		return
	}
	sort.Strings(changed)
	log.Debugf("watcher: change detected in %v", changed)
	w.onChange(changed)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
