// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/intent"
)

// Routing document file names inside the routing config directory.
const (
	MetaRoutingFile  = "meta-routing.json"
	RoutingRulesFile = "routing-rules.json"
)

// Environment variables holding fallback routing documents as JSON.
const (
	EnvMetaRouting  = "META_ROUTING_CONFIG"
	EnvRoutingRules = "ROUTING_RULES"
)

// Routing document sources reported by RoutingLoader.Load.
const (
	SourceFiles = "files"
	SourceEnv   = "env"
	SourceEmpty = "empty"
)

// RoutingLoader reads the meta-routing and routing-rules documents.
type RoutingLoader struct {
	Dir    string
	Getenv func(string) string
}

// NewRoutingLoader creates a loader for dir reading fallbacks from the process environment.
func NewRoutingLoader(dir string) *RoutingLoader {
	return &RoutingLoader{Dir: dir, Getenv: os.Getenv}
}

// Paths returns the two document paths.
func (l *RoutingLoader) Paths() []string {
	return []string{
		filepath.Join(l.Dir, MetaRoutingFile),
		filepath.Join(l.Dir, RoutingRulesFile),
	}
}

// Load returns the routing configuration and where it came from. Both documents
// are read from Dir; if either cannot be read or parsed, both are taken from the
// environment instead, and if those are unusable too the configuration is empty.
// Load never fails.
func (l *RoutingLoader) Load() (*intent.RoutingConfig, string) {
	cfg, err := l.loadFiles()
	if err == nil {
		return cfg, SourceFiles
	}
	log.Warnf("routing documents unavailable in %s, using environment: %v", l.Dir, err)

	cfg, err = l.loadEnv()
	if err == nil {
		return cfg, SourceEnv
	}
	log.Warnf("routing documents from environment unusable, starting empty: %v", err)
	return intent.NewRoutingConfig(intent.MetaRouting{}, nil), SourceEmpty
}

func (l *RoutingLoader) loadFiles() (*intent.RoutingConfig, error) {
	paths := l.Paths()
	metaData, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", intent.ErrConfigurationUnavailable, err)
	}
	rulesData, err := os.ReadFile(paths[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", intent.ErrConfigurationUnavailable, err)
	}
	return parseRouting(metaData, rulesData)
}

func (l *RoutingLoader) loadEnv() (*intent.RoutingConfig, error) {
	getenv := l.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	return parseRouting([]byte(getenv(EnvMetaRouting)), []byte(getenv(EnvRoutingRules)))
}

func parseRouting(metaData, rulesData []byte) (*intent.RoutingConfig, error) {
	meta, err := intent.ParseMetaRouting(metaData)
	if err != nil {
		return nil, err
	}
	rules, err := intent.ParseRoutingRules(rulesData)
	if err != nil {
		return nil, err
	}
	return intent.NewRoutingConfig(meta, rules), nil
}
