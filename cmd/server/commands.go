// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tsubouchi/intent-router/internal/config"
	"github.com/tsubouchi/intent-router/internal/intent"
	"github.com/tsubouchi/intent-router/internal/registry"
)

// Command names accepted after the flags.
const (
	CommandValidate = "validate"
	CommandClassify = "classify"
)

// headerFlags collects repeated -header name=value flags.
type headerFlags map[string]string

func (h headerFlags) String() string {
	parts := make([]string, 0, len(h))
	for k, v := range h {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (h headerFlags) Set(value string) error {
	name, val, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header must be name=value, got %q", value)
	}
	h[strings.TrimSpace(name)] = val
	return nil
}

// routingSummary is printed by the validate command.
type routingSummary struct {
	Source     string   `json:"source"`
	Dir        string   `json:"dir"`
	Strategy   string   `json:"strategy"`
	CacheTTL   string   `json:"cacheTTL"`
	Categories []string `json:"categories"`
	Rules      int      `json:"rules"`
	Services   []string `json:"services"`
}

// runCommand executes a one-shot subcommand and returns the process exit code.
func runCommand(cfg *config.Config, args []string, out io.Writer) int {
	switch args[0] {
	case CommandValidate:
		return runValidate(cfg, out)
	case CommandClassify:
		return runClassify(cfg, args[1:], out)
	default:
		fmt.Fprintf(out, "unknown command %q (expected %s or %s)\n", args[0], CommandValidate, CommandClassify)
		return 2
	}
}

// runValidate loads the routing documents and reports what was found. It fails
// when neither the files nor the environment supplied usable documents.
func runValidate(cfg *config.Config, out io.Writer) int {
	routing, source := config.NewRoutingLoader(cfg.Routing.ConfigDir).Load()

	summary := routingSummary{
		Source:     source,
		Dir:        cfg.Routing.ConfigDir,
		Strategy:   routing.Strategy,
		CacheTTL:   routing.CacheTTL.String(),
		Categories: []string{},
		Rules:      len(routing.Rules),
	}
	for _, category := range routing.Categories {
		summary.Categories = append(summary.Categories, category.Name)
	}
	for _, svc := range cfg.ServiceCatalog() {
		summary.Services = append(summary.Services, svc.Name)
	}

	if err := writeJSON(out, summary); err != nil {
		return 1
	}
	if source == config.SourceEmpty {
		return 1
	}
	return 0
}

// runClassify classifies one request offline, without cache or health checks.
func runClassify(cfg *config.Config, args []string, out io.Writer) int {
	fs := flag.NewFlagSet(CommandClassify, flag.ContinueOnError)
	fs.SetOutput(out)
	text := fs.String("text", "", "Free text to classify")
	path := fs.String("path", "", "Request path to classify")
	method := fs.String("method", intent.DefaultMethod, "Request method")
	headers := headerFlags{}
	fs.Var(headers, "header", "Request header as name=value (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req := intent.IntentRequest{Method: *method, Headers: headers}
	if *text != "" {
		req.Text = text
	}
	if *path != "" {
		req.Path = path
	}

	routing, _ := config.NewRoutingLoader(cfg.Routing.ConfigDir).Load()
	textClassifier, _ := newClassifier(cfg)
	engine := intent.NewEngine(routing, intent.EngineOptions{
		FallbackService:  cfg.Routing.FallbackService,
		FallbackCategory: cfg.Routing.FallbackCategory,
		ModelVersion:     cfg.Routing.ModelVersion,
	}, intent.Dependencies{
		Classifier: textClassifier,
		Catalog:    registry.New(cfg.ServiceCatalog(), registry.DefaultOptions()),
	})

	if err := writeJSON(out, engine.Classify(context.Background(), req)); err != nil {
		return 1
	}
	return 0
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(out, "failed to encode output: %v\n", err)
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
