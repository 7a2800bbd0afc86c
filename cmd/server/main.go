// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the intent router.
// The router classifies inbound requests by intent and forwards them to the
// downstream service best suited to handle them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/tsubouchi/intent-router/internal/buildinfo"
	"github.com/tsubouchi/intent-router/internal/config"
	"github.com/tsubouchi/intent-router/internal/logging"
)

var (
	Version           = "dev"
	Commit            = "none"
	BuildDate         = "unknown"
	DefaultConfigPath = "config.yaml"
)

// init initializes the shared logger setup.
func init() {
	logging.SetupBaseLogger()
	buildinfo.Version = Version
	buildinfo.Commit = Commit
	buildinfo.BuildDate = BuildDate
}

// main parses flags, loads configuration and either runs a routing subcommand
// or serves the router until SIGINT/SIGTERM.
func main() {
	fmt.Printf("intent-router %s\n", buildinfo.String())

	var configPath string
	var envFile string
	flag.StringVar(&configPath, "config", DefaultConfigPath, "Configure File Path")
	flag.StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")
	flag.Parse()

	// Load environment variables from .env if present.
	if errLoad := godotenv.Load(envFile); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.LoadConfigOptional(configPath, true)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		os.Exit(1)
	}
	cfg.ApplyEnv(os.Getenv)

	if args := flag.Args(); len(args) > 0 {
		os.Exit(runCommand(cfg, args, os.Stdout))
	}

	if err = logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsMaxTotalSizeMB); err != nil {
		log.Errorf("failed to configure log output: %v", err)
		os.Exit(1)
	}
	logging.SetLevel(cfg.Debug)
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(cfg)
	if err != nil {
		log.Errorf("failed to start intent router: %v", err)
		os.Exit(1)
	}
	if err = app.run(ctx); err != nil {
		log.Errorf("intent router stopped with error: %v", err)
		logging.CloseLogOutputs()
		os.Exit(1)
	}
	logging.CloseLogOutputs()
}
