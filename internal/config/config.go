// Copyright 2026 The intent-router Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the intent router.
// It loads the YAML server configuration (listen address, logging, cache,
// health loop, breaker and classifier settings, service catalog) and the JSON
// routing documents consumed by the classification engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/tsubouchi/intent-router/internal/registry"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the YAML configuration.
const (
	EnvRedisURL        = "REDIS_URL"
	EnvMLModelEndpoint = "ML_MODEL_ENDPOINT"
	EnvPort            = "PORT"
	EnvRoutingDir      = "ROUTING_CONFIG_DIR"
)

// DefaultPort is the listen port when none is configured.
const DefaultPort = 8080

// DefaultRoutingDir holds meta-routing.json and routing-rules.json.
const DefaultRoutingDir = "/config"

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the interface the API server binds to. Empty binds all interfaces.
	Host string `yaml:"host" json:"host"`

	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"port"`

	// Debug enables debug-level logging and gin debug mode.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile writes logs to rotating files under logs/ instead of stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB caps the total size of rotated log files. Zero disables the cap.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	Routing    RoutingSettings  `yaml:"routing" json:"routing"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Health     HealthConfig     `yaml:"health" json:"health"`
	Breaker    BreakerConfig    `yaml:"breaker" json:"breaker"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`

	// Services is the downstream catalog. Empty means the built-in catalog.
	Services []registry.ServiceDescriptor `yaml:"services" json:"services"`
}

// RoutingSettings locates the routing documents and fixes engine defaults.
type RoutingSettings struct {
	// ConfigDir contains meta-routing.json and routing-rules.json.
	ConfigDir string `yaml:"config-dir" json:"config-dir"`

	// Watch reloads the routing documents when files in ConfigDir change.
	Watch bool `yaml:"watch" json:"watch"`

	FallbackService  string `yaml:"fallback-service" json:"fallback-service"`
	FallbackCategory string `yaml:"fallback-category" json:"fallback-category"`
	ModelVersion     string `yaml:"model-version" json:"model-version"`
}

// CacheConfig selects the result cache backend.
type CacheConfig struct {
	// RedisURL selects the Redis store. Empty uses the in-memory store.
	RedisURL string `yaml:"redis-url" json:"redis-url"`

	// DialTimeout bounds Redis connects, reads and writes.
	DialTimeout time.Duration `yaml:"dial-timeout" json:"dial-timeout"`

	// MemoryEntries bounds the in-memory store.
	MemoryEntries int `yaml:"memory-entries" json:"memory-entries"`
}

// HealthConfig tunes the service health loop.
type HealthConfig struct {
	Interval      time.Duration `yaml:"interval" json:"interval"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	MaxConcurrent int           `yaml:"max-concurrent" json:"max-concurrent"`
}

// BreakerConfig tunes the per-service circuit breakers.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure-threshold" json:"failure-threshold"`
	RecoveryTimeout  time.Duration `yaml:"recovery-timeout" json:"recovery-timeout"`
}

// ClassifierConfig selects the optional text classifier. Script wins over Endpoint.
type ClassifierConfig struct {
	// Endpoint is a zero-shot classification URL.
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	// Script is a Lua classifier script path.
	Script string `yaml:"script" json:"script"`

	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	cfg.Sanitize()
	return cfg
}

func (cfg *Config) setDefaults() {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.Routing.ConfigDir = DefaultRoutingDir
	cfg.Routing.FallbackService = "api-gateway-service"
	cfg.Routing.FallbackCategory = "general"
	cfg.Routing.ModelVersion = "v1.0.0"
	cfg.Cache.DialTimeout = 2 * time.Second
	cfg.Cache.MemoryEntries = 10000
	cfg.Health.Interval = 30 * time.Second
	cfg.Health.Timeout = 5 * time.Second
	cfg.Health.MaxConcurrent = 10
	cfg.Breaker.FailureThreshold = 5
	cfg.Breaker.RecoveryTimeout = 30 * time.Second
	cfg.Classifier.Timeout = 3 * time.Second
}

// LoadConfig reads a YAML configuration file from the given path, applies
// defaults for absent keys and sanitizes the result.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be loaded
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg.setDefaults()

	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.Sanitize()
	return &cfg, nil
}

// ApplyEnv overrides configuration values from the environment. getenv is
// usually os.Getenv.
func (cfg *Config) ApplyEnv(getenv func(string) string) {
	if v := strings.TrimSpace(getenv(EnvRedisURL)); v != "" {
		cfg.Cache.RedisURL = v
	}
	if v := strings.TrimSpace(getenv(EnvMLModelEndpoint)); v != "" {
		cfg.Classifier.Endpoint = v
	}
	if v := strings.TrimSpace(getenv(EnvPort)); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			cfg.Port = port
		}
	}
	if v := strings.TrimSpace(getenv(EnvRoutingDir)); v != "" {
		cfg.Routing.ConfigDir = v
	}
	cfg.Sanitize()
}

// Sanitize clamps invalid values back to defaults, trims strings and drops
// catalog entries without a name or URL.
func (cfg *Config) Sanitize() {
	var defaults Config
	defaults.setDefaults()

	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaults.Port
	}
	if cfg.LogsMaxTotalSizeMB < 0 {
		cfg.LogsMaxTotalSizeMB = 0
	}

	cfg.Routing.ConfigDir = strings.TrimSpace(cfg.Routing.ConfigDir)
	if cfg.Routing.ConfigDir == "" {
		cfg.Routing.ConfigDir = defaults.Routing.ConfigDir
	}
	if strings.TrimSpace(cfg.Routing.FallbackService) == "" {
		cfg.Routing.FallbackService = defaults.Routing.FallbackService
	}
	if strings.TrimSpace(cfg.Routing.FallbackCategory) == "" {
		cfg.Routing.FallbackCategory = defaults.Routing.FallbackCategory
	}
	if strings.TrimSpace(cfg.Routing.ModelVersion) == "" {
		cfg.Routing.ModelVersion = defaults.Routing.ModelVersion
	}

	cfg.Cache.RedisURL = strings.TrimSpace(cfg.Cache.RedisURL)
	if cfg.Cache.DialTimeout <= 0 {
		cfg.Cache.DialTimeout = defaults.Cache.DialTimeout
	}
	if cfg.Cache.MemoryEntries <= 0 {
		cfg.Cache.MemoryEntries = defaults.Cache.MemoryEntries
	}

	if cfg.Health.Interval <= 0 {
		cfg.Health.Interval = defaults.Health.Interval
	}
	if cfg.Health.Timeout <= 0 {
		cfg.Health.Timeout = defaults.Health.Timeout
	}
	if cfg.Health.MaxConcurrent <= 0 {
		cfg.Health.MaxConcurrent = defaults.Health.MaxConcurrent
	}

	if cfg.Breaker.FailureThreshold <= 0 {
		cfg.Breaker.FailureThreshold = defaults.Breaker.FailureThreshold
	}
	if cfg.Breaker.RecoveryTimeout <= 0 {
		cfg.Breaker.RecoveryTimeout = defaults.Breaker.RecoveryTimeout
	}

	cfg.Classifier.Endpoint = strings.TrimSpace(cfg.Classifier.Endpoint)
	cfg.Classifier.Script = strings.TrimSpace(cfg.Classifier.Script)
	if cfg.Classifier.Timeout <= 0 {
		cfg.Classifier.Timeout = defaults.Classifier.Timeout
	}

	cfg.SanitizeServices()
}

// SanitizeServices trims catalog entries and removes those that are not routable,
// preserving the order of the rest. Missing timeouts default to 30s.
func (cfg *Config) SanitizeServices() {
	if len(cfg.Services) == 0 {
		return
	}
	out := cfg.Services[:0]
	for _, svc := range cfg.Services {
		svc.Name = strings.TrimSpace(svc.Name)
		svc.URL = strings.TrimRight(strings.TrimSpace(svc.URL), "/")
		svc.HealthPath = strings.TrimSpace(svc.HealthPath)
		if svc.Name == "" || svc.URL == "" {
			continue
		}
		if svc.HealthPath == "" {
			svc.HealthPath = "/health"
		}
		if svc.TimeoutMs <= 0 {
			svc.TimeoutMs = 30000
		}
		out = append(out, svc)
	}
	cfg.Services = out
}

// ServiceCatalog returns the configured services, or the built-in catalog when none are set.
func (cfg *Config) ServiceCatalog() []registry.ServiceDescriptor {
	if len(cfg.Services) == 0 {
		return registry.DefaultServices()
	}
	return append([]registry.ServiceDescriptor(nil), cfg.Services...)
}

// Addr returns the host:port listen address.
func (cfg *Config) Addr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}
