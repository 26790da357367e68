// Package config loads the decoder's YAML configuration and applies
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/logging"
)

// Environment overrides.
const (
	EnvDB          = "SUBCRACK_DB"
	EnvGRPCAddr    = "SUBCRACK_GRPC_ADDR"
	EnvMetricsAddr = "SUBCRACK_METRICS_ADDR"
	EnvLogLevel    = "SUBCRACK_LOG_LEVEL"
)

// Config is the full process configuration.
type Config struct {
	Database        string            `yaml:"database"`
	Languages       map[string]string `yaml:"languages"` // name -> corpus path
	DefaultLanguage string            `yaml:"default_language"`
	Optimizer       anneal.Config     `yaml:"optimizer"`
	Seed            uint64            `yaml:"seed"` // 0 draws a fresh seed per run
	Concurrency     int               `yaml:"concurrency"`
	Restarts        int               `yaml:"restarts"` // extra attempts after a failed run
	GRPCAddr        string            `yaml:"grpc_addr"`
	MetricsAddr     string            `yaml:"metrics_addr"`
	Log             LogConfig         `yaml:"log"`
}

// LogConfig selects the process logger.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Logging converts to the logging package config.
func (l LogConfig) Logging() logging.Config {
	return logging.Config{Level: l.Level, JSON: l.JSON}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Database:        "subcrack.db",
		Languages:       map[string]string{},
		DefaultLanguage: "english",
		Optimizer:       anneal.DefaultConfig(),
		Concurrency:     4,
		Restarts:        2,
		GRPCAddr:        "localhost:50061",
		MetricsAddr:     ":9464",
		Log:             LogConfig{Level: "info"},
	}
}

// Load reads path over Default and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Database = envOr(EnvDB, c.Database)
	c.GRPCAddr = envOr(EnvGRPCAddr, c.GRPCAddr)
	c.MetricsAddr = envOr(EnvMetricsAddr, c.MetricsAddr)
	c.Log.Level = envOr(EnvLogLevel, c.Log.Level)
}

// Validate checks optimizer settings and language references.
func (c Config) Validate() error {
	var errs []error
	if err := c.Optimizer.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("optimizer: %w", err))
	}
	if c.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("concurrency must be positive, got %d", c.Concurrency))
	}
	if c.Restarts < 0 {
		errs = append(errs, fmt.Errorf("restarts must be >= 0, got %d", c.Restarts))
	}
	if len(c.Languages) > 0 {
		if _, ok := c.Languages[c.DefaultLanguage]; !ok {
			errs = append(errs, fmt.Errorf("default language %q has no corpus; have %v", c.DefaultLanguage, c.LanguageNames()))
		}
	}
	for name, path := range c.Languages {
		if path == "" {
			errs = append(errs, fmt.Errorf("language %q has an empty corpus path", name))
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LanguageNames returns the configured languages sorted by name.
func (c Config) LanguageNames() []string {
	names := make([]string, 0, len(c.Languages))
	for n := range c.Languages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
