// Package config handles gateway configuration from environment
// variables, with an optional YAML rules file for cache overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/krishimitra/offline-gateway/internal/store"
)

// Config holds all gateway configuration
type Config struct {
	ListenAddr    string `env:"GATEWAY_ADDR" envDefault:":8090"`
	BackendOrigin string `env:"BACKEND_ORIGIN" envDefault:"http://localhost:5000"`
	DataDir       string `env:"GATEWAY_DATA_DIR" envDefault:"./data"`
	RulesFile     string `env:"GATEWAY_RULES_FILE"`

	ProbeInterval  time.Duration `env:"CONNECTIVITY_PROBE_INTERVAL" envDefault:"15s"`
	QueueRetention time.Duration `env:"QUEUE_RETENTION" envDefault:"24h"`

	Profile Profile

	rules rules
}

// Profile carries the user defaults the prefetch manifest is built from.
type Profile struct {
	District   string `env:"DEFAULT_DISTRICT" envDefault:"Kanpur"`
	Crop       string `env:"DEFAULT_CROP" envDefault:"Wheat"`
	Market     string `env:"DEFAULT_MARKET" envDefault:"Kanpur"`
	MarketDays int    `env:"DEFAULT_MARKET_DAYS" envDefault:"30"`
}

type rules struct {
	Partitions map[string]partitionRule `yaml:"partitions"`
	DataRoutes []string                 `yaml:"dataRoutes"`
}

type partitionRule struct {
	MaxEntries int    `yaml:"maxEntries"`
	MaxAge     string `yaml:"maxAge"`
}

// Partition names used across the gateway.
const (
	PartitionStatic = "static-resources"
	PartitionImages = "images"
	PartitionAPI    = "api-data"
)

// Load reads configuration from the environment and, when
// GATEWAY_RULES_FILE is set, layers the YAML rules file on top.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.BackendOrigin = strings.TrimRight(cfg.BackendOrigin, "/")

	if cfg.RulesFile != "" {
		b, err := os.ReadFile(cfg.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg.rules); err != nil {
			return nil, fmt.Errorf("parse rules file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.BackendOrigin == "" {
		return fmt.Errorf("BACKEND_ORIGIN is required")
	}
	if !strings.HasPrefix(c.BackendOrigin, "http://") && !strings.HasPrefix(c.BackendOrigin, "https://") {
		return fmt.Errorf("BACKEND_ORIGIN must be an http(s) origin, got %q", c.BackendOrigin)
	}
	if c.Profile.MarketDays <= 0 {
		return fmt.Errorf("DEFAULT_MARKET_DAYS must be positive, got %d", c.Profile.MarketDays)
	}
	for name, r := range c.rules.Partitions {
		if r.MaxAge == "" {
			continue
		}
		if _, err := time.ParseDuration(r.MaxAge); err != nil {
			return fmt.Errorf("partitions.%s.maxAge: %w", name, err)
		}
	}
	return nil
}

// Partitions returns the cache partitions with built-in defaults,
// overridden by the rules file where present.
func (c *Config) Partitions() []store.Partition {
	parts := []store.Partition{
		{Name: PartitionStatic, MaxEntries: 100},
		{Name: PartitionImages, MaxEntries: 60, MaxAge: 30 * 24 * time.Hour},
		{Name: PartitionAPI, MaxEntries: 30, MaxAge: 24 * time.Hour},
	}
	for i := range parts {
		r, ok := c.rules.Partitions[parts[i].Name]
		if !ok {
			continue
		}
		if r.MaxEntries > 0 {
			parts[i].MaxEntries = r.MaxEntries
		}
		if r.MaxAge != "" {
			d, _ := time.ParseDuration(r.MaxAge)
			parts[i].MaxAge = d
		}
	}
	return parts
}

// DataRoutes returns the GET allow-list: the built-in advisory data
// routes plus any additions from the rules file.
func (c *Config) DataRoutes() []string {
	routes := []string{"/weather", "/market", "/calendar", "/advisories"}
	return append(routes, c.rules.DataRoutes...)
}
