package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"authkit/internal/provider"
)

// Config holds the CLI configuration.
type Config struct {
	Providers []provider.Config `yaml:"providers"`
	SentryDSN string            `yaml:"sentry_dsn"`
}

// LoadConfig loads configuration from a YAML file and environment variables.
// Environment variables override YAML values.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if v := os.Getenv("AUTHKIT_SENTRY_DSN"); v != "" {
		cfg.SentryDSN = v
	}

	for i := range cfg.Providers {
		if err := cfg.Providers[i].Validate(); err != nil {
			return nil, err
		}
		cfg.Providers[i] = cfg.Providers[i].WithDefaults()
	}

	return cfg, nil
}

// Provider returns the named provider config, or the only one when name is
// empty and exactly one provider is configured.
func (c *Config) Provider(name string) (provider.Config, bool) {
	if name == "" && len(c.Providers) == 1 {
		return c.Providers[0], true
	}
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return provider.Config{}, false
}
