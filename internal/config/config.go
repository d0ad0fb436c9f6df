package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Auth     AuthConfig      `yaml:"auth"`
	Payments PaymentsConfig  `yaml:"payments"`
	Storage  StorageConfig   `yaml:"storage"`
	Jobs     JobsConfig      `yaml:"jobs"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty"`
}

type ServerConfig struct {
	Addr     string `yaml:"addr"`
	BasePath string `yaml:"base_path"`
}

type AuthConfig struct {
	// JWTSecret is usually injected via GIGHUB_JWT_SECRET rather than
	// written to the file.
	JWTSecret    string `yaml:"jwt_secret,omitempty"`
	AllowAPIKeys bool   `yaml:"allow_api_keys"`
}

type PaymentsConfig struct {
	KeyID     string `yaml:"key_id"`
	KeySecret string `yaml:"key_secret,omitempty"`
	Currency  string `yaml:"currency"`
}

type StorageConfig struct {
	Root          string `yaml:"root"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type JobsConfig struct {
	MaxRevisions int `yaml:"max_revisions"`
}

type WebhookConfig struct {
	URL    string   `yaml:"url"`
	Events []string `yaml:"events,omitempty"`
}

// Default returns a development configuration.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", BasePath: "/api/v1"},
		Auth:     AuthConfig{AllowAPIKeys: true},
		Payments: PaymentsConfig{Currency: "INR"},
		Storage:  StorageConfig{Root: "uploads", PublicBaseURL: "/uploads"},
		Jobs:     JobsConfig{MaxRevisions: 2},
	}
}

// FromYAML loads a config file, applying defaults for absent sections.
func FromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.BasePath == "" {
		return fmt.Errorf("server.base_path is required")
	}
	if c.Payments.Currency == "" {
		return fmt.Errorf("payments.currency is required")
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Storage.PublicBaseURL == "" {
		return fmt.Errorf("storage.public_base_url is required")
	}
	if c.Jobs.MaxRevisions < 0 {
		return fmt.Errorf("jobs.max_revisions must not be negative")
	}
	for i, w := range c.Webhooks {
		if w.URL == "" {
			return fmt.Errorf("webhooks[%d].url is required", i)
		}
	}
	return nil
}
