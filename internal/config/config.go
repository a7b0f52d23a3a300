// Package config loads agentforge settings from an optional YAML file with
// sensible defaults for everything left unset.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime settings loaded from agentforge.yml.
type Config struct {
	// DataDir is the root for the artifact store and the status database.
	DataDir string `yaml:"dataDir,omitempty"`

	// Workers is the number of concurrent pipeline worker slots.
	Workers int `yaml:"workers,omitempty"`

	// GeneratorEndpoint is the JSON-RPC URL of the content generation
	// service.
	GeneratorEndpoint string `yaml:"generatorEndpoint,omitempty"`

	// GeneratorTimeoutSeconds bounds each generation attempt.
	GeneratorTimeoutSeconds int `yaml:"generatorTimeoutSeconds,omitempty"`

	// MaxAttempts bounds generation attempts per stage per run.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`

	// ListenAddr is the MCP server listen address.
	ListenAddr string `yaml:"listenAddr,omitempty"`

	// InMemory selects the in-memory status store instead of the durable
	// KuzuDB one. Useful for throwaway runs.
	InMemory bool `yaml:"inMemory,omitempty"`

	// Verbose enables debug logging.
	Verbose bool `yaml:"verbose,omitempty"`
}

// Load attempts to read agentforge.yml or agentforge.yaml from the given
// directory. Returns a default config (not an error) if no config file
// exists.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	for _, name := range []string{"agentforge.yml", "agentforge.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		break
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills every unset field.
func (c *Config) ApplyDefaults() {
	if c.DataDir == "" {
		c.DataDir = ".agentforge"
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.GeneratorEndpoint == "" {
		c.GeneratorEndpoint = "http://127.0.0.1:8700/rpc"
	}
	if c.GeneratorTimeoutSeconds <= 0 {
		c.GeneratorTimeoutSeconds = 60
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:8701"
	}
}

// GeneratorTimeout returns the per-attempt generation deadline.
func (c *Config) GeneratorTimeout() time.Duration {
	return time.Duration(c.GeneratorTimeoutSeconds) * time.Second
}

// ArtifactDir returns the artifact store root under DataDir.
func (c *Config) ArtifactDir() string {
	return filepath.Join(c.DataDir, "artifacts")
}

// DatabasePath returns the status database path under DataDir.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "status.kuzu")
}
