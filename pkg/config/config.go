// Package config loads orrd's daemon configuration from a single YAML
// file, the way dropDatabas3-hellojohn's internal/config package loads a
// nested-struct-with-yaml-tags configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is orrd's top-level configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	Watcher WatcherConfig `yaml:"watcher"`
	Cluster ClusterConfig `yaml:"cluster"`
}

// StorageConfig configures the Config Store's Postgres connection.
type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// ServerConfig configures the HTTP endpoints orrd exposes.
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"json_output"`
}

// WatcherConfig configures the Node Watcher's tick interval.
type WatcherConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ClusterConfig configures the Cluster Manager's back-off ceiling.
type ClusterConfig struct {
	MaxInterval time.Duration `yaml:"max_interval"`
}

// Load reads and parses path, filling in defaults for anything left unset.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	c.applyDefaults()

	if c.Storage.DSN == "" {
		return nil, fmt.Errorf("config: storage.dsn is required")
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = ":9090"
	}
	if c.Server.HealthAddr == "" {
		c.Server.HealthAddr = ":9091"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Watcher.Interval <= 0 {
		c.Watcher.Interval = 5 * time.Second
	}
	if c.Cluster.MaxInterval <= 0 {
		c.Cluster.MaxInterval = 10 * time.Second
	}
}
