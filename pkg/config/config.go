// Package config loads the process configuration: a YAML base file,
// overridden field-by-field by CLI flags in cmd/bucketsmdapi, mirroring
// the teacher's flag-then-override pattern.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/bucketsmdapi/pkg/log"
)

// Config is the full set of process configuration. YAML tags name the
// file's keys; CLI flags in cmd/bucketsmdapi override individual fields
// after Load.
type Config struct {
	ListenHost   string        `yaml:"listen_host"`
	ListenPort   int           `yaml:"listen_port"`
	MetricsHost  string        `yaml:"metrics_host"`
	MetricsPort  int           `yaml:"metrics_port"`
	PostgresDSN  string        `yaml:"postgres_dsn"`
	ClaimTimeout time.Duration `yaml:"claim_timeout"`
	LogLevel     log.Level     `yaml:"log_level"`
	LogJSON      bool          `yaml:"log_json"`
	Datacenter   string        `yaml:"datacenter"`
	ServiceName  string        `yaml:"service_name"`
	ServerName   string        `yaml:"server_name"`
}

// Default returns the configuration used when no file is given and no
// flag overrides a field.
func Default() *Config {
	return &Config{
		ListenHost:   "0.0.0.0",
		ListenPort:   2021,
		MetricsHost:  "127.0.0.1",
		MetricsPort:  8881,
		ClaimTimeout: 5 * time.Second,
		LogLevel:     log.InfoLevel,
		ServiceName:  "bucketsmdapi",
	}
}

// Load reads path as YAML over Default's values. An empty path returns
// Default unchanged; this lets the CLI run with flags alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ListenAddr is the "host:port" form Start expects.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.ListenHost, c.ListenPort)
}

// MetricsAddr is the "host:port" form the metrics HTTP server binds.
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}
