// Package config loads the operator's flotilla configuration from
// `~/.flotilla/config.yaml` and locates the sibling cluster template and key
// directories.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/flotilla-io/flotilla/pkg/fleet"
)

// Config is the operator configuration.
type Config struct {
	// Region is the default cloud region.
	Region string `yaml:"region"`

	// Profile selects a shared AWS credentials profile; empty uses the
	// default chain.
	Profile string `yaml:"profile,omitempty"`

	// Username is the default login user for nodes without an override.
	Username string `yaml:"username,omitempty"`

	// KeyFile is the default private key for nodes without an override.
	KeyFile string `yaml:"keyfile,omitempty"`

	// RedisURL enables the shared Redis inventory cache when non-empty
	// (host:port; the in-process cache is the default).
	RedisURL string `yaml:"redis_url,omitempty"`

	// Dir is the config directory, derived from the config path.
	Dir string `yaml:"-"`
}

// DefaultDir returns `~/.flotilla`.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flotilla"
	}
	return filepath.Join(home, ".flotilla")
}

// Load reads the configuration file at path. A missing file yields a zero
// config rooted at the path's directory, not an error: every setting has a
// flag or environment fallback.
func Load(path string) (*Config, error) {
	cfg := &Config{Dir: filepath.Dir(path)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the settings every cloud operation needs.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fleet.ErrNoRegion
	}
	return nil
}

// ClustersDir returns the cluster template directory.
func (c *Config) ClustersDir() string {
	return filepath.Join(c.Dir, "clusters")
}

// KeysDir returns the generated key pair directory.
func (c *Config) KeysDir() string {
	return filepath.Join(c.Dir, "keys")
}

// UserDataPath returns the persisted user settings path.
func (c *Config) UserDataPath() string {
	return filepath.Join(c.Dir, "userdata.yaml")
}
