// Package config models nmflow.yml, the workspace configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models nmflow.yml.
type Config struct {
	Workspace string `yaml:"-"`
	RT        struct {
		URL   string `yaml:"url"`
		User  string `yaml:"user"`
		Pass  string `yaml:"pass"`
		Queue string `yaml:"queue"`
	} `yaml:"rt"`
	Keycheck struct {
		URL string `yaml:"url"`
	} `yaml:"keycheck"`
	Notify struct {
		WebhookURL string `yaml:"webhook_url"`
		Secret     string `yaml:"secret"`
	} `yaml:"notify"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "nmflow.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found", path)
		}
		return nil, err
	}
	c, err := FromYAML(data)
	if err != nil {
		return nil, err
	}
	c.Workspace = workspace
	return c, nil
}

// LoadOptional is Load, except a missing file yields the defaults.
func LoadOptional(workspace string) (*Config, error) {
	if _, err := os.Stat(Path(workspace)); os.IsNotExist(err) {
		return Default(workspace), nil
	}
	return Load(workspace)
}

// Default returns a config with no external collaborators configured.
func Default(workspace string) *Config {
	return &Config{Workspace: workspace}
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.RT.URL != "" {
		if c.RT.User == "" || c.RT.Pass == "" {
			return fmt.Errorf("config.rt.user and config.rt.pass are required when rt.url is set")
		}
		if c.RT.Queue == "" {
			return fmt.Errorf("config.rt.queue is required when rt.url is set")
		}
	}
	if c.Notify.WebhookURL != "" && c.Notify.Secret == "" {
		return fmt.Errorf("config.notify.secret is required when notify.webhook_url is set")
	}
	return nil
}
