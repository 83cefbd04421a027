// Package config handles looma configuration from YAML files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level looma configuration.
type Config struct {
	Browser  BrowserConfig `yaml:"browser"`
	Indexer  IndexerConfig `yaml:"indexer"`
	Session  SessionConfig `yaml:"session"`
	Settings Settings      `yaml:"settings"`
	Sinks    []SinkConfig  `yaml:"sinks"`
	Server   ServerConfig  `yaml:"server"`
	LogLevel string        `yaml:"log_level"` // debug | info | warn | error
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	XvfbDisplay      string        `yaml:"xvfb_display"`
}

// IndexerConfig sets the engine's timing.
type IndexerConfig struct {
	Debounce time.Duration `yaml:"debounce"`
	Backstop time.Duration `yaml:"backstop"`
}

// SessionConfig controls readiness and initialization retry.
type SessionConfig struct {
	ReadyTimeout  time.Duration `yaml:"ready_timeout"`
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryBackoff  time.Duration `yaml:"retry_backoff"` // multiplied by the attempt number
}

// Settings are user presentation preferences. The core carries them for the
// host and never acts on them.
type Settings struct {
	Enabled      *bool  `yaml:"enabled" json:"enabled"`
	SidebarWidth int    `yaml:"sidebar_width" json:"sidebar_width"`
	AutoCollapse bool   `yaml:"auto_collapse" json:"auto_collapse"`
	Theme        string `yaml:"theme" json:"theme"` // adaptive | light | dark
}

// IsEnabled reports the Enabled flag, true when unset.
func (s Settings) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
}

// ServerConfig is the control API listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadFile reads a YAML configuration file. Environment overrides are
// applied on top.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads path when non-empty, else starts from Default. A .env file in
// the working directory is loaded first when present; variables already
// set in the environment win.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	if path != "" {
		return LoadFile(path)
	}
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LOOMA_REMOTE"); v != "" {
		c.Browser.Remote = v
	}
	if v := os.Getenv("LOOMA_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("LOOMA_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) applyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Indexer.Debounce <= 0 {
		c.Indexer.Debounce = 500 * time.Millisecond
	}
	if c.Indexer.Backstop <= 0 {
		c.Indexer.Backstop = 2 * time.Second
	}
	if c.Session.ReadyTimeout <= 0 {
		c.Session.ReadyTimeout = 10 * time.Second
	}
	if c.Session.RetryAttempts <= 0 {
		c.Session.RetryAttempts = 3
	}
	if c.Session.RetryBackoff <= 0 {
		c.Session.RetryBackoff = 2 * time.Second
	}
	if c.Settings.SidebarWidth <= 0 {
		c.Settings.SidebarWidth = 320
	}
	if c.Settings.Theme == "" {
		c.Settings.Theme = "adaptive"
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}}
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8787"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate rejects values the defaults cannot repair.
func (c *Config) Validate() error {
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want headless or headful", c.Browser.Stealth)
	}
	switch c.Settings.Theme {
	case "adaptive", "light", "dark":
	default:
		return fmt.Errorf("config: settings.theme %q: want adaptive, light or dark", c.Settings.Theme)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
