package looma

import (
	"fmt"
	"log/slog"

	"github.com/hazyhaar/looma/indexer"
	"github.com/hazyhaar/looma/looma/internal/config"
)

// Config is the top-level looma configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// IndexerConfig sets the engine's timing.
type IndexerConfig = config.IndexerConfig

// SessionConfig controls readiness and initialization retry.
type SessionConfig = config.SessionConfig

// Settings are user presentation preferences carried for the host.
type Settings = config.Settings

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// ServerConfig is the control API listener.
type ServerConfig = config.ServerConfig

// LoadConfig reads path (or starts from defaults when empty), after
// loading .env and applying LOOMA_* overrides.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// OptionsFromConfig maps a configuration onto Session options and builds
// its sinks.
func OptionsFromConfig(cfg *Config, logger *slog.Logger) (Options, error) {
	sinks, err := SinksFromConfig(cfg.Sinks, logger)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Indexer: indexer.Config{
			Debounce: cfg.Indexer.Debounce,
			Backstop: cfg.Indexer.Backstop,
			Logger:   logger,
		},
		ReadyTimeout:  cfg.Session.ReadyTimeout,
		RetryAttempts: cfg.Session.RetryAttempts,
		RetryBackoff:  cfg.Session.RetryBackoff,
		Settings:      cfg.Settings,
		Logger:        logger,
		Sinks:         sinks,
	}, nil
}

// ParseLevel maps a config log level to slog.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("looma: log level %q: %w", s, err)
	}
	return l, nil
}
