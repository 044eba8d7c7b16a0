package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.chatline/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	LogLevel       string `toml:"log_level"`
	View           View   `toml:"view"`
}

// View configures the chat view.
type View struct {
	// SearchLimit caps the number of search matches per query.
	SearchLimit int `toml:"search_limit"`
	// WatchIntervalMS is how often the database is polled for commits made
	// by other processes.
	WatchIntervalMS int  `toml:"watch_interval_ms"`
	MarkSeenOnOpen  bool `toml:"mark_seen_on_open"`
	ShowSeparator   bool `toml:"show_separator"`
}

// WatchInterval returns WatchIntervalMS as a duration.
func (v View) WatchInterval() time.Duration {
	return time.Duration(v.WatchIntervalMS) * time.Millisecond
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		View: View{
			SearchLimit:     500,
			WatchIntervalMS: 500,
			MarkSeenOnOpen:  true,
			ShowSeparator:   true,
		},
	}
}

// Load reads config from the given path on top of the defaults. Returns nil
// config and error if file missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.View.SearchLimit <= 0 {
		cfg.View.SearchLimit = Default().View.SearchLimit
	}
	if cfg.View.WatchIntervalMS <= 0 {
		cfg.View.WatchIntervalMS = Default().View.WatchIntervalMS
	}
	return cfg, nil
}

// LoadOrDefault is Load, falling back to Default when the file does not
// exist. Other errors, such as a malformed file, are returned.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
