package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Database drivers understood by the store.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Config represents the global ~/.flowchat/config.toml.
type Config struct {
	DefaultInstance string   `toml:"default_instance"`
	Database        Database `toml:"database"`
	HTTP            HTTP     `toml:"http"`
	Dispatch        Dispatch `toml:"dispatch"`
	Log             Log      `toml:"log"`
}

// Database selects the store backend. An empty DSN with sqlite3 means the
// instance's own database file.
type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// HTTP configures the JSON API. An empty Listen disables it.
type HTTP struct {
	Listen string `toml:"listen"`
}

// Dispatch tunes outbound delivery.
type Dispatch struct {
	Timeout Duration `toml:"timeout"`
}

// Log configures the daemon logger.
type Log struct {
	Level string `toml:"level"`
}

// Duration is a time.Duration written as a string such as "30s".
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultInstance: "main",
		Database:        Database{Driver: DriverSQLite},
		HTTP:            HTTP{Listen: "127.0.0.1:8088"},
		Dispatch:        Dispatch{Timeout: Duration{30 * time.Second}},
		Log:             Log{Level: "info"},
	}
}

// Load reads config from the given path. Keys absent from the file keep
// their default values. Returns an error if the file is missing.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault reads the config at path, falling back to Default when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}
	if c.Dispatch.Timeout.Duration < 0 {
		return fmt.Errorf("dispatch.timeout must not be negative")
	}
	return nil
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
