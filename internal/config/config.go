// Package config loads and persists client settings.
//
// Settings live in a TOML file in the user's home directory and can be
// overridden per-run through MTGAOVERLAY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v10"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// DefaultHost is the stats API endpoint.
const DefaultHost = "https://www.17lands.com"

// fileName is the settings file under the user's home directory.
const fileName = ".mtgaoverlay.toml"

// ErrNoToken indicates no client token is configured yet.
var ErrNoToken = errors.New("config: no client token set")

// Config is the persisted client configuration.
type Config struct {
	// Token authenticates submissions to the stats API. It must be a
	// canonical UUID.
	Token string `toml:"token" env:"TOKEN"`

	// Host overrides the stats API endpoint.
	Host string `toml:"host,omitempty" env:"HOST"`

	// LogFile overrides Arena log discovery.
	LogFile string `toml:"log_file,omitempty" env:"LOGFILE"`

	// CardDataURL overrides the card data source for the overlay.
	CardDataURL string `toml:"card_data_url,omitempty" env:"CARD_DATA_URL"`

	// Overlay disables the draft overlay when false.
	Overlay bool `toml:"overlay" env:"OVERLAY"`
}

// Path returns the settings file location.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, fileName), nil
}

// Load reads the settings file and applies environment overrides. A
// missing file yields defaults, not an error, so first runs work.
func Load() (Config, error) {
	cfg := Config{
		Host:    DefaultHost,
		Overlay: true,
	}

	path, err := Path()
	if err != nil {
		return cfg, err
	}
	if err := loadFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "MTGAOVERLAY_"}); err != nil {
		return cfg, fmt.Errorf("reading environment: %w", err)
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// Save writes the settings file, creating it with user-only permissions
// since it holds the client token.
func (c Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ValidateToken checks that the configured token is a canonical UUID.
func (c Config) ValidateToken() error {
	if c.Token == "" {
		return ErrNoToken
	}
	if _, err := uuid.Parse(c.Token); err != nil {
		return fmt.Errorf("config: token is not a valid UUID: %w", err)
	}
	return nil
}

// NewToken generates a fresh client token.
func NewToken() string {
	return uuid.NewString()
}
