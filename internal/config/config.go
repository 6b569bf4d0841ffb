// Package config loads sheetsql settings from a TOML file, .env and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite"

	defaultModel = "claude-haiku-4-5"
	fileName     = "sheetsql.toml"
)

// Config holds all sheetsql configuration.
type Config struct {
	General   GeneralConfig   `toml:"general"`
	Assistant AssistantConfig `toml:"assistant"`
	Server    ServerConfig    `toml:"server"`
}

// GeneralConfig holds storage settings.
type GeneralConfig struct {
	DataDir string `toml:"data_dir"`
	Driver  string `toml:"driver"`
}

// AssistantConfig holds Anthropic API settings.
type AssistantConfig struct {
	APIKey         string `toml:"api_key,omitempty"`
	BaseURL        string `toml:"base_url,omitempty"`
	Model          string `toml:"model"`
	MaxTokens      int64  `toml:"max_tokens"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// ServerConfig holds web server settings.
type ServerConfig struct {
	Port              int `toml:"port"`
	MaxUploadMB       int `toml:"max_upload_mb"`
	SessionTTLMinutes int `toml:"session_ttl_minutes"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		General: GeneralConfig{
			DataDir: "tmpdata/",
			Driver:  DriverDuckDB,
		},
		Assistant: AssistantConfig{
			Model:          defaultModel,
			MaxTokens:      2048,
			TimeoutSeconds: 120,
		},
		Server: ServerConfig{
			Port:              3000,
			MaxUploadMB:       32,
			SessionTTLMinutes: 120,
		},
	}
}

// Path returns the config file location inside dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, fileName)
}

// Load reads the config file at path, returning defaults if it doesn't exist.
// Values from .env and the process environment override the file.
func Load(path string) (Config, error) {
	cfg := Default()

	// .env is optional
	_ = godotenv.Load()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, fmt.Errorf("parsing config: %w", err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the parent directory. The file
// may hold an API key, so it is only readable by the owner.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists reports whether a config file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Assistant.APIKey = key
	}
	if model := os.Getenv("SHEETSQL_MODEL"); model != "" {
		cfg.Assistant.Model = model
	}
	if driver := os.Getenv("SHEETSQL_DRIVER"); driver != "" {
		cfg.General.Driver = driver
	}
	if base := os.Getenv("SHEETSQL_BASE_URL"); base != "" {
		cfg.Assistant.BaseURL = base
	}
}

// Validate checks the values that cannot be defaulted.
func (c *Config) Validate() error {
	c.General.Driver = strings.ToLower(strings.TrimSpace(c.General.Driver))
	switch c.General.Driver {
	case DriverDuckDB, DriverSQLite:
	default:
		return fmt.Errorf("unknown driver %q (want %s or %s)", c.General.Driver, DriverDuckDB, DriverSQLite)
	}
	if c.Assistant.Model == "" {
		return fmt.Errorf("assistant model cannot be empty")
	}
	if c.Assistant.MaxTokens <= 0 {
		return fmt.Errorf("assistant max_tokens must be positive, got %d", c.Assistant.MaxTokens)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("server max_upload_mb must be positive, got %d", c.Server.MaxUploadMB)
	}
	return nil
}

// Timeout returns the per-request assistant timeout.
func (a AssistantConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle web session is kept.
func (s ServerConfig) SessionTTL() time.Duration {
	return time.Duration(s.SessionTTLMinutes) * time.Minute
}

// MaxUploadBytes returns the multipart upload limit.
func (s ServerConfig) MaxUploadBytes() int64 {
	return int64(s.MaxUploadMB) << 20
}
