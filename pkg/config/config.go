package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/kerbaras/mgdl/pkg/utils"
)

//go:embed sample_config.toml
var sampleConfig string

// Store selects the metadata store backend.
type Store struct {
	Driver string `toml:"driver"`
}

// Fetch contains HTTP, retry and concurrency settings.
type Fetch struct {
	MaxAttempts          int    `toml:"max_attempts"`
	InitialDelayMS       int    `toml:"initial_delay_ms"`
	MaxDelayMS           int    `toml:"max_delay_ms"`
	Concurrency          int    `toml:"concurrency"`
	DiscoveryConcurrency int    `toml:"discovery_concurrency"`
	TimeoutSeconds       int    `toml:"timeout_seconds"`
	UserAgent            string `toml:"user_agent"`
	RateLimitMarker      string `toml:"rate_limit_marker"`
}

// Batch controls multi-work operations.
type Batch struct {
	ContinueOnError bool `toml:"continue_on_error"`
}

type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for mgdl.
type Config struct {
	MangaDir string  `toml:"manga_dir"`
	DataDir  string  `toml:"data_dir"`
	BaseURL  string  `toml:"base_url"`
	Store    Store   `toml:"store"`
	Fetch    Fetch   `toml:"fetch"`
	Batch    Batch   `toml:"batch"`
	Logging  Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mgdl/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// yields the defaults. It also reports the resolved path and whether the file exists.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("mgdl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) StorePath() string {
	return filepath.Join(c.DataDir, "mgdl.db")
}

func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "mgdl.lock")
}

// RetryPolicy converts the fetch settings into the shared backoff policy.
func (c *Config) RetryPolicy() utils.Policy {
	return utils.Policy{
		MaxAttempts:  c.Fetch.MaxAttempts,
		InitialDelay: time.Duration(c.Fetch.InitialDelayMS) * time.Millisecond,
		MaxDelay:     time.Duration(c.Fetch.MaxDelayMS) * time.Millisecond,
	}
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// RequireBaseURL reports an error when no content source is configured.
func (c *Config) RequireBaseURL() error {
	if c.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/mgdl/config.toml"
		}
		return fmt.Errorf("base_url is required. Set %s or edit %s (create with 'mgdl config init')", envBaseURL, defaultPath)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
