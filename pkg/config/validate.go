package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSource(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	if err := c.validateFetch(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateSource() error {
	if c.BaseURL == "" {
		return nil
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("base_url: %q must be an absolute http(s) url", c.BaseURL)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Driver {
	case "duckdb", "sqlite":
		return nil
	}
	return fmt.Errorf("store.driver: unsupported driver %q (duckdb or sqlite)", c.Store.Driver)
}

func (c *Config) validateFetch() error {
	f := c.Fetch
	switch {
	case f.MaxAttempts < 1:
		return errors.New("fetch.max_attempts: must be >= 1")
	case f.InitialDelayMS < 0:
		return errors.New("fetch.initial_delay_ms: must be >= 0")
	case f.MaxDelayMS < 0:
		return errors.New("fetch.max_delay_ms: must be >= 0")
	case f.Concurrency < 1:
		return errors.New("fetch.concurrency: must be >= 1")
	case f.DiscoveryConcurrency < 1:
		return errors.New("fetch.discovery_concurrency: must be >= 1")
	case f.TimeoutSeconds < 1:
		return errors.New("fetch.timeout_seconds: must be >= 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported format %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported level %q", c.Logging.Level)
	}
	return nil
}
