package config

import (
	"fmt"
	"os"
	"strings"
)

const (
	envBaseURL  = "MGDL_BASE_URL"
	envMangaDir = "MGDL_MANGA_DIR"
)

func (c *Config) normalize() error {
	if value, ok := os.LookupEnv(envBaseURL); ok && strings.TrimSpace(value) != "" {
		c.BaseURL = value
	}
	if value, ok := os.LookupEnv(envMangaDir); ok && strings.TrimSpace(value) != "" {
		c.MangaDir = value
	}

	var err error
	if strings.TrimSpace(c.MangaDir) == "" {
		c.MangaDir = defaultMangaDir
	}
	if c.MangaDir, err = expandPath(c.MangaDir); err != nil {
		return fmt.Errorf("manga_dir: %w", err)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if c.DataDir, err = expandPath(c.DataDir); err != nil {
		return fmt.Errorf("data_dir: %w", err)
	}
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")

	c.Store.Driver = strings.ToLower(strings.TrimSpace(c.Store.Driver))
	if c.Store.Driver == "" {
		c.Store.Driver = defaultStoreDriver
	}

	c.Fetch.UserAgent = strings.TrimSpace(c.Fetch.UserAgent)
	if c.Fetch.UserAgent == "" {
		c.Fetch.UserAgent = defaultUserAgent
	}
	if c.Fetch.RateLimitMarker == "" {
		c.Fetch.RateLimitMarker = defaultRateLimitMarker
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}
