package config

const (
	defaultMangaDir             = "~/manga"
	defaultDataDir              = "~/.local/share/mgdl"
	defaultStoreDriver          = "duckdb"
	defaultMaxAttempts          = 20
	defaultInitialDelayMS       = 300
	defaultConcurrency          = 16
	defaultDiscoveryConcurrency = 4
	defaultTimeoutSeconds       = 30
	defaultUserAgent            = "mgdl"
	defaultRateLimitMarker      = "error code: 1015"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		MangaDir: defaultMangaDir,
		DataDir:  defaultDataDir,
		Store: Store{
			Driver: defaultStoreDriver,
		},
		Fetch: Fetch{
			MaxAttempts:          defaultMaxAttempts,
			InitialDelayMS:       defaultInitialDelayMS,
			Concurrency:          defaultConcurrency,
			DiscoveryConcurrency: defaultDiscoveryConcurrency,
			TimeoutSeconds:       defaultTimeoutSeconds,
			UserAgent:            defaultUserAgent,
			RateLimitMarker:      defaultRateLimitMarker,
		},
		Batch: Batch{
			ContinueOnError: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
