// Package config loads runtime settings from an optional HJSON file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	hjson "github.com/hjson/hjson-go/v4"
)

// Config holds everything the cache engine needs at startup.
type Config struct {
	CacheDir         string   `json:"cache_dir"`
	RateLimitDelayMS int      `json:"rate_limit_delay_ms"`
	UserAgent        string   `json:"user_agent"`
	WarmTickers      []string `json:"warm_tickers"`
	WarmWorkers      int      `json:"warm_workers"`
	DatabaseURL      string   `json:"database_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		CacheDir:         "data/cache",
		RateLimitDelayMS: 200,
		WarmWorkers:      3,
	}
}

// Load reads a config file (HJSON, so comments and loose syntax are fine)
// and applies environment overrides. A missing file is not an error; the
// defaults apply.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			if err := hjson.Unmarshal(raw, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	if v := os.Getenv("QUARTERFACTS_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("QUARTERFACTS_USER_AGENT"); v != "" {
		cfg.UserAgent = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("QUARTERFACTS_RATE_LIMIT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.RateLimitDelayMS = ms
		}
	}

	return cfg, nil
}

// RateLimitDelay converts the configured delay to a duration.
func (c Config) RateLimitDelay() time.Duration {
	return time.Duration(c.RateLimitDelayMS) * time.Millisecond
}
