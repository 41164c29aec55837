package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CacheDir != "data/cache" {
		t.Errorf("unexpected default cache dir %q", cfg.CacheDir)
	}
	if cfg.RateLimitDelay() != 200*time.Millisecond {
		t.Errorf("unexpected default rate limit %v", cfg.RateLimitDelay())
	}
	if cfg.WarmWorkers != 3 {
		t.Errorf("unexpected default warm workers %d", cfg.WarmWorkers)
	}
}

func TestMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.hjson"))
	if err != nil {
		t.Fatalf("missing file must fall back to defaults, got %v", err)
	}
	if cfg.CacheDir != "data/cache" {
		t.Errorf("expected defaults, got cache dir %q", cfg.CacheDir)
	}
}

func TestHJSONFileWithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarterfacts.hjson")
	body := `{
  // local override for development
  cache_dir: /tmp/qf-cache
  rate_limit_delay_ms: 500
  warm_tickers: ["AAPL", "MSFT"]
}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CacheDir != "/tmp/qf-cache" {
		t.Errorf("unexpected cache dir %q", cfg.CacheDir)
	}
	if cfg.RateLimitDelayMS != 500 {
		t.Errorf("unexpected rate limit %d", cfg.RateLimitDelayMS)
	}
	if len(cfg.WarmTickers) != 2 || cfg.WarmTickers[0] != "AAPL" {
		t.Errorf("unexpected warm tickers %v", cfg.WarmTickers)
	}
	// Unset fields keep their defaults.
	if cfg.WarmWorkers != 3 {
		t.Errorf("expected default warm workers, got %d", cfg.WarmWorkers)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("QUARTERFACTS_CACHE_DIR", "/tmp/env-cache")
	t.Setenv("QUARTERFACTS_RATE_LIMIT_MS", "50")
	t.Setenv("DATABASE_URL", "postgres://localhost/qf")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.CacheDir != "/tmp/env-cache" {
		t.Errorf("env override ignored, got %q", cfg.CacheDir)
	}
	if cfg.RateLimitDelayMS != 50 {
		t.Errorf("env rate limit ignored, got %d", cfg.RateLimitDelayMS)
	}
	if cfg.DatabaseURL != "postgres://localhost/qf" {
		t.Errorf("env database url ignored, got %q", cfg.DatabaseURL)
	}
}

func TestBadRateLimitEnvIgnored(t *testing.T) {
	t.Setenv("QUARTERFACTS_RATE_LIMIT_MS", "not-a-number")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.RateLimitDelayMS != 200 {
		t.Errorf("expected default on bad env value, got %d", cfg.RateLimitDelayMS)
	}
}
