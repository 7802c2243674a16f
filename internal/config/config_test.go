package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Retention() != 24*time.Hour {
		t.Fatalf("expected 24h retention, got %s", cfg.Retention())
	}
	if cfg.Cooldown() != 60*time.Second {
		t.Fatalf("expected 60s cooldown, got %s", cfg.Cooldown())
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  log_level: debug
feed:
  provider: stub
  symbols: [AAA, BBB]
alerts:
  cooldown_seconds: 5
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.LogLevel != "debug" {
		t.Fatalf("expected debug log level, got %s", cfg.App.LogLevel)
	}
	if cfg.Feed.Provider != "stub" || len(cfg.Feed.Symbols) != 2 {
		t.Fatalf("feed override not applied: %+v", cfg.Feed)
	}
	if cfg.Cooldown() != 5*time.Second {
		t.Fatalf("expected 5s cooldown, got %s", cfg.Cooldown())
	}
	// untouched defaults survive
	if cfg.Storage.MaxTicksPerSymbol != 100_000 {
		t.Fatalf("default tick cap lost: %d", cfg.Storage.MaxTicksPerSymbol)
	}
}

func TestIntervalNamesSortedByLength(t *testing.T) {
	cfg := Default()
	names := cfg.IntervalNames()
	if len(names) != 3 || names[0] != "1s" || names[1] != "1m" || names[2] != "5m" {
		t.Fatalf("unexpected interval order: %v", names)
	}
}

func TestValidateRejectsBadIntervals(t *testing.T) {
	cfg := Default()
	cfg.Resample.Intervals = map[string]int{"bad": 0}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for zero-length interval")
	}
}
