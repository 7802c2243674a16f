// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as addresses and logging levels.
type App struct {
	Name        string `yaml:"name"`
	MetricsAddr string `yaml:"metrics_addr"`
	APIAddr     string `yaml:"api_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Feed describes the market data source feeding the tick store.
type Feed struct {
	Provider string   `yaml:"provider"` // "binance" or "stub"
	Symbols  []string `yaml:"symbols"`
}

// Storage bounds the in-memory tick buffers and the durable Postgres backing.
type Storage struct {
	MaxTicksPerSymbol int    `yaml:"max_ticks_per_symbol"`
	RetentionHours    int    `yaml:"retention_hours"`
	PostgresDSN       string `yaml:"postgres_dsn"`
}

// Resample lists the bar intervals to maintain, keyed by display name.
type Resample struct {
	Intervals  map[string]int `yaml:"intervals"` // name -> seconds
	TickWindow int            `yaml:"tick_window"`
	LoopMs     int            `yaml:"loop_ms"`
}

// Analytics groups the statistical tunables shared by the pair engines.
type Analytics struct {
	ZScoreWindow      int `yaml:"zscore_window"`
	CorrelationWindow int `yaml:"correlation_window"`
	ADFMaxLag         int `yaml:"adf_max_lag"`
}

// Alerts controls the evaluation cadence and the per-rule cooldown.
type Alerts struct {
	CheckMs         int `yaml:"check_ms"`
	CooldownSeconds int `yaml:"cooldown_seconds"`
}

// Backtest carries the default thresholds for the mean-reversion simulator.
type Backtest struct {
	EntryThreshold float64 `yaml:"entry_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App       App       `yaml:"app"`
	Feed      Feed      `yaml:"feed"`
	Storage   Storage   `yaml:"storage"`
	Resample  Resample  `yaml:"resample"`
	Analytics Analytics `yaml:"analytics"`
	Alerts    Alerts    `yaml:"alerts"`
	Backtest  Backtest  `yaml:"backtest"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		App: App{
			Name:        "pairwatch",
			MetricsAddr: ":9109",
			APIAddr:     ":8080",
			LogLevel:    "info",
		},
		Feed: Feed{
			Provider: "binance",
			Symbols:  []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT"},
		},
		Storage: Storage{
			MaxTicksPerSymbol: 100_000,
			RetentionHours:    24,
		},
		Resample: Resample{
			Intervals:  map[string]int{"1s": 1, "1m": 60, "5m": 300},
			TickWindow: 10_000,
			LoopMs:     500,
		},
		Analytics: Analytics{
			ZScoreWindow:      10,
			CorrelationWindow: 50,
			ADFMaxLag:         1,
		},
		Alerts: Alerts{
			CheckMs:         500,
			CooldownSeconds: 60,
		},
		Backtest: Backtest{
			EntryThreshold: 2.0,
			ExitThreshold:  0.0,
		},
	}
}

// Load reads a YAML file from disk and hydrates a Config struct on top of the defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	cfg := Default()
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that would wedge a background loop.
func (c *Config) Validate() error {
	if c.Storage.MaxTicksPerSymbol <= 0 {
		return fmt.Errorf("storage.max_ticks_per_symbol must be positive")
	}
	if len(c.Resample.Intervals) == 0 {
		return fmt.Errorf("resample.intervals must not be empty")
	}
	for name, secs := range c.Resample.Intervals {
		if secs <= 0 {
			return fmt.Errorf("resample interval %q must be positive", name)
		}
	}
	if c.Analytics.ZScoreWindow <= 0 || c.Analytics.CorrelationWindow <= 0 {
		return fmt.Errorf("analytics windows must be positive")
	}
	if c.Alerts.CooldownSeconds < 0 {
		return fmt.Errorf("alerts.cooldown_seconds must not be negative")
	}
	return nil
}

// Retention returns the tick retention horizon as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// Cooldown returns the alert cooldown as a duration.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Alerts.CooldownSeconds) * time.Second
}

// IntervalNames returns the configured interval names sorted by bucket length.
func (c *Config) IntervalNames() []string {
	names := make([]string, 0, len(c.Resample.Intervals))
	for name := range c.Resample.Intervals {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return c.Resample.Intervals[names[i]] < c.Resample.Intervals[names[j]]
	})
	return names
}
