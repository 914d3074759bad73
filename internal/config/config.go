// Package config loads and validates the YAML configuration for backtest
// and sweep runs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/backrun/internal/analytics"
	"github.com/quantlab/backrun/internal/quality"
)

// Config is the complete run configuration.
type Config struct {
	// Execution assumptions shared by all jobs unless overridden.
	InitialCapital float64 `yaml:"initial_capital"`
	Commission     float64 `yaml:"commission"` // flat fraction; overrides exchange schedule when > 0
	Slippage       float64 `yaml:"slippage"`
	Exchange       string  `yaml:"exchange"`

	// Data quality gating.
	DataQualityThreshold float64 `yaml:"data_quality_threshold"`
	FailOnQuality        bool    `yaml:"fail_on_quality"`

	// Batch settings.
	Workers   int    `yaml:"workers"`
	OutputDir string `yaml:"output_dir"`

	// Optional integrations; empty means disabled.
	MetricsAddr string `yaml:"metrics_addr"`
	RedisAddr   string `yaml:"redis_addr"`
	PostgresDSN string `yaml:"postgres_dsn"`

	Quality  quality.Config   `yaml:"quality"`
	Analyzer analytics.Config `yaml:"analyzer"`

	Jobs []JobSpec `yaml:"jobs"`
}

// JobSpec describes one sweep job in the config file.
type JobSpec struct {
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`
	BarsFile  string `yaml:"bars_file"`

	// Per-job overrides; zero values inherit the top-level settings.
	InitialCapital float64 `yaml:"initial_capital"`
	Slippage       float64 `yaml:"slippage"`
	Exchange       string  `yaml:"exchange"`

	// Reference strategy parameters.
	FastPeriod int `yaml:"fast_period"`
	SlowPeriod int `yaml:"slow_period"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		InitialCapital:       10000,
		Exchange:             "binance",
		DataQualityThreshold: 0.95,
		OutputDir:            "./artifacts",
		Quality:              quality.DefaultConfig(),
		Analyzer:             analytics.DefaultConfig(),
	}
}

// Load reads and validates a config file, applying defaults for unset
// sections.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Validate enforces the configuration surface contract.
func (c *Config) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be > 0, got %g", c.InitialCapital)
	}
	if c.Commission < 0 {
		return fmt.Errorf("commission must be >= 0, got %g", c.Commission)
	}
	if c.Slippage < 0 {
		return fmt.Errorf("slippage must be >= 0, got %g", c.Slippage)
	}
	if c.DataQualityThreshold < 0 || c.DataQualityThreshold > 1 {
		return fmt.Errorf("data_quality_threshold must be in [0,1], got %g", c.DataQualityThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}

	for i, job := range c.Jobs {
		if job.Symbol == "" {
			return fmt.Errorf("jobs[%d]: symbol is required", i)
		}
		if job.Timeframe == "" {
			return fmt.Errorf("jobs[%d]: timeframe is required", i)
		}
		if job.BarsFile == "" {
			return fmt.Errorf("jobs[%d]: bars_file is required", i)
		}
	}
	return nil
}
