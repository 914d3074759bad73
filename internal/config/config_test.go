package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "backrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "initial_capital: 25000\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.InDelta(t, 25000, cfg.InitialCapital, 1e-9)
	assert.InDelta(t, 0.95, cfg.DataQualityThreshold, 1e-9)
	assert.Equal(t, "binance", cfg.Exchange)
	assert.Equal(t, "./artifacts", cfg.OutputDir)
	assert.InDelta(t, 1.5, cfg.Quality.GapFactor, 1e-9)
	assert.InDelta(t, 0.02, cfg.Analyzer.RiskFreeRate, 1e-9)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
initial_capital: 50000
commission: 0.001
slippage: 0.0005
exchange: kraken
data_quality_threshold: 0.9
fail_on_quality: true
workers: 4
output_dir: /tmp/out
metrics_addr: ":9090"
redis_addr: "localhost:6379"
analyzer:
  risk_free_rate: 0.03
jobs:
  - symbol: BTCUSD
    timeframe: 1h
    bars_file: btc.csv
    fast_period: 5
    slow_period: 20
  - symbol: ETHUSD
    timeframe: 4h
    bars_file: eth.csv
    initial_capital: 10000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kraken", cfg.Exchange)
	assert.True(t, cfg.FailOnQuality)
	assert.Equal(t, 4, cfg.Workers)
	assert.InDelta(t, 0.03, cfg.Analyzer.RiskFreeRate, 1e-9)
	require.Len(t, cfg.Jobs, 2)
	assert.Equal(t, "BTCUSD", cfg.Jobs[0].Symbol)
	assert.Equal(t, 5, cfg.Jobs[0].FastPeriod)
	assert.InDelta(t, 10000, cfg.Jobs[1].InitialCapital, 1e-9)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"initial_capital":        "initial_capital: 0\n",
		"commission":             "initial_capital: 1000\ncommission: -0.1\n",
		"slippage":               "initial_capital: 1000\nslippage: -1\n",
		"data_quality_threshold": "initial_capital: 1000\ndata_quality_threshold: 1.5\n",
		"workers":                "initial_capital: 1000\nworkers: -2\n",
		"jobs[0]":                "initial_capital: 1000\njobs:\n  - timeframe: 1h\n    bars_file: x.csv\n",
	}
	for field, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.ErrorContains(t, err, field, field)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "initial_capital: [not a number\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}
