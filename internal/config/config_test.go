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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
app:
  log_level: debug
  http_addr: ":8088"
data:
  root: /tmp/klines
strategy:
  ticker: BTCUSDT
  initial_capital: 5000
  transaction_cost_percent: 0.5
  compounding: true
  indicator: EMA
  indicator_parameter: 20
  timeframe: weekly
  entry_threshold: 25
  exit_threshold: 75
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8088", cfg.App.HTTPAddr)
	assert.Equal(t, "/tmp/klines", cfg.Data.Root)
	assert.Equal(t, "BTCUSDT", cfg.Strategy.Ticker)
	assert.Equal(t, 5000.0, cfg.Strategy.InitialCapital)
	assert.Equal(t, 0.5, cfg.Strategy.TransactionCostPct)
	assert.True(t, cfg.Strategy.Compounding)
	assert.Equal(t, "EMA", cfg.Strategy.Indicator)
	assert.Equal(t, 20, cfg.Strategy.IndicatorParameter)
	assert.Equal(t, "weekly", cfg.Strategy.Timeframe)
	assert.Equal(t, 25.0, cfg.Strategy.EntryThreshold)
	assert.Equal(t, 75.0, cfg.Strategy.ExitThreshold)

	// 未写的字段回落到默认值。
	assert.Equal(t, "binance", cfg.Data.Exchange)
	assert.Equal(t, 480, cfg.Data.RateLimitPerMin)
	assert.Equal(t, 1000, cfg.Data.MaxBatch)
	assert.Equal(t, "data/results", cfg.Backtest.ResultsRoot)
	assert.Equal(t, 1, cfg.Backtest.MaxConcurrent)
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  env: test\n"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9980", cfg.App.HTTPAddr)
	assert.Equal(t, 10000.0, cfg.Strategy.InitialCapital)
	assert.Equal(t, "RSI", cfg.Strategy.Indicator)
	assert.Equal(t, 14, cfg.Strategy.IndicatorParameter)
	assert.Equal(t, "daily", cfg.Strategy.Timeframe)
	assert.Equal(t, 30.0, cfg.Strategy.EntryThreshold)
	assert.Equal(t, 70.0, cfg.Strategy.ExitThreshold)
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"负手续费": `
strategy:
  transaction_cost_percent: -1
`,
		"阈值倒挂": `
strategy:
  entry_threshold: 80
  exit_threshold: 70
`,
		"指标不支持": `
strategy:
  indicator: vwap
`,
		"周期不支持": `
strategy:
  timeframe: hourly
`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}
