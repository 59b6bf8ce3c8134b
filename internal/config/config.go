package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"quiver/internal/market"
	"quiver/internal/signal"
)

// Load 读取 YAML 配置并套用默认值与校验。
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("配置路径不能为空")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败 (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}
	if c.Data.Root == "" {
		c.Data.Root = "data/klines"
	}
	if c.Data.Exchange == "" {
		c.Data.Exchange = "binance"
	}
	if c.Data.RateLimitPerMin <= 0 {
		c.Data.RateLimitPerMin = 480
	}
	if c.Data.MaxBatch <= 0 {
		c.Data.MaxBatch = 1000
	}
	if c.Data.MaxConcurrent <= 0 {
		c.Data.MaxConcurrent = 2
	}
	if c.Backtest.ResultsRoot == "" {
		c.Backtest.ResultsRoot = "data/results"
	}
	if c.Backtest.MaxConcurrent <= 0 {
		c.Backtest.MaxConcurrent = 1
	}
	if c.Strategy.InitialCapital <= 0 {
		c.Strategy.InitialCapital = 10000
	}
	if c.Strategy.Indicator == "" {
		c.Strategy.Indicator = "RSI"
	}
	if c.Strategy.IndicatorParameter <= 0 {
		c.Strategy.IndicatorParameter = 14
	}
	if c.Strategy.Timeframe == "" {
		c.Strategy.Timeframe = "daily"
	}
	if c.Strategy.EntryThreshold == 0 {
		c.Strategy.EntryThreshold = 30
	}
	if c.Strategy.ExitThreshold == 0 {
		c.Strategy.ExitThreshold = 70
	}
}

func validate(c *Config) error {
	if c.Strategy.TransactionCostPct < 0 {
		return fmt.Errorf("transaction_cost_percent 不能为负")
	}
	if c.Strategy.EntryThreshold >= c.Strategy.ExitThreshold {
		return fmt.Errorf("entry_threshold 必须小于 exit_threshold")
	}
	if _, err := signal.ParseIndicator(c.Strategy.Indicator); err != nil {
		return err
	}
	if _, err := market.ParseGranularity(c.Strategy.Timeframe); err != nil {
		return err
	}
	return nil
}
