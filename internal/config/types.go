package config

// Config 是 quiver 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Backtest BacktestConfig `toml:"backtest"`
	Strategy StrategyConfig `toml:"strategy"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// DataConfig 控制 K 线拉取。
type DataConfig struct {
	Root            string `toml:"root"`     // K 线 sqlite 存放目录
	Exchange        string `toml:"exchange"` // 默认数据源
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
	MaxBatch        int    `toml:"max_batch"`
	MaxConcurrent   int    `toml:"max_concurrent"`
}

// BacktestConfig 控制回测结果持久化与并发。
type BacktestConfig struct {
	ResultsRoot   string `toml:"results_root"`
	MaxConcurrent int    `toml:"max_concurrent"`
}

// StrategyConfig 是未在请求里覆写时的策略默认值。
type StrategyConfig struct {
	Ticker             string  `toml:"ticker"`
	InitialCapital     float64 `toml:"initial_capital"`
	TransactionCostPct float64 `toml:"transaction_cost_percent"`
	Compounding        bool    `toml:"compounding"`
	Indicator          string  `toml:"indicator"`
	IndicatorParameter int     `toml:"indicator_parameter"`
	Timeframe          string  `toml:"timeframe"` // daily | weekly | monthly
	EntryThreshold     float64 `toml:"entry_threshold"`
	ExitThreshold      float64 `toml:"exit_threshold"`
}
