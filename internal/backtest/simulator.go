package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quiver/internal/config"
	"quiver/internal/engine"
	"quiver/internal/logger"
	"quiver/internal/market"
	"quiver/internal/report"
	"quiver/internal/signal"
)

// Notifier 用于运行完成后的推送。
type Notifier interface {
	SendText(text string) error
}

// SimulatorConfig 装配模拟器的依赖。
type SimulatorConfig struct {
	CandleStore    *Store
	ResultStore    *ResultStore
	Fetcher        *Service
	Defaults       config.StrategyConfig
	SourceInterval string // 数据源 K 线周期，默认 1d
	MaxConcurrent  int
	Notifier       Notifier
}

// Simulator 把历史 K 线 + 阈值规则推演为成交记录与资金曲线。
// 推演本身交给 engine，这里只负责取数、重采样、算信号与落库。
type Simulator struct {
	store          *Store
	results        *ResultStore
	fetcher        *Service
	defaults       config.StrategyConfig
	sourceInterval string
	notifier       Notifier

	sem     chan struct{}
	baseCtx context.Context
}

func NewSimulator(cfg SimulatorConfig) (*Simulator, error) {
	if cfg.CandleStore == nil {
		return nil, fmt.Errorf("candle store 不能为空")
	}
	if cfg.ResultStore == nil {
		return nil, fmt.Errorf("result store 不能为空")
	}
	interval := strings.ToLower(strings.TrimSpace(cfg.SourceInterval))
	if interval == "" {
		interval = "1d"
	}
	if _, err := intervalMillis(interval); err != nil {
		return nil, err
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Simulator{
		store:          cfg.CandleStore,
		results:        cfg.ResultStore,
		fetcher:        cfg.Fetcher,
		defaults:       cfg.Defaults,
		sourceInterval: interval,
		notifier:       cfg.Notifier,
		sem:            make(chan struct{}, maxConcurrent),
		baseCtx:        context.Background(),
	}, nil
}

// SetContext 注入宿主 ctx。
func (s *Simulator) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

// resolveConfig 把请求与默认值合并成参数快照。
func (s *Simulator) resolveConfig(req RunRequest) (RunConfig, error) {
	if req.Symbol == "" {
		return RunConfig{}, fmt.Errorf("symbol 不能为空")
	}
	if req.EndTS <= req.StartTS {
		return RunConfig{}, fmt.Errorf("start/end 非法")
	}
	cfg := RunConfig{
		Symbol:             strings.ToUpper(req.Symbol),
		StartTS:            req.StartTS,
		EndTS:              req.EndTS,
		InitialCapital:     req.InitialCapital,
		TransactionCostPct: s.defaults.TransactionCostPct,
		Compounding:        s.defaults.Compounding,
		Indicator:          req.Indicator,
		IndicatorParameter: req.IndicatorParameter,
		Timeframe:          req.Timeframe,
		EntryThreshold:     req.EntryThreshold,
		ExitThreshold:      req.ExitThreshold,
	}
	if req.TransactionCostPct != nil {
		cfg.TransactionCostPct = *req.TransactionCostPct
	}
	if req.Compounding != nil {
		cfg.Compounding = *req.Compounding
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = s.defaults.InitialCapital
	}
	if cfg.Indicator == "" {
		cfg.Indicator = s.defaults.Indicator
	}
	if cfg.IndicatorParameter <= 0 {
		cfg.IndicatorParameter = s.defaults.IndicatorParameter
	}
	if cfg.Timeframe == "" {
		cfg.Timeframe = s.defaults.Timeframe
	}
	if cfg.EntryThreshold == 0 {
		cfg.EntryThreshold = s.defaults.EntryThreshold
	}
	if cfg.ExitThreshold == 0 {
		cfg.ExitThreshold = s.defaults.ExitThreshold
	}

	if cfg.InitialCapital <= 0 {
		return RunConfig{}, fmt.Errorf("initial capital 必须为正数")
	}
	if cfg.TransactionCostPct < 0 {
		return RunConfig{}, fmt.Errorf("transaction cost 不能为负")
	}
	if cfg.EntryThreshold >= cfg.ExitThreshold {
		return RunConfig{}, fmt.Errorf("entry threshold 必须小于 exit threshold")
	}
	ind, err := signal.ParseIndicator(cfg.Indicator)
	if err != nil {
		return RunConfig{}, err
	}
	cfg.Indicator = string(ind)
	g, err := market.ParseGranularity(cfg.Timeframe)
	if err != nil {
		return RunConfig{}, err
	}
	cfg.Timeframe = string(g)
	return cfg, nil
}

// StartRun 创建回测任务并立即返回，推演在后台进行。
func (s *Simulator) StartRun(req RunRequest) (Run, error) {
	cfg, err := s.resolveConfig(req)
	if err != nil {
		return Run{}, err
	}
	run := Run{
		ID:        uuid.NewString(),
		Symbol:    cfg.Symbol,
		Status:    RunStatusPending,
		StartTS:   cfg.StartTS,
		EndTS:     cfg.EndTS,
		Indicator: cfg.Indicator,
		Timeframe: cfg.Timeframe,
		Config:    cfg,
	}
	if err := s.results.InsertRun(s.baseCtx, run); err != nil {
		return Run{}, err
	}
	go s.runLoop(run.ID, cfg)
	return run, nil
}

func (s *Simulator) runLoop(runID string, cfg RunConfig) {
	select {
	case s.sem <- struct{}{}:
	default:
		logger.Warnf("[backtest] run %s 等待可用 worker", runID)
		s.sem <- struct{}{}
	}
	defer func() { <-s.sem }()

	ctx := s.baseCtx
	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "准备数据…")
	if err := s.process(ctx, runID, cfg); err != nil {
		logger.Warnf("[backtest] run %s 失败: %v", runID, err)
		_ = s.results.FailRun(ctx, runID, err)
	}
}

// process 执行取数 → 重采样 → 信号 → 推演 → 落库的完整链路。
// 结构性错误（空序列、缺字段）直接失败，不落部分结果。
func (s *Simulator) process(ctx context.Context, runID string, cfg RunConfig) error {
	if s.fetcher != nil {
		if err := s.fetcher.EnsureRange(ctx, cfg.Symbol, s.sourceInterval, cfg.StartTS, cfg.EndTS); err != nil {
			// 拉取失败不致命：本地已有的部分数据仍可能覆盖区间。
			logger.Warnf("[backtest] run %s 数据补齐失败: %v", runID, err)
		}
	}
	candles, err := s.store.RangeCandles(ctx, cfg.Symbol, s.sourceInterval, cfg.StartTS, cfg.EndTS)
	if err != nil {
		return err
	}
	granularity, err := market.ParseGranularity(cfg.Timeframe)
	if err != nil {
		return err
	}
	resampled := market.Resample(candles, granularity)
	if len(resampled) == 0 {
		return fmt.Errorf("%w: %s %s 区间内没有数据", engine.ErrEmptySeries, cfg.Symbol, cfg.Timeframe)
	}

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, fmt.Sprintf("计算 %s 信号（%d 根）", cfg.Indicator, len(resampled)))
	ind, err := signal.ParseIndicator(cfg.Indicator)
	if err != nil {
		return err
	}
	series, err := signal.Compute(resampled, ind, cfg.IndicatorParameter)
	if err != nil {
		return err
	}
	bars, err := signal.Bars(resampled, series)
	if err != nil {
		return err
	}

	_ = s.results.UpdateRunStatus(ctx, runID, RunStatusRunning, "推演中…")
	result, err := engine.Simulate(bars, engine.Config{
		InitialCapital: cfg.InitialCapital,
		CostRatePct:    cfg.TransactionCostPct,
		Compounding:    cfg.Compounding,
		Rule:           engine.NewThresholdRule(cfg.EntryThreshold, cfg.ExitThreshold),
	})
	if err != nil {
		return err
	}

	stats := report.Summarize(result, cfg.InitialCapital)
	if err := s.results.CompleteRun(ctx, runID, stats, result.Trades, result.Equity); err != nil {
		return err
	}
	logger.Infof("[backtest] run %s 完成: trades=%d final=%.2f equity=%.2f", runID, stats.Trades, stats.FinalCapital, stats.FinalEquity)
	s.notify(runID, cfg, stats)
	return nil
}

func (s *Simulator) notify(runID string, cfg RunConfig, stats report.Stats) {
	if s.notifier == nil {
		return
	}
	msg := fmt.Sprintf("*回测完成* ✅\n```\nid       : %s\nsymbol   : %s\nindicator: %s(%d)\nprofit   : %.2f (%.2f%%)\nwinrate  : %.2f%% (%d/%d)\nmaxDD    : %.2f%%\nfinal    : %.2f\n```\n",
		runID, cfg.Symbol, cfg.Indicator, cfg.IndicatorParameter,
		stats.Profit, stats.ReturnPct*100,
		stats.WinRate*100, stats.Wins, stats.RoundTrips,
		stats.MaxDrawdownPct*100, stats.FinalEquity)
	if err := s.notifier.SendText(msg); err != nil {
		logger.Warnf("回测通知失败: %v", err)
	}
}

// RunResult 打包一次 run 的全部产出，供 HTTP/导出使用。
type RunResult struct {
	Run    Run                  `json:"run"`
	Trades []engine.Trade       `json:"trades"`
	Equity []engine.EquityPoint `json:"equity"`
}

// LoadResult 读取 run 及其成交与资金曲线。
func (s *Simulator) LoadResult(ctx context.Context, runID string) (RunResult, error) {
	run, err := s.results.GetRun(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	trades, err := s.results.ListTrades(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	equity, err := s.results.ListEquity(ctx, runID)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{Run: run, Trades: trades, Equity: equity}, nil
}

// waitDone 供测试同步等待任务终态。
func (s *Simulator) waitDone(ctx context.Context, runID string, timeout time.Duration) (Run, error) {
	deadline := time.Now().Add(timeout)
	for {
		run, err := s.results.GetRun(ctx, runID)
		if err != nil {
			return Run{}, err
		}
		if run.Status == RunStatusDone || run.Status == RunStatusFailed {
			return run, nil
		}
		if time.Now().After(deadline) {
			return run, errors.New("等待 run 完成超时")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
