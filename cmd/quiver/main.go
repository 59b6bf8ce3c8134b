package main

import (
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"quiver/internal/backtest"
	"quiver/internal/config"
	"quiver/internal/logger"
)

func main() {
	ctx := context.Background()
	cfgPath := os.Getenv("QUIVER_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logFile, err := setupLogOutput(cfg.App.LogPath)
	if err != nil {
		log.Fatalf("初始化日志文件失败: %v", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，指标=%s）", cfg.App.Env, cfg.Strategy.Indicator)

	store, err := backtest.NewStore(cfg.Data.Root)
	if err != nil {
		log.Fatalf("初始化 K 线库失败: %v", err)
	}
	defer store.Close()

	results, err := backtest.NewResultStore(cfg.Backtest.ResultsRoot)
	if err != nil {
		log.Fatalf("初始化结果库失败: %v", err)
	}

	svc, err := backtest.NewService(backtest.ServiceConfig{
		Store:           store,
		Sources:         map[string]backtest.CandleSource{"binance": backtest.NewBinanceSource()},
		DefaultExchange: cfg.Data.Exchange,
		RateLimitPerMin: cfg.Data.RateLimitPerMin,
		MaxBatch:        cfg.Data.MaxBatch,
		MaxConcurrent:   cfg.Data.MaxConcurrent,
	})
	if err != nil {
		log.Fatalf("初始化拉取服务失败: %v", err)
	}
	svc.SetContext(ctx)

	sim, err := backtest.NewSimulator(backtest.SimulatorConfig{
		CandleStore:   store,
		ResultStore:   results,
		Fetcher:       svc,
		Defaults:      cfg.Strategy,
		MaxConcurrent: cfg.Backtest.MaxConcurrent,
	})
	if err != nil {
		log.Fatalf("初始化模拟器失败: %v", err)
	}
	sim.SetContext(ctx)

	server, err := backtest.NewHTTPServer(backtest.HTTPConfig{
		Addr:      cfg.App.HTTPAddr,
		Svc:       svc,
		Simulator: sim,
		Results:   results,
	})
	if err != nil {
		log.Fatalf("初始化 HTTP 服务失败: %v", err)
	}
	logger.Infof("HTTP 服务监听 %s", cfg.App.HTTPAddr)
	if err := server.Run(); err != nil {
		log.Fatalf("运行失败: %v", err)
	}
}

func setupLogOutput(path string) (*os.File, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	dir := filepath.Dir(trimmed)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	mw := io.MultiWriter(os.Stdout, file)
	log.SetOutput(mw)
	logger.SetOutput(mw)
	return file, nil
}
