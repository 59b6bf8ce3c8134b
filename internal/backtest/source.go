package backtest

import (
	"context"

	"quiver/internal/market"
)

// FetchRequest 描述一次远端 K 线请求（毫秒区间，End=0 表示不限制）。
type FetchRequest struct {
	Symbol   string
	Interval string
	Start    int64
	End      int64
	Limit    int
}

// CandleSource 统一不同数据源的拉取行为。
type CandleSource interface {
	Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error)
	Name() string
}
