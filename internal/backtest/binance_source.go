package backtest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2"

	"quiver/internal/market"
)

// BinanceSource 通过官方 REST /api/v3/klines 拉取现货 K 线。
type BinanceSource struct {
	client *binance.Client
}

func NewBinanceSource() *BinanceSource {
	// K 线是公开接口，不需要凭证。
	return &BinanceSource{client: binance.NewClient("", "")}
}

func (b *BinanceSource) Name() string { return "binance" }

func (b *BinanceSource) Fetch(ctx context.Context, req FetchRequest) ([]market.Candle, error) {
	if req.Symbol == "" || req.Interval == "" {
		return nil, fmt.Errorf("symbol/interval 不能为空")
	}
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	svc := b.client.NewKlinesService().
		Symbol(req.Symbol).
		Interval(req.Interval).
		Limit(limit)
	if req.Start > 0 {
		svc = svc.StartTime(req.Start)
	}
	if req.End > 0 {
		svc = svc.EndTime(req.End)
	}
	klines, err := svc.Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines 拉取失败: %w", err)
	}
	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		out = append(out, market.Candle{
			OpenTime:  k.OpenTime,
			CloseTime: k.CloseTime,
			Open:      parseFloat(k.Open),
			High:      parseFloat(k.High),
			Low:       parseFloat(k.Low),
			Close:     parseFloat(k.Close),
			Volume:    parseFloat(k.Volume),
			Trades:    k.TradeNum,
		})
	}
	return out, nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
