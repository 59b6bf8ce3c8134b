// Package report 汇总引擎产出的绩效指标，金额累加走 decimal 避免浮点漂移。
package report

import (
	"github.com/shopspring/decimal"

	"quiver/internal/engine"
)

// Stats 是一次推演的汇总指标。
type Stats struct {
	FinalCapital   float64 `json:"final_capital"` // 裸现金，不含未平仓市值
	FinalEquity    float64 `json:"final_equity"`  // 最后一个资金曲线点
	Profit         float64 `json:"profit"`
	ReturnPct      float64 `json:"return_pct"`
	Trades         int     `json:"trades"`
	RoundTrips     int     `json:"round_trips"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	TotalFees      float64 `json:"total_fees"`
	OpenPosition   bool    `json:"open_position"` // 序列结束时是否仍持仓
}

// Summarize 从 Result 计算汇总指标。
func Summarize(res engine.Result, initialCapital float64) Stats {
	stats := Stats{
		FinalCapital: res.FinalCapital,
		Trades:       len(res.Trades),
	}
	if n := len(res.Equity); n > 0 {
		stats.FinalEquity = res.Equity[n-1].Equity
	} else {
		stats.FinalEquity = res.FinalCapital
	}

	fees := decimal.Zero
	for _, t := range res.Trades {
		fees = fees.Add(decimal.NewFromFloat(t.Cost))
	}
	stats.TotalFees, _ = fees.Float64()

	// 逐对配对 BUY/SELL 统计回合胜负；尾部未配对的 BUY 即未平仓。
	var entry *engine.Trade
	for i := range res.Trades {
		t := res.Trades[i]
		switch t.Side {
		case engine.SideBuy:
			entry = &res.Trades[i]
		case engine.SideSell:
			if entry == nil {
				continue
			}
			stats.RoundTrips++
			bought := decimal.NewFromFloat(entry.Price).
				Mul(decimal.NewFromInt(entry.Quantity)).
				Add(decimal.NewFromFloat(entry.Cost))
			sold := decimal.NewFromFloat(t.Price).
				Mul(decimal.NewFromInt(t.Quantity)).
				Sub(decimal.NewFromFloat(t.Cost))
			if sold.GreaterThan(bought) {
				stats.Wins++
			}
			entry = nil
		}
	}
	stats.OpenPosition = entry != nil
	if stats.RoundTrips > 0 {
		stats.WinRate = float64(stats.Wins) / float64(stats.RoundTrips)
	}

	if initialCapital > 0 {
		profit := decimal.NewFromFloat(stats.FinalEquity).Sub(decimal.NewFromFloat(initialCapital))
		stats.Profit, _ = profit.Float64()
		ret := profit.Div(decimal.NewFromFloat(initialCapital))
		stats.ReturnPct, _ = ret.Float64()
	}

	peak := 0.0
	for _, p := range res.Equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > stats.MaxDrawdownPct {
				stats.MaxDrawdownPct = dd
			}
		}
	}
	return stats
}
