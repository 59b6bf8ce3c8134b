// Package engine 实现单资产、只做多的阈值策略推演：
// 一次遍历把 (时间戳, 收盘价, 信号值) 序列转成成交记录与资金曲线。
// 引擎对输入是纯函数，不做任何 I/O，可并发调用。
package engine

import (
	"fmt"
	"math"
)

// Config 是一次推演的策略参数。
type Config struct {
	InitialCapital float64
	CostRatePct    float64 // 按名义金额收取的百分比手续费，进出各收一次
	Compounding    bool    // 空仓时把资金基数重置为当前权益
	Rule           Rule    // 进出场谓词；nil 时使用 30/70 阈值
}

func (c Config) rule() Rule {
	if c.Rule != nil {
		return c.Rule
	}
	return ThresholdRule{Entry: DefaultEntryThreshold, ExitLevel: DefaultExitThreshold}
}

// validate 在主循环之前做一次结构性检查，失败即中止。
func validate(bars []Bar, cfg Config) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	if cfg.InitialCapital <= 0 {
		return fmt.Errorf("initial capital 必须为正数，当前 %v", cfg.InitialCapital)
	}
	if cfg.CostRatePct < 0 {
		return fmt.Errorf("cost rate 不能为负，当前 %v", cfg.CostRatePct)
	}
	var prevTS int64
	for i, b := range bars {
		if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return &MissingFieldError{Field: "close", Index: i}
		}
		if i > 0 && b.TS <= prevTS {
			return fmt.Errorf("第 %d 根 bar 时间戳未严格递增", i)
		}
		prevTS = b.TS
	}
	return nil
}

// Simulate 逐根推演。每根至多一次状态转换：
// 信号触发进场且空仓 → 整数股全仓买入（数量不足一股时静默跳过）；
// 信号触发离场且持仓 → 全部卖出；随后按收盘价估值。
func Simulate(bars []Bar, cfg Config) (Result, error) {
	if err := validate(bars, cfg); err != nil {
		return Result{}, err
	}
	rule := cfg.rule()

	cash := cfg.InitialCapital
	var position int64
	trades := make([]Trade, 0, 8)
	equity := make([]EquityPoint, 0, len(bars))

	for _, bar := range bars {
		price := bar.Close
		switch {
		case bar.HasSignal && rule.Enter(bar.Signal) && position == 0:
			// 数量按「名义+手续费 ≤ 现金」上限取整，现金不允许因买入转负。
			qty := int64(math.Floor(cash / (price * (1 + cfg.CostRatePct/100))))
			if qty >= 1 {
				notional := float64(qty) * price
				fee := notional * cfg.CostRatePct / 100
				cash -= notional + fee
				position = qty
				trades = append(trades, Trade{TS: bar.TS, Side: SideBuy, Price: price, Quantity: qty, Cost: fee})
			}
			// qty==0：资金不足一股，不是错误，当根空转。
		case bar.HasSignal && rule.Exit(bar.Signal) && position > 0:
			proceeds := float64(position) * price
			fee := proceeds * cfg.CostRatePct / 100
			cash += proceeds - fee
			trades = append(trades, Trade{TS: bar.TS, Side: SideSell, Price: price, Quantity: position, Cost: fee})
			position = 0
		}

		value := cash
		if position > 0 {
			value += float64(position) * price
		}
		equity = append(equity, EquityPoint{TS: bar.TS, Equity: value})

		// 复利：空仓收尾的 bar 把资金基数重置为当前权益。
		// 空仓且无成交时 value==cash，等价于 no-op。
		if cfg.Compounding && position == 0 {
			cash = value
		}
	}

	return Result{Trades: trades, FinalCapital: cash, Equity: equity}, nil
}
