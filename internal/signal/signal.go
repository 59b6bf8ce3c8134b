// Package signal 把 K 线 + 指标选择变成与输入逐根对齐的信号序列。
// 预热期内的 bar 显式标记为 missing，绝不让零值悄悄流进交易逻辑。
package signal

import (
	"fmt"
	"strings"

	talib "github.com/markcheno/go-talib"

	"quiver/internal/engine"
	"quiver/internal/market"
)

// Indicator 是受支持的指标枚举。
type Indicator string

const (
	RSI            Indicator = "RSI"
	SMA            Indicator = "SMA"
	EMA            Indicator = "EMA"
	MACD           Indicator = "MACD"
	BollingerBands Indicator = "BollingerBands"
)

// ParseIndicator 规范化指标名。
func ParseIndicator(input string) (Indicator, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "rsi":
		return RSI, nil
	case "sma":
		return SMA, nil
	case "ema":
		return EMA, nil
	case "macd":
		return MACD, nil
	case "bollingerbands", "bbands", "bb":
		return BollingerBands, nil
	default:
		return "", fmt.Errorf("不支持的指标: %s", input)
	}
}

// Series 是对齐到输入 K 线的信号序列，Valid=false 表示预热期缺值。
type Series struct {
	Values []float64
	Valid  []bool
}

// Len 返回序列长度。
func (s Series) Len() int { return len(s.Values) }

// At 返回第 i 个信号值及其有效性。
func (s Series) At(i int) (float64, bool) {
	if i < 0 || i >= len(s.Values) {
		return 0, false
	}
	return s.Values[i], s.Valid[i]
}

// Compute 计算指定指标的逐根信号值。
// param 的含义按指标而定：RSI/SMA/EMA/BBands 为周期；
// MACD 为快线周期（慢线取 2*param，信号线固定 9）。
func Compute(candles []market.Candle, ind Indicator, param int) (Series, error) {
	if len(candles) == 0 {
		return Series{}, fmt.Errorf("K 线为空，无法计算 %s", ind)
	}
	if param <= 0 {
		return Series{}, fmt.Errorf("指标参数必须为正整数，当前 %d", param)
	}
	closes := market.Closes(candles)
	switch ind {
	case RSI:
		return markWarmup(talib.Rsi(closes, param), param), nil
	case SMA:
		return markWarmup(talib.Sma(closes, param), param-1), nil
	case EMA:
		return markWarmup(talib.Ema(closes, param), param-1), nil
	case MACD:
		macd, _, _ := talib.Macd(closes, param, param*2, 9)
		return markWarmup(macd, param*2+8), nil
	case BollingerBands:
		return percentB(closes, param), nil
	default:
		return Series{}, fmt.Errorf("不支持的指标: %s", ind)
	}
}

// markWarmup 把前 lookback 根标记为缺值。
func markWarmup(values []float64, lookback int) Series {
	valid := make([]bool, len(values))
	for i := range valid {
		valid[i] = i >= lookback
	}
	return Series{Values: values, Valid: valid}
}

// percentB 输出 0~100 的 %B：(close-lower)/(upper-lower)*100，
// 让默认的 30/70 阈值对布林带同样成立。带宽为零的 bar 视为缺值。
func percentB(closes []float64, period int) Series {
	upper, _, lower := talib.BBands(closes, period, 2, 2, talib.SMA)
	values := make([]float64, len(closes))
	valid := make([]bool, len(closes))
	for i := range closes {
		if i < period-1 {
			continue
		}
		width := upper[i] - lower[i]
		if width <= 0 {
			continue
		}
		values[i] = (closes[i] - lower[i]) / width * 100
		valid[i] = true
	}
	return Series{Values: values, Valid: valid}
}

// Bars 把 K 线与信号序列拼成引擎输入；以收盘时间为 bar 时间戳。
func Bars(candles []market.Candle, series Series) ([]engine.Bar, error) {
	if len(candles) != series.Len() {
		return nil, fmt.Errorf("信号序列长度 %d 与 K 线数量 %d 不一致", series.Len(), len(candles))
	}
	bars := make([]engine.Bar, len(candles))
	for i, c := range candles {
		value, ok := series.At(i)
		bars[i] = engine.Bar{TS: c.CloseTime, Close: c.Close, Signal: value, HasSignal: ok}
	}
	return bars, nil
}
