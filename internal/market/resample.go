package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity 表示重采样粒度，对应策略配置里的 timeframe。
type Granularity string

const (
	Daily   Granularity = "daily"
	Weekly  Granularity = "weekly"
	Monthly Granularity = "monthly"
)

// ParseGranularity 规范化粒度字符串。
func ParseGranularity(input string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "daily", "1d", "d":
		return Daily, nil
	case "weekly", "1w", "w":
		return Weekly, nil
	case "monthly", "1mo", "m":
		return Monthly, nil
	default:
		return "", fmt.Errorf("不支持的重采样粒度: %s", input)
	}
}

// bucketKey 把开盘时间映射到所属桶的起点（UTC）。
func (g Granularity) bucketKey(ts int64) int64 {
	t := time.UnixMilli(ts).UTC()
	switch g {
	case Weekly:
		// ISO 周：回退到周一 00:00。
		weekday := int(t.Weekday())
		if weekday == 0 {
			weekday = 7
		}
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start.AddDate(0, 0, -(weekday - 1)).UnixMilli()
	case Monthly:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).UnixMilli()
	}
}

// Resample 把细粒度 K 线聚合到指定粒度：首开、最高、最低、末收、量求和。
// 输入需按时间升序；输出每个非空桶一根，保持时间顺序。
func Resample(candles []Candle, g Granularity) []Candle {
	if len(candles) == 0 {
		return nil
	}
	buckets := make(map[int64]*Candle)
	var keys []int64
	for _, c := range candles {
		key := g.bucketKey(c.OpenTime)
		agg, ok := buckets[key]
		if !ok {
			cp := c
			buckets[key] = &cp
			keys = append(keys, key)
			continue
		}
		if c.High > agg.High {
			agg.High = c.High
		}
		if c.Low < agg.Low {
			agg.Low = c.Low
		}
		agg.Close = c.Close
		agg.CloseTime = c.CloseTime
		agg.Volume += c.Volume
		agg.Trades += c.Trades
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]Candle, 0, len(keys))
	for _, k := range keys {
		out = append(out, *buckets[k])
	}
	return out
}
