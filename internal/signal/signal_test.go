package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiver/internal/market"
)

func candlesFromCloses(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		out[i] = market.Candle{
			OpenTime:  int64(i) * 1000,
			CloseTime: int64(i)*1000 + 999,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
		}
	}
	return out
}

func TestParseIndicator(t *testing.T) {
	cases := map[string]Indicator{
		"rsi":            RSI,
		"RSI":            RSI,
		"sma":            SMA,
		"EMA":            EMA,
		"macd":           MACD,
		"BollingerBands": BollingerBands,
		"bbands":         BollingerBands,
	}
	for input, want := range cases {
		got, err := ParseIndicator(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ParseIndicator("vwap")
	assert.Error(t, err)
}

func TestComputeRSIWarmup(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 100 + float64(i) // 单边上涨
	}
	series, err := Compute(candlesFromCloses(closes), RSI, 14)
	require.NoError(t, err)
	require.Equal(t, len(closes), series.Len())

	for i := 0; i < 14; i++ {
		_, ok := series.At(i)
		assert.False(t, ok, "第 %d 根应处于预热期", i)
	}
	for i := 14; i < len(closes); i++ {
		v, ok := series.At(i)
		require.True(t, ok, "第 %d 根应有信号", i)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
	// 只涨不跌的序列 RSI 贴着 100。
	v, _ := series.At(len(closes) - 1)
	assert.Greater(t, v, 90.0)
}

func TestComputeSMAValues(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	series, err := Compute(candlesFromCloses(closes), SMA, 3)
	require.NoError(t, err)

	_, ok := series.At(0)
	assert.False(t, ok)
	_, ok = series.At(1)
	assert.False(t, ok)
	for i, want := range map[int]float64{2: 2, 3: 3, 4: 4} {
		v, ok := series.At(i)
		require.True(t, ok)
		assert.InDelta(t, want, v, 1e-9)
	}
}

func TestComputeEMAWarmup(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	series, err := Compute(candlesFromCloses(closes), EMA, 4)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, ok := series.At(i)
		assert.False(t, ok)
	}
	v, ok := series.At(5)
	require.True(t, ok)
	assert.False(t, math.IsNaN(v))
}

func TestComputeMACDWarmup(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + math.Sin(float64(i)/3)*10
	}
	series, err := Compute(candlesFromCloses(closes), MACD, 2)
	require.NoError(t, err)
	require.Equal(t, len(closes), series.Len())
	// fast=2 slow=4 signal=9：前 12 根标记缺值。
	for i := 0; i < 12; i++ {
		_, ok := series.At(i)
		assert.False(t, ok)
	}
	_, ok := series.At(12)
	assert.True(t, ok)
}

func TestComputePercentB(t *testing.T) {
	t.Run("rising ramp stays in upper half", func(t *testing.T) {
		closes := []float64{1, 2, 3, 4, 5, 6}
		series, err := Compute(candlesFromCloses(closes), BollingerBands, 3)
		require.NoError(t, err)
		_, ok := series.At(1)
		assert.False(t, ok)
		for i := 2; i < len(closes); i++ {
			v, ok := series.At(i)
			require.True(t, ok)
			assert.Greater(t, v, 50.0, "上行序列的信号应在上半区")
			assert.LessOrEqual(t, v, 100.0)
		}
	})

	t.Run("flat prices have zero width", func(t *testing.T) {
		closes := []float64{5, 5, 5, 5, 5}
		series, err := Compute(candlesFromCloses(closes), BollingerBands, 3)
		require.NoError(t, err)
		for i := range closes {
			_, ok := series.At(i)
			assert.False(t, ok, "带宽为零的 bar 应视为缺值")
		}
	})
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := Compute(nil, RSI, 14)
	assert.Error(t, err)
	_, err = Compute(candlesFromCloses([]float64{1, 2, 3}), RSI, 0)
	assert.Error(t, err)
}

func TestBars(t *testing.T) {
	candles := candlesFromCloses([]float64{10, 20, 30})
	series := Series{Values: []float64{0, 42, 77}, Valid: []bool{false, true, true}}

	bars, err := Bars(candles, series)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, candles[0].CloseTime, bars[0].TS)
	assert.False(t, bars[0].HasSignal)
	assert.True(t, bars[1].HasSignal)
	assert.Equal(t, 42.0, bars[1].Signal)
	assert.Equal(t, 30.0, bars[2].Close)

	_, err = Bars(candles, Series{Values: []float64{1}, Valid: []bool{true}})
	assert.Error(t, err)
}
