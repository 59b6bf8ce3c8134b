package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func dailyCandle(y int, m time.Month, d int, open, high, low, close, vol float64) Candle {
	openTS := day(y, m, d)
	return Candle{
		OpenTime:  openTS,
		CloseTime: openTS + 24*3600*1000 - 1,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    vol,
	}
}

func TestParseGranularity(t *testing.T) {
	for input, want := range map[string]Granularity{
		"daily": Daily, "Daily": Daily, "1d": Daily, "": Daily,
		"weekly": Weekly, "1w": Weekly,
		"monthly": Monthly, "1mo": Monthly,
	} {
		got, err := ParseGranularity(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got)
	}
	_, err := ParseGranularity("hourly")
	assert.Error(t, err)
}

func TestResampleDailyIsIdentity(t *testing.T) {
	candles := []Candle{
		dailyCandle(2024, time.March, 4, 10, 12, 9, 11, 100),
		dailyCandle(2024, time.March, 5, 11, 13, 10, 12, 150),
	}
	out := Resample(candles, Daily)
	require.Len(t, out, 2)
	assert.Equal(t, candles[0].Close, out[0].Close)
	assert.Equal(t, candles[1].Volume, out[1].Volume)
}

func TestResampleWeekly(t *testing.T) {
	// 2024-03-04 是周一；4~8 号同一 ISO 周，11 号进下一周。
	candles := []Candle{
		dailyCandle(2024, time.March, 4, 10, 12, 9, 11, 100),
		dailyCandle(2024, time.March, 6, 11, 15, 10, 14, 150),
		dailyCandle(2024, time.March, 8, 14, 14, 8, 9, 50),
		dailyCandle(2024, time.March, 11, 9, 10, 9, 10, 80),
	}
	out := Resample(candles, Weekly)
	require.Len(t, out, 2)

	week := out[0]
	assert.Equal(t, 10.0, week.Open)  // 首开
	assert.Equal(t, 15.0, week.High)  // 最高
	assert.Equal(t, 8.0, week.Low)    // 最低
	assert.Equal(t, 9.0, week.Close)  // 末收
	assert.Equal(t, 300.0, week.Volume)
	assert.Equal(t, candles[2].CloseTime, week.CloseTime)

	assert.Equal(t, 10.0, out[1].Close)
}

func TestResampleWeeklySundayJoinsPrecedingMonday(t *testing.T) {
	// 周日归属从周一起算的那一周。
	candles := []Candle{
		dailyCandle(2024, time.March, 4, 1, 1, 1, 1, 1),  // 周一
		dailyCandle(2024, time.March, 10, 2, 2, 2, 2, 1), // 周日
	}
	out := Resample(candles, Weekly)
	require.Len(t, out, 1)
	assert.Equal(t, 2.0, out[0].Close)
}

func TestResampleMonthly(t *testing.T) {
	candles := []Candle{
		dailyCandle(2024, time.January, 2, 10, 11, 9, 10, 10),
		dailyCandle(2024, time.January, 31, 10, 20, 10, 18, 20),
		dailyCandle(2024, time.February, 1, 18, 19, 15, 16, 30),
	}
	out := Resample(candles, Monthly)
	require.Len(t, out, 2)
	assert.Equal(t, 10.0, out[0].Open)
	assert.Equal(t, 20.0, out[0].High)
	assert.Equal(t, 18.0, out[0].Close)
	assert.Equal(t, 30.0, out[0].Volume)
	assert.Equal(t, 16.0, out[1].Close)
}

func TestResampleEmpty(t *testing.T) {
	assert.Nil(t, Resample(nil, Weekly))
}

func TestCloses(t *testing.T) {
	candles := []Candle{{Close: 1.5}, {Close: 2.5}}
	assert.Equal(t, []float64{1.5, 2.5}, Closes(candles))
}
