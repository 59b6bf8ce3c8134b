package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiver/internal/market"
)

const dayMs = int64(24 * 3600 * 1000)

var testDay0 = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// dailySeries 按收盘价序列构造连续日线，OpenTime 从 2024-01-01 起。
func dailySeries(closes []float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		open := testDay0 + int64(i)*dayMs
		out[i] = market.Candle{
			OpenTime:  open,
			CloseTime: open + dayMs - 1,
			Open:      c,
			High:      c,
			Low:       c,
			Close:     c,
			Volume:    1,
		}
	}
	return out
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreInsertAndRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	candles := dailySeries([]float64{10, 20, 30})

	// 乱序写入，读出必须按 open_time 升序。
	n, err := store.InsertCandles(ctx, "btcusdt", "1d", []market.Candle{candles[2], candles[0], candles[1]})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := store.RangeCandles(ctx, "BTCUSDT", "1d", testDay0, testDay0+3*dayMs)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 10.0, got[0].Close)
	assert.Equal(t, 30.0, got[2].Close)
	assert.Less(t, got[0].OpenTime, got[1].OpenTime)
}

func TestStoreUpsertOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	candles := dailySeries([]float64{10, 20})
	_, err := store.InsertCandles(ctx, "BTCUSDT", "1d", candles)
	require.NoError(t, err)

	candles[1].Close = 99
	_, err = store.InsertCandles(ctx, "BTCUSDT", "1d", candles[1:])
	require.NoError(t, err)

	got, err := store.RangeCandles(ctx, "BTCUSDT", "1d", testDay0, testDay0+2*dayMs)
	require.NoError(t, err)
	require.Len(t, got, 2) // 重复 open_time 不增行
	assert.Equal(t, 99.0, got[1].Close)
}

func TestStoreCountAndManifest(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	candles := dailySeries([]float64{1, 2, 3, 4})
	_, err := store.InsertCandles(ctx, "ETHUSDT", "1d", candles)
	require.NoError(t, err)

	n, err := store.CountCandles(ctx, "ETHUSDT", "1d", testDay0, testDay0+dayMs)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	m, err := store.ManifestInfo(ctx, "ethusdt", "1d")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", m.Symbol)
	assert.Equal(t, "1d", m.Interval)
	assert.Equal(t, int64(4), m.Rows)
	assert.Equal(t, candles[0].OpenTime, m.MinTime)
	assert.Equal(t, candles[3].OpenTime, m.MaxTime)
	assert.NotZero(t, m.LastSyncAt)
	assert.NotEmpty(t, m.Path)
}

func TestStoreRejectsBadInput(t *testing.T) {
	_, err := NewStore("")
	assert.Error(t, err)

	store := newTestStore(t)
	_, err = store.RangeCandles(context.Background(), "", "1d", 0, 1)
	assert.Error(t, err)
	_, err = store.CountCandles(context.Background(), "BTCUSDT", "", 0, 1)
	assert.Error(t, err)
}
