package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiver/internal/engine"
)

func ts(y int, m time.Month, d int) int64 {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
}

func TestWriteTrades(t *testing.T) {
	trades := []engine.Trade{
		{TS: ts(2024, time.March, 4), Side: engine.SideBuy, Price: 100.5, Quantity: 9},
		{TS: ts(2024, time.March, 8), Side: engine.SideSell, Price: 110, Quantity: 9},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, trades))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Type,Price,Quantity", lines[0])
	assert.Equal(t, "2024-03-04 00:00:00,BUY,100.5,9", lines[1])
	assert.Equal(t, "2024-03-08 00:00:00,SELL,110,9", lines[2])
}

func TestWriteTradesEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrades(&buf, nil))
	assert.Equal(t, "Date,Type,Price,Quantity\n", buf.String())
}

func TestWriteEquity(t *testing.T) {
	points := []engine.EquityPoint{
		{TS: ts(2024, time.March, 4), Equity: 1000},
		{TS: ts(2024, time.March, 5), Equity: 1090.25},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteEquity(&buf, points))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Equity", lines[0])
	assert.Equal(t, "2024-03-04 00:00:00,1000", lines[1])
	assert.Equal(t, "2024-03-05 00:00:00,1090.25", lines[2])
}
