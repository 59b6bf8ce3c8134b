// Package export 把成交记录与资金曲线序列化为 CSV，仅做标准引号转义。
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"quiver/internal/engine"
)

func formatDate(ts int64) string {
	return time.UnixMilli(ts).UTC().Format("2006-01-02 15:04:05")
}

// WriteTrades 输出 Date,Type,Price,Quantity 四列。
func WriteTrades(w io.Writer, trades []engine.Trade) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Type", "Price", "Quantity"}); err != nil {
		return err
	}
	for _, t := range trades {
		row := []string{
			formatDate(t.TS),
			string(t.Side),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			strconv.FormatInt(t.Quantity, 10),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteEquity 输出 Date,Equity 两列。
func WriteEquity(w io.Writer, points []engine.EquityPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Date", "Equity"}); err != nil {
		return err
	}
	for _, p := range points {
		row := []string{
			formatDate(p.TS),
			strconv.FormatFloat(p.Equity, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
