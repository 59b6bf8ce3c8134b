package backtest

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderEquityChart 把资金曲线画成单页 HTML 折线图。
func RenderEquityChart(w io.Writer, result RunResult) error {
	if len(result.Equity) == 0 {
		return fmt.Errorf("run %s 没有资金曲线数据", result.Run.ID)
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("%s 资金曲线", result.Run.Symbol),
			Subtitle: fmt.Sprintf("%s(%d) · %s", result.Run.Indicator, result.Run.Config.IndicatorParameter, result.Run.Timeframe),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	dates := make([]string, len(result.Equity))
	points := make([]opts.LineData, len(result.Equity))
	for i, p := range result.Equity {
		dates[i] = time.UnixMilli(p.TS).UTC().Format("2006-01-02")
		points[i] = opts.LineData{Value: p.Equity}
	}
	line.SetXAxis(dates).AddSeries("equity", points)
	return line.Render(w)
}
