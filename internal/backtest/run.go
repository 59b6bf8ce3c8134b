package backtest

import (
	"time"

	"quiver/internal/report"
)

const (
	RunStatusPending = "pending"
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// RunConfig 是一次推演的参数快照，持久化后可重放。
type RunConfig struct {
	Symbol             string  `json:"symbol"`
	StartTS            int64   `json:"start_ts"`
	EndTS              int64   `json:"end_ts"`
	InitialCapital     float64 `json:"initial_capital"`
	TransactionCostPct float64 `json:"transaction_cost_percent"`
	Compounding        bool    `json:"compounding"`
	Indicator          string  `json:"indicator"`
	IndicatorParameter int     `json:"indicator_parameter"`
	Timeframe          string  `json:"timeframe"`
	EntryThreshold     float64 `json:"entry_threshold"`
	ExitThreshold      float64 `json:"exit_threshold"`
}

// Run 表示一次回测任务及其当前状态。
type Run struct {
	ID          string       `json:"id"`
	Symbol      string       `json:"symbol"`
	Status      string       `json:"status"`
	StartTS     int64        `json:"start_ts"`
	EndTS       int64        `json:"end_ts"`
	Indicator   string       `json:"indicator"`
	Timeframe   string       `json:"timeframe"`
	Message     string       `json:"message"`
	Config      RunConfig    `json:"config"`
	Stats       report.Stats `json:"stats"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// RunRequest 为 HTTP 提交使用；零值字段回落到配置默认。
type RunRequest struct {
	Symbol             string   `json:"symbol" binding:"required"`
	StartTS            int64    `json:"start_ts" binding:"required"`
	EndTS              int64    `json:"end_ts" binding:"required"`
	InitialCapital     float64  `json:"initial_capital"`
	TransactionCostPct *float64 `json:"transaction_cost_percent"`
	Compounding        *bool    `json:"compounding"`
	Indicator          string   `json:"indicator"`
	IndicatorParameter int      `json:"indicator_parameter"`
	Timeframe          string   `json:"timeframe"`
	EntryThreshold     float64  `json:"entry_threshold"`
	ExitThreshold      float64  `json:"exit_threshold"`
}
