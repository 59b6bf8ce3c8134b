package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"quiver/internal/engine"
	"quiver/internal/report"
)

// RunRecord 对应 backtest_runs 表。
type RunRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	Symbol      string `gorm:"index;size:32"`
	Status      string `gorm:"size:16"`
	StartTS     int64
	EndTS       int64
	Indicator   string `gorm:"size:32"`
	Timeframe   string `gorm:"size:16"`
	Message     string
	Config      datatypes.JSON
	Stats       datatypes.JSON
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (RunRecord) TableName() string { return "backtest_runs" }

// TradeRecord 对应 backtest_trades 表，一行一笔成交。
type TradeRecord struct {
	ID       uint   `gorm:"primaryKey"`
	RunID    string `gorm:"index;size:36"`
	TS       int64
	Side     string `gorm:"size:8"`
	Price    float64
	Quantity int64
	Cost     float64
}

func (TradeRecord) TableName() string { return "backtest_trades" }

// EquityRecord 对应 backtest_equity 表，一行一个资金曲线点。
type EquityRecord struct {
	ID     uint   `gorm:"primaryKey"`
	RunID  string `gorm:"index;size:36"`
	TS     int64
	Equity float64
}

func (EquityRecord) TableName() string { return "backtest_equity" }

// ResultStore 管理 run/trade/equity 三张结果表。
type ResultStore struct {
	db *gorm.DB
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("results root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("打开结果库失败: %w", err)
	}
	if err := db.AutoMigrate(&RunRecord{}, &TradeRecord{}, &EquityRecord{}); err != nil {
		return nil, fmt.Errorf("迁移结果库失败: %w", err)
	}
	return &ResultStore{db: db}, nil
}

func runToRecord(run Run) (RunRecord, error) {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return RunRecord{}, err
	}
	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return RunRecord{}, err
	}
	return RunRecord{
		ID:          run.ID,
		Symbol:      run.Symbol,
		Status:      run.Status,
		StartTS:     run.StartTS,
		EndTS:       run.EndTS,
		Indicator:   run.Indicator,
		Timeframe:   run.Timeframe,
		Message:     run.Message,
		Config:      datatypes.JSON(cfgJSON),
		Stats:       datatypes.JSON(statsJSON),
		CompletedAt: run.CompletedAt,
	}, nil
}

func recordToRun(rec RunRecord) Run {
	run := Run{
		ID:          rec.ID,
		Symbol:      rec.Symbol,
		Status:      rec.Status,
		StartTS:     rec.StartTS,
		EndTS:       rec.EndTS,
		Indicator:   rec.Indicator,
		Timeframe:   rec.Timeframe,
		Message:     rec.Message,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
	}
	_ = json.Unmarshal(rec.Config, &run.Config)
	_ = json.Unmarshal(rec.Stats, &run.Stats)
	return run
}

// InsertRun 写入一条 run 记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	rec, err := runToRecord(run)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// UpdateRunStatus 更新状态与进度消息。
func (s *ResultStore) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	return s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).
		Updates(map[string]any{"status": status, "message": message}).Error
}

// CompleteRun 写入终态：统计、成交与资金曲线在同一事务里落库。
func (s *ResultStore) CompleteRun(ctx context.Context, id string, stats report.Stats, trades []engine.Trade, equity []engine.EquityPoint) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&RunRecord{}).Where("id = ?", id).Updates(map[string]any{
			"status":       RunStatusDone,
			"message":      "完成",
			"stats":        datatypes.JSON(statsJSON),
			"completed_at": &now,
		}).Error; err != nil {
			return err
		}
		if len(trades) > 0 {
			recs := make([]TradeRecord, len(trades))
			for i, t := range trades {
				recs[i] = TradeRecord{RunID: id, TS: t.TS, Side: string(t.Side), Price: t.Price, Quantity: t.Quantity, Cost: t.Cost}
			}
			if err := tx.CreateInBatches(recs, 200).Error; err != nil {
				return err
			}
		}
		if len(equity) > 0 {
			recs := make([]EquityRecord, len(equity))
			for i, p := range equity {
				recs[i] = EquityRecord{RunID: id, TS: p.TS, Equity: p.Equity}
			}
			if err := tx.CreateInBatches(recs, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FailRun 标记失败并记录原因。
func (s *ResultStore) FailRun(ctx context.Context, id string, cause error) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&RunRecord{}).Where("id = ?", id).Updates(map[string]any{
		"status":       RunStatusFailed,
		"message":      cause.Error(),
		"completed_at": &now,
	}).Error
}

// GetRun 读取单条 run。
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	var rec RunRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return Run{}, err
	}
	return recordToRun(rec), nil
}

// ListRuns 按创建时间倒序返回 run 列表。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []RunRecord
	if err := s.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]Run, len(recs))
	for i, rec := range recs {
		out[i] = recordToRun(rec)
	}
	return out, nil
}

// ListTrades 返回某个 run 的成交记录（时间升序）。
func (s *ResultStore) ListTrades(ctx context.Context, runID string) ([]engine.Trade, error) {
	var recs []TradeRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("ts ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]engine.Trade, len(recs))
	for i, rec := range recs {
		out[i] = engine.Trade{TS: rec.TS, Side: engine.Side(rec.Side), Price: rec.Price, Quantity: rec.Quantity, Cost: rec.Cost}
	}
	return out, nil
}

// ListEquity 返回某个 run 的资金曲线（时间升序）。
func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]engine.EquityPoint, error) {
	var recs []EquityRecord
	if err := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("ts ASC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]engine.EquityPoint, len(recs))
	for i, rec := range recs {
		out[i] = engine.EquityPoint{TS: rec.TS, Equity: rec.Equity}
	}
	return out, nil
}
