package backtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quiver/internal/market"
)

// Manifest 记录某个 symbol@interval 数据文件的统计信息。
type Manifest struct {
	Symbol     string `json:"symbol"`
	Interval   string `json:"interval"`
	MinTime    int64  `json:"min_time"`
	MaxTime    int64  `json:"max_time"`
	Rows       int64  `json:"rows"`
	LastSyncAt int64  `json:"last_sync_at"`
	Path       string `json:"path"`
}

// Store 按 symbol@interval 管理独立的 sqlite K 线文件。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(symbol, interval string) (*sql.DB, string, error) {
	if symbol == "" || interval == "" {
		return nil, "", fmt.Errorf("symbol/interval 不能为空")
	}
	key := strings.ToUpper(symbol) + "@" + strings.ToLower(interval)
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, s.dbPath(symbol, interval), nil
	}
	path := s.dbPath(symbol, interval)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, "", err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, "", err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureCandleSchema(db); err != nil {
		_ = db.Close()
		return nil, "", err
	}
	s.dbs[key] = db
	return db, path, nil
}

func (s *Store) dbPath(symbol, interval string) string {
	dir := filepath.Join(s.root, strings.ToUpper(symbol))
	return filepath.Join(dir, strings.ToLower(interval)+".db")
}

func ensureCandleSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS candles (
			open_time INTEGER PRIMARY KEY,
			close_time INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			volume REAL NOT NULL,
			trades INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertCandles 批量写入（重复 open_time 覆盖）。
func (s *Store) InsertCandles(ctx context.Context, symbol, interval string, candles []market.Candle) (int, error) {
	if len(candles) == 0 {
		return 0, nil
	}
	db, _, err := s.db(symbol, interval)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (open_time, close_time, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(open_time) DO UPDATE SET
		    close_time=excluded.close_time,
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    trades=excluded.trades`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	count := 0
	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.OpenTime, c.CloseTime, c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	_ = stmt.Close()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('last_sync_at', ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`, time.Now().UnixMilli()); err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// RangeCandles 按开盘时间升序返回 [start, end] 区间内的 K 线。
func (s *Store) RangeCandles(ctx context.Context, symbol, interval string, start, end int64) ([]market.Candle, error) {
	db, _, err := s.db(symbol, interval)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT open_time, close_time, open, high, low, close, volume, trades
		FROM candles WHERE open_time >= ? AND open_time <= ?
		ORDER BY open_time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []market.Candle
	for rows.Next() {
		var c market.Candle
		if err := rows.Scan(&c.OpenTime, &c.CloseTime, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountCandles 统计区间内的行数，用于覆盖率判断。
func (s *Store) CountCandles(ctx context.Context, symbol, interval string, start, end int64) (int64, error) {
	db, _, err := s.db(symbol, interval)
	if err != nil {
		return 0, err
	}
	var n int64
	err = db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM candles WHERE open_time >= ? AND open_time <= ?`, start, end).Scan(&n)
	return n, err
}

// ManifestInfo 返回数据文件统计。
func (s *Store) ManifestInfo(ctx context.Context, symbol, interval string) (Manifest, error) {
	db, path, err := s.db(symbol, interval)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{
		Symbol:   strings.ToUpper(symbol),
		Interval: strings.ToLower(interval),
		Path:     path,
	}
	err = db.QueryRowContext(ctx, `
		SELECT COALESCE(MIN(open_time),0), COALESCE(MAX(open_time),0), COUNT(*) FROM candles`).
		Scan(&m.MinTime, &m.MaxTime, &m.Rows)
	if err != nil {
		return Manifest{}, err
	}
	var syncAt sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key='last_sync_at'`).Scan(&syncAt); err == nil && syncAt.Valid {
		m.LastSyncAt = syncAt.Int64
	}
	return m, nil
}
