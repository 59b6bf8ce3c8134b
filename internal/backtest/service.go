package backtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"quiver/internal/logger"
	"quiver/internal/market"
)

const (
	JobStatusPending = "pending"
	JobStatusRunning = "running"
	JobStatusDone    = "done"
	JobStatusFailed  = "failed"
)

// FetchParams 描述一次下载任务的范围。
type FetchParams struct {
	Exchange string `json:"exchange,omitempty"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

// FetchJob 是任务进度快照。
type FetchJob struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Params    FetchParams `json:"params"`
	Total     int         `json:"total"`
	Completed int         `json:"completed"`
	Message   string      `json:"message,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

var intervalDurations = map[string]time.Duration{
	"1h": time.Hour,
	"4h": 4 * time.Hour,
	"1d": 24 * time.Hour,
}

func intervalMillis(interval string) (int64, error) {
	d, ok := intervalDurations[strings.ToLower(strings.TrimSpace(interval))]
	if !ok {
		return 0, fmt.Errorf("不支持的数据源周期: %s", interval)
	}
	return d.Milliseconds(), nil
}

// ServiceConfig 配置拉取服务。
type ServiceConfig struct {
	Store           *Store
	Sources         map[string]CandleSource
	DefaultExchange string
	RateLimitPerMin int
	MaxBatch        int
	MaxConcurrent   int
}

// Service 负责管理下载任务、限速拉取并写库。
type Service struct {
	store           *Store
	sources         map[string]CandleSource
	defaultExchange string
	maxBatch        int
	maxConcurrent   int
	limiter         *rate.Limiter

	mu   sync.RWMutex
	jobs map[string]*FetchJob

	baseCtx context.Context
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("至少需要一个数据源")
	}
	perSec := rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	if cfg.RateLimitPerMin <= 0 {
		perSec = 8
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 1000
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	svc := &Service{
		store:           cfg.Store,
		sources:         make(map[string]CandleSource, len(cfg.Sources)),
		defaultExchange: strings.ToLower(cfg.DefaultExchange),
		maxBatch:        maxBatch,
		maxConcurrent:   maxConcurrent,
		limiter:         rate.NewLimiter(perSec, 1),
		jobs:            make(map[string]*FetchJob),
		baseCtx:         context.Background(),
	}
	for k, v := range cfg.Sources {
		svc.sources[strings.ToLower(k)] = v
	}
	if svc.defaultExchange == "" {
		for k := range svc.sources {
			svc.defaultExchange = k
			break
		}
	}
	return svc, nil
}

// SetContext 注入宿主 ctx，用于任务取消。
func (s *Service) SetContext(ctx context.Context) {
	if ctx != nil {
		s.baseCtx = ctx
	}
}

func (s *Service) source(exchange string) (CandleSource, error) {
	name := strings.ToLower(exchange)
	if name == "" {
		name = s.defaultExchange
	}
	src, ok := s.sources[name]
	if !ok {
		return nil, fmt.Errorf("未知数据源: %s", exchange)
	}
	return src, nil
}

// SubmitFetch 提交异步下载任务并立即返回任务快照。
func (s *Service) SubmitFetch(params FetchParams) (FetchJob, error) {
	if params.Symbol == "" {
		return FetchJob{}, fmt.Errorf("symbol 不能为空")
	}
	step, err := intervalMillis(params.Interval)
	if err != nil {
		return FetchJob{}, err
	}
	if params.End <= params.Start {
		return FetchJob{}, fmt.Errorf("start/end 需要构成区间")
	}
	src, err := s.source(params.Exchange)
	if err != nil {
		return FetchJob{}, err
	}
	params.Symbol = strings.ToUpper(params.Symbol)
	now := time.Now()
	job := &FetchJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Params:    params,
		Total:     chunkCount(params.Start, params.End, step, s.maxBatch),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	go func() {
		s.updateJob(job.ID, JobStatusRunning, 0, "")
		err := s.fetchRange(s.baseCtx, src, params, step, func(done int) {
			s.updateJob(job.ID, JobStatusRunning, done, "")
		})
		if err != nil {
			logger.Warnf("[data] 下载 %s %s 失败: %v", params.Symbol, params.Interval, err)
			s.updateJob(job.ID, JobStatusFailed, -1, err.Error())
			return
		}
		s.updateJob(job.ID, JobStatusDone, job.Total, "")
	}()
	return *job, nil
}

func (s *Service) updateJob(id, status string, completed int, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	if completed >= 0 {
		job.Completed = completed
	}
	job.Message = msg
	job.UpdatedAt = time.Now()
}

// JobSnapshot 返回指定任务快照。
func (s *Service) JobSnapshot(id string) (FetchJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return FetchJob{}, false
	}
	return *job, true
}

// JobsSnapshot 返回全部任务，按创建时间排序。
func (s *Service) JobsSnapshot() []FetchJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]FetchJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// EnsureRange 同步补齐 [start, end] 区间的数据；区间已完整时直接返回。
// 供模拟器在跑之前调用。
func (s *Service) EnsureRange(ctx context.Context, symbol, interval string, start, end int64) error {
	step, err := intervalMillis(interval)
	if err != nil {
		return err
	}
	symbol = strings.ToUpper(symbol)
	have, err := s.store.CountCandles(ctx, symbol, interval, start, end)
	if err != nil {
		return err
	}
	expected := (end-start)/step + 1
	if have >= expected {
		return nil
	}
	src, err := s.source("")
	if err != nil {
		return err
	}
	logger.Infof("[data] %s %s 覆盖 %d/%d，开始补齐", symbol, interval, have, expected)
	params := FetchParams{Symbol: symbol, Interval: interval, Start: start, End: end}
	return s.fetchRange(ctx, src, params, step, nil)
}

func chunkCount(start, end, step int64, maxBatch int) int {
	span := int64(maxBatch) * step
	n := int((end - start) / span)
	if (end-start)%span != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// fetchRange 把区间切块后并发拉取，受全局限速约束。
func (s *Service) fetchRange(ctx context.Context, src CandleSource, params FetchParams, step int64, progress func(done int)) error {
	span := int64(s.maxBatch) * step
	var chunks [][2]int64
	for from := params.Start; from <= params.End; from += span {
		to := from + span - step
		if to > params.End {
			to = params.End
		}
		chunks = append(chunks, [2]int64{from, to})
	}

	var done int
	var doneMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)
	for _, ch := range chunks {
		from, to := ch[0], ch[1]
		g.Go(func() error {
			if err := s.limiter.Wait(gctx); err != nil {
				return err
			}
			candles, err := src.Fetch(gctx, FetchRequest{
				Symbol:   params.Symbol,
				Interval: params.Interval,
				Start:    from,
				End:      to,
				Limit:    s.maxBatch,
			})
			if err != nil {
				return err
			}
			if _, err := s.store.InsertCandles(gctx, params.Symbol, params.Interval, candles); err != nil {
				return err
			}
			doneMu.Lock()
			done++
			current := done
			doneMu.Unlock()
			if progress != nil {
				progress(current)
			}
			return nil
		})
	}
	return g.Wait()
}

// QueryCandles 供 HTTP 层查询 K 线（limit<=0 时返回全部）。
func (s *Service) QueryCandles(ctx context.Context, symbol, interval string, start, end int64, limit int) ([]market.Candle, error) {
	if end == 0 {
		end = time.Now().UnixMilli()
	}
	candles, err := s.store.RangeCandles(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// ManifestInfo 透出底层数据文件统计。
func (s *Service) ManifestInfo(ctx context.Context, symbol, interval string) (Manifest, error) {
	return s.store.ManifestInfo(ctx, symbol, interval)
}
