package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// State 采集任务状态机
type State string

const (
	StateInit       State = "INIT"
	StateDiscover   State = "DISCOVER_EXTENT"
	StateProcessing State = "PROCESSING"
	StateFinalize   State = "FINALIZE"
	StateDone       State = "DONE"
	StateAborted    State = "ABORTED"
)

// Totals 各表新增行数
type Totals map[string]int

// Add 合并另一份计数
func (t Totals) Add(other Totals) {
	for k, v := range other {
		t[k] += v
	}
}

// Fields 转成日志字段
func (t Totals) Fields() logrus.Fields {
	f := logrus.Fields{}
	for k, v := range t {
		f[k] = v
	}
	return f
}

// Keys 排序后的表名
func (t Totals) Keys() []string {
	return slices.Sorted(maps.Keys(t))
}

// RunError 任务以 ABORTED 结束，携带中断前已累计的计数
type RunError struct {
	Crawl  string
	State  State
	Totals Totals
	Err    error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s aborted: %v", e.Crawl, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Job 一类采集任务：发现待处理单元、逐个处理、在安全点落盘进度
type Job[U any] struct {
	Name string
	// Discover 确定任务范围；失败即终止整个任务
	Discover func(ctx context.Context) ([]U, error)
	// Process 处理单个单元，返回本单元新增的行数。错误只影响本单元（context 取消除外）
	Process func(ctx context.Context, unit U) (Totals, error)
	// Checkpoint 所有 worker join 之后调用，可为 nil
	Checkpoint func(ctx context.Context) error
	// Key 单元在日志中的标识
	Key func(unit U) string
}

// StatusView 运行状态快照，供调试接口输出
type StatusView struct {
	RunID     string    `json:"run_id"`
	Platform  string    `json:"platform"`
	Crawl     string    `json:"crawl"`
	State     State     `json:"state"`
	Units     int       `json:"units"`
	Processed int       `json:"processed"`
	Failed    int       `json:"failed"`
	Totals    Totals    `json:"totals"`
	StartedAt time.Time `json:"started_at"`
}

// Status 当前任务的运行状态，worker 与调试接口并发访问
type Status struct {
	mu   sync.RWMutex
	view StatusView
}

// Snapshot 当前状态的拷贝
func (s *Status) Snapshot() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Totals = maps.Clone(s.view.Totals)
	return v
}

func (s *Status) update(fn func(v *StatusView)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.view)
}

// Engine 通用采集引擎：有界 worker 池 + 分块 join + 检查点
type Engine struct {
	Platform        model.PlatformType
	Workers         int
	CheckpointEvery int
	Logger          *logrus.Entry
	status          *Status
}

// NewEngine 每次运行生成新的 run_id
func NewEngine(platform model.PlatformType, cfg config.CrawlConfig, logger *logrus.Logger) *Engine {
	runID := uuid.NewString()
	return &Engine{
		Platform:        platform,
		Workers:         cfg.Workers,
		CheckpointEvery: cfg.CheckpointEvery,
		Logger:          logger.WithFields(logrus.Fields{"platform": platform, "run_id": runID}),
		status:          &Status{view: StatusView{RunID: runID, Platform: string(platform), State: StateInit, Totals: Totals{}}},
	}
}

// Status 运行状态
func (e *Engine) Status() *Status {
	e.ensure()
	return e.status
}

// ensure 允许直接构造 Engine（测试）
func (e *Engine) ensure() {
	if e.status == nil {
		e.status = &Status{view: StatusView{Platform: string(e.Platform), State: StateInit, Totals: Totals{}}}
	}
	if e.Logger == nil {
		e.Logger = logrus.NewEntry(logrus.StandardLogger()).WithField("platform", e.Platform)
	}
}

type unitResult struct {
	key    string
	totals Totals
	err    error
}

func (e *Engine) setState(log *logrus.Entry, state State) {
	e.status.update(func(s *StatusView) { s.State = state })
	log.WithField("state", state).Debug("状态切换")
}

// Run 执行一个采集任务。正常结束返回 DONE 时的计数；
// 范围发现失败、context 取消或 panic 时返回 *RunError，其中带有已累计的计数
func Run[U any](ctx context.Context, e *Engine, job Job[U]) (totals Totals, err error) {
	e.ensure()
	totals = Totals{}
	log := e.Logger.WithField("crawl", job.Name)
	e.status.update(func(s *StatusView) {
		s.Crawl = job.Name
		s.StartedAt = time.Now()
		s.Units, s.Processed, s.Failed = 0, 0, 0
		s.Totals = Totals{}
	})
	e.setState(log, StateInit)
	log.Info("采集任务开始")

	abort := func(cause error) (Totals, error) {
		e.setState(log, StateAborted)
		if job.Checkpoint != nil {
			if err := job.Checkpoint(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Error("中断时保存进度失败")
			}
		}
		log.WithFields(totals.Fields()).WithError(cause).Error("采集任务中断，已写入的数据如上")
		return totals, &RunError{Crawl: job.Name, State: StateAborted, Totals: maps.Clone(totals), Err: cause}
	}

	defer func() {
		if p := recover(); p != nil {
			totals, err = abort(fmt.Errorf("panic: %v", p))
		}
	}()

	e.setState(log, StateDiscover)
	units, err := job.Discover(ctx)
	if err != nil {
		return abort(fmt.Errorf("确定采集范围失败: %w", err))
	}
	e.status.update(func(s *StatusView) { s.Units = len(units) })
	log.WithField("units", len(units)).Info("采集范围已确定")

	e.setState(log, StateProcessing)
	workers := max(e.Workers, 1)
	every := max(e.CheckpointEvery, 1)
	key := job.Key
	if key == nil {
		key = func(u U) string { return fmt.Sprint(u) }
	}

	processed, failed := 0, 0
	for chunk := range slices.Chunk(units, every) {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		p := pool.NewWithResults[unitResult]().WithMaxGoroutines(workers)
		for _, unit := range chunk {
			p.Go(func() (res unitResult) {
				res.key = key(unit)
				defer func() {
					if r := recover(); r != nil {
						res.err = fmt.Errorf("panic: %v", r)
					}
				}()
				res.totals, res.err = job.Process(ctx, unit)
				return res
			})
		}

		var fatal error
		for _, r := range p.Wait() {
			totals.Add(r.totals)
			switch outcome := transport.Classify(r.err); outcome {
			case transport.OutcomeOK:
				processed++
			case transport.OutcomeFatal:
				fatal = r.err
			default:
				failed++
				log.WithError(r.err).WithFields(logrus.Fields{"unit": r.key, "outcome": outcome}).Warn("单元处理失败，跳过")
			}
		}

		if job.Checkpoint != nil {
			if err := job.Checkpoint(ctx); err != nil {
				log.WithError(err).Warn("保存进度失败")
			}
		}
		e.status.update(func(s *StatusView) {
			s.Processed, s.Failed = processed, failed
			s.Totals = maps.Clone(totals)
		})
		if fatal != nil {
			return abort(fatal)
		}
	}

	e.setState(log, StateFinalize)
	if job.Checkpoint != nil {
		if err := job.Checkpoint(ctx); err != nil {
			log.WithError(err).Error("保存最终进度失败")
		}
	}
	e.setState(log, StateDone)
	log.WithFields(totals.Fields()).WithFields(logrus.Fields{
		"processed": processed,
		"failed":    failed,
	}).Info("采集任务完成")
	return totals, nil
}

// IsAborted err 是否为中断的任务
func IsAborted(err error) (*RunError, bool) {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr, true
	}
	return nil, false
}
