package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// 采集任务名
const (
	CrawlGames        = "games"
	CrawlAchievements = "achievements"
	CrawlPlayers      = "players"
	CrawlReviews      = "reviews"
	CrawlHistory      = "history"
	CrawlPrices       = "prices"
	CrawlBackfill     = "backfill"
)

// crawlFunc 单个采集任务的入口
type crawlFunc func(s *SyncService, ctx context.Context) (Totals, error)

// crawlRegistry 平台 → 任务名 → 入口；新增任务仅需添加此处
var crawlRegistry = map[model.PlatformType]map[string]crawlFunc{
	model.PlatformSteam: {
		CrawlGames:        (*SyncService).syncGames,
		CrawlAchievements: (*SyncService).syncAchievements,
		CrawlPlayers:      (*SyncService).syncSteamPlayers,
		CrawlReviews:      (*SyncService).syncSteamReviews,
		CrawlHistory:      (*SyncService).syncSteamHistory,
		CrawlPrices:       (*SyncService).syncSteamPrices,
	},
	model.PlatformPlayStation: exophaseCrawls(),
	model.PlatformXbox:        exophaseCrawls(),
}

func exophaseCrawls() map[string]crawlFunc {
	return map[string]crawlFunc{
		CrawlGames:        (*SyncService).syncGames,
		CrawlAchievements: (*SyncService).syncAchievements,
		CrawlPlayers:      (*SyncService).syncLeaderboardPlayers,
		CrawlHistory:      (*SyncService).syncExophaseHistory,
		CrawlPrices:       (*SyncService).syncStorePrices,
		CrawlBackfill:     (*SyncService).syncBackfill,
	}
}

// Crawls 平台支持的采集任务（排序）
func Crawls(p model.PlatformType) []string {
	var names []string
	for name := range crawlRegistry[p] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SyncService 组合数据源、仓储、进度快照与匹配器，执行单个平台的采集任务
type SyncService struct {
	engine      *Engine
	store       interfaces.Store
	checkpoints interfaces.Checkpointer
	matcher     interfaces.Matcher
	sources     interfaces.Sources
	cfg         config.PlatformConfig
	playerCap   int
	seeds       []string
	now         func() time.Time
}

// Option 可选参数
type Option func(s *SyncService)

// WithSeeds 覆盖 Steam 滚雪球采集的默认种子
func WithSeeds(seeds ...string) Option {
	return func(s *SyncService) { s.seeds = seeds }
}

// WithPlayerCap 滚雪球采集的玩家上限，0 为不限
func WithPlayerCap(n int) Option {
	return func(s *SyncService) { s.playerCap = n }
}

// WithClock 替换当前时间（价格按天去重）
func WithClock(now func() time.Time) Option {
	return func(s *SyncService) { s.now = now }
}

func NewSyncService(engine *Engine, store interfaces.Store, checkpoints interfaces.Checkpointer,
	matcher interfaces.Matcher, sources interfaces.Sources, cfg config.PlatformConfig, opts ...Option) *SyncService {
	s := &SyncService{
		engine:      engine,
		store:       store,
		checkpoints: checkpoints,
		matcher:     matcher,
		sources:     sources,
		cfg:         cfg,
		seeds:       defaultSteamSeeds,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncPlatform 执行指定采集任务
func (s *SyncService) SyncPlatform(ctx context.Context, crawl string) (Totals, error) {
	p := s.platform()
	fn, ok := crawlRegistry[p][crawl]
	if !ok {
		return nil, fmt.Errorf("平台%s不支持采集任务%s（可选：%v）", p, crawl, Crawls(p))
	}
	return fn(s, ctx)
}

func (s *SyncService) platform() model.PlatformType {
	return s.sources.Platform.GetType()
}

func (s *SyncService) log() *logrus.Entry {
	s.engine.ensure()
	return s.engine.Logger
}

// checkpointKey 进度快照名，如 steam_games
func (s *SyncService) checkpointKey(crawl string) string {
	return string(s.platform()) + "_" + crawl
}

// driver 翻页驱动；限流等待时长取平台配置
func (s *SyncService) driver(strategy paginate.Strategy) paginate.Driver {
	return paginate.Driver{
		Strategy: strategy,
		Backoff:  s.cfg.RateLimitBackoff,
		Workers:  s.engine.Workers,
		Logger:   s.log(),
	}
}

// retry 单次请求遇到限流时等待后重试一次
func retry[T any](ctx context.Context, s *SyncService, fn func(ctx context.Context) (T, error)) (T, error) {
	return paginate.Retry(ctx, s.driver(paginate.KnownExtent), fn)
}

// today 价格采集日期
func (s *SyncService) today() datatypes.Date {
	return model.Day(s.now())
}
