package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/config"
	"GameStatsSync/internal/fuzzy"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakePlatform 同时实现 Steam 与 Exophase 的接口，数据全部来自内存
type fakePlatform struct {
	kind model.PlatformType

	mu          sync.Mutex
	catalog     [][]model.GameRef
	rateLimited map[int]int
	failPage    map[int]bool
	bundles     map[int64]*model.GameBundle
	// achievements 成就刷新接口的返回；缺失时报错
	achievements map[int64][]model.Achievement
	calls        map[string]int

	summaries        map[string]model.Player
	friends          map[string][]string
	friendsForbidden map[string]bool
	reviews          map[string][][]model.Review
	owned            map[string][]int64
	ownedForbidden   map[string]bool
	statsForbidden   map[string]bool
	earned           map[string]map[int64][]model.Earned
	prices           map[string]map[int64]decimal.NullDecimal

	leaderboard [][]string
	profiles    map[string]model.Player
	playerGames map[string][]model.GameRef
	panicOn     int64
}

func newFakePlatform(kind model.PlatformType) *fakePlatform {
	return &fakePlatform{
		kind:             kind,
		rateLimited:      map[int]int{},
		failPage:         map[int]bool{},
		bundles:          map[int64]*model.GameBundle{},
		achievements:     map[int64][]model.Achievement{},
		calls:            map[string]int{},
		summaries:        map[string]model.Player{},
		friends:          map[string][]string{},
		friendsForbidden: map[string]bool{},
		reviews:          map[string][][]model.Review{},
		owned:            map[string][]int64{},
		ownedForbidden:   map[string]bool{},
		statsForbidden:   map[string]bool{},
		earned:           map[string]map[int64][]model.Earned{},
		prices:           map[string]map[int64]decimal.NullDecimal{},
		profiles:         map[string]model.Player{},
		playerGames:      map[string][]model.GameRef{},
	}
}

func (f *fakePlatform) call(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakePlatform) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePlatform) GetType() model.PlatformType { return f.kind }

func (f *fakePlatform) CatalogPage(_ context.Context, page int) (paginate.Result[model.GameRef], error) {
	f.call("catalog")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rateLimited[page] > 0 {
		f.rateLimited[page]--
		return paginate.Result[model.GameRef]{}, transport.ErrRateLimited
	}
	if f.failPage[page] {
		return paginate.Result[model.GameRef]{}, transport.ErrFetchFailed
	}
	if page > len(f.catalog) {
		return paginate.Result[model.GameRef]{Total: len(f.catalog)}, nil
	}
	return paginate.Result[model.GameRef]{Items: f.catalog[page-1], Total: len(f.catalog)}, nil
}

func (f *fakePlatform) GameDetails(_ context.Context, ref model.GameRef) (*model.GameBundle, error) {
	f.call("details")
	if ref.GameID == f.panicOn && f.panicOn != 0 {
		panic("extractor blew up")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.bundles[ref.GameID]; ok {
		return b, nil
	}
	return &model.GameBundle{Game: model.Game{GameID: ref.GameID, Title: ref.Title}}, nil
}

func (f *fakePlatform) Achievements(_ context.Context, ref model.GameRef) ([]model.Achievement, error) {
	f.call("achievements")
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.achievements[ref.GameID]
	if !ok {
		return nil, transport.ErrForbidden
	}
	return a, nil
}

func (f *fakePlatform) PlayerSummaries(_ context.Context, ids []string) ([]model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Player
	for _, id := range ids {
		if p, ok := f.summaries[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlatform) FriendList(_ context.Context, id string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.friendsForbidden[id] {
		return nil, transport.ErrForbidden
	}
	return f.friends[id], nil
}

func (f *fakePlatform) ReviewPage(_ context.Context, id string, page int) (paginate.Result[model.Review], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := f.reviews[id]
	if page > len(pages) {
		return paginate.Result[model.Review]{Done: true}, nil
	}
	return paginate.Result[model.Review]{Items: pages[page-1]}, nil
}

func (f *fakePlatform) OwnedGames(_ context.Context, id string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ownedForbidden[id] {
		return nil, transport.ErrForbidden
	}
	return f.owned[id], nil
}

func (f *fakePlatform) PlayerAchievements(_ context.Context, id string, gameID int64) ([]model.Earned, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statsForbidden[id] {
		return nil, transport.ErrForbidden
	}
	return f.earned[id][gameID], nil
}

func (f *fakePlatform) Prices(_ context.Context, ids []int64, region string) (map[int64]decimal.NullDecimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]decimal.NullDecimal{}
	for _, id := range ids {
		if v, ok := f.prices[region][id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

func (f *fakePlatform) LeaderboardPage(_ context.Context, page int) (paginate.Result[string], error) {
	f.call("leaderboard")
	if page > len(f.leaderboard) {
		return paginate.Result[string]{Total: len(f.leaderboard)}, nil
	}
	return paginate.Result[string]{Items: f.leaderboard[page-1], Total: len(f.leaderboard)}, nil
}

func (f *fakePlatform) Profile(_ context.Context, u string) (model.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[u]
	if !ok {
		return model.Player{}, transport.ErrFetchFailed
	}
	return p, nil
}

func (f *fakePlatform) PlayerGamesPage(_ context.Context, id string, page int) (paginate.Result[model.GameRef], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if page > 1 {
		return paginate.Result[model.GameRef]{Done: true}, nil
	}
	games := f.playerGames[id]
	return paginate.Result[model.GameRef]{Items: games, Done: len(games) == 0}, nil
}

func (f *fakePlatform) Earned(_ context.Context, id string, gameID int64) ([]model.Earned, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.earned[id][gameID], nil
}

// fakePrices 按 region|title 返回候选
type fakePrices struct {
	results map[string][]model.PriceCandidate
	mu      sync.Mutex
	queries []string
}

func (f *fakePrices) SearchPrices(_ context.Context, region, platform, title string) ([]model.PriceCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, region+"|"+platform+"|"+title)
	return f.results[region+"|"+title], nil
}

type fakeDetails struct {
	hits    map[string][]model.SearchHit
	details map[string]model.GameDetails
}

func (f *fakeDetails) Search(_ context.Context, title string) ([]model.SearchHit, error) {
	return f.hits[title], nil
}

func (f *fakeDetails) Details(_ context.Context, hit model.SearchHit) (model.GameDetails, error) {
	d, ok := f.details[hit.URL]
	if !ok {
		return model.GameDetails{}, errors.New("no details")
	}
	return d, nil
}

// testEnv 一组共享的仓储与进度快照，可以反复构造服务模拟多次运行
type testEnv struct {
	store       *memStore
	checkpoints *checkpoint.Store
	logger      *logrus.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	backend, err := checkpoint.NewFileBackend(t.TempDir())
	require.NoError(t, err)
	return &testEnv{store: newMemStore(), checkpoints: checkpoint.NewStore(backend, logger), logger: logger}
}

func (e *testEnv) service(sources interfaces.Sources, opts ...Option) *SyncService {
	engine := NewEngine(sources.Platform.GetType(), config.CrawlConfig{Workers: 4, CheckpointEvery: 3}, e.logger)
	cfg := config.PlatformConfig{
		RateLimitBackoff: time.Millisecond,
		Currencies:       []string{"region-us", "region-de", "region-gb", "region-jp", "region-ru"},
	}
	matcher := fuzzy.NewMatcher(fuzzy.DefaultThreshold, nil, e.logger)
	return NewSyncService(engine, e.store, e.checkpoints, matcher, sources, cfg, opts...)
}

func price(v string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(v))
}

func catalogPages(sizes ...int) [][]model.GameRef {
	var pages [][]model.GameRef
	id := int64(1)
	for _, n := range sizes {
		var page []model.GameRef
		for range n {
			page = append(page, model.GameRef{GameID: id, Title: "Game"})
			id++
		}
		pages = append(pages, page)
	}
	return pages
}
