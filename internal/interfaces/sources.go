package interfaces

import (
	"context"

	"GameStatsSync/internal/model"
)

// PriceSearcher 按标题搜索价格（psprices），结果需要模糊匹配
type PriceSearcher interface {
	SearchPrices(ctx context.Context, region, platform, title string) ([]model.PriceCandidate, error)
}

// DetailSearcher 二级数据源（truetrophies / trueachievements），用于补全缺失的游戏元数据
type DetailSearcher interface {
	Search(ctx context.Context, title string) ([]model.SearchHit, error)
	Details(ctx context.Context, hit model.SearchHit) (model.GameDetails, error)
}

// Matcher 候选标题模糊匹配
type Matcher interface {
	BestMatch(target string, candidates []string) (string, bool)
}

// Sources 一个平台的采集任务用到的全部数据源，Prices / Details 只有 PS 与 Xbox 有
type Sources struct {
	Platform PlatformAdapter
	Prices   PriceSearcher
	Details  DetailSearcher
}
