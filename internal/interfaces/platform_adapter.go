package interfaces

import (
	"context"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"

	"github.com/shopspring/decimal"
)

// PlatformAdapter 所有平台必须实现的核心接口：游戏目录 + 详情 + 成就定义
type PlatformAdapter interface {
	GetType() model.PlatformType                                                       // 平台类型
	CatalogPage(ctx context.Context, page int) (paginate.Result[model.GameRef], error) // 游戏目录第 page 页
	GameDetails(ctx context.Context, ref model.GameRef) (*model.GameBundle, error)     // 详情与成就；不是已发售的游戏时返回 nil
	Achievements(ctx context.Context, ref model.GameRef) ([]model.Achievement, error)  // 仅成就定义
}

// SteamAdapter Steam 独有的玩家、评测、价格接口
type SteamAdapter interface {
	PlatformAdapter
	PlayerSummaries(ctx context.Context, playerIDs []string) ([]model.Player, error)
	// FriendList 好友列表不公开时返回 transport.ErrForbidden
	FriendList(ctx context.Context, playerID string) ([]string, error)
	ReviewPage(ctx context.Context, playerID string, page int) (paginate.Result[model.Review], error)
	// OwnedGames 资料私密时返回 transport.ErrForbidden
	OwnedGames(ctx context.Context, playerID string) ([]int64, error)
	// PlayerAchievements 只返回已解锁的成就；游戏统计隐藏时返回 transport.ErrForbidden
	PlayerAchievements(ctx context.Context, playerID string, gameID int64) ([]model.Earned, error)
	// Prices 一批游戏在某个区域的价格，未上架的游戏不在结果中
	Prices(ctx context.Context, gameIDs []int64, region string) (map[int64]decimal.NullDecimal, error)
}

// ExophaseAdapter PlayStation / Xbox 的排行榜与玩家数据接口
type ExophaseAdapter interface {
	PlatformAdapter
	// LeaderboardPage 排行榜第 page 页上的玩家资料页地址，Total 为最后一页
	LeaderboardPage(ctx context.Context, page int) (paginate.Result[string], error)
	Profile(ctx context.Context, profileURL string) (model.Player, error)
	// PlayerGamesPage 玩家游戏列表，success=false 时 Done=true；本页条目全部被跳过时 More=true
	PlayerGamesPage(ctx context.Context, playerID string, page int) (paginate.Result[model.GameRef], error)
	Earned(ctx context.Context, playerID string, gameID int64) ([]model.Earned, error)
}
