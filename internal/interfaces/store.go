package interfaces

import (
	"context"

	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/model"

	"gorm.io/datatypes"
)

// Store 通用数据库操作接口。Insert* 均为 insert-or-ignore，返回实际写入行数；
// 空批次返回 repository.ErrEmptyBatch
type Store interface {
	InsertGames(ctx context.Context, p model.PlatformType, games []model.Game) (int64, error)
	InsertAchievements(ctx context.Context, p model.PlatformType, achievements []model.Achievement) (int64, error)
	InsertPlayers(ctx context.Context, p model.PlatformType, players []model.Player) (int64, error)
	InsertHistory(ctx context.Context, p model.PlatformType, history []model.History) (int64, error)
	InsertPurchased(ctx context.Context, p model.PlatformType, purchased []model.PurchasedGames) (int64, error)
	InsertPrices(ctx context.Context, p model.PlatformType, prices []model.Price) (int64, error)
	InsertReviews(ctx context.Context, reviews []model.Review) (int64, error)
	InsertFriends(ctx context.Context, friends []model.Friends) (int64, error)
	InsertPrivate(ctx context.Context, players []model.PrivateSteamID) (int64, error)

	DeletePurchased(ctx context.Context, p model.PlatformType, playerIDs []string) (int64, error)
	DeleteGames(ctx context.Context, p model.PlatformType, gameIDs []int64) (int64, error)

	// 断点续跑用的“尚未处理”查询
	GameIDs(ctx context.Context, p model.PlatformType) ([]int64, error)
	AchievementIDs(ctx context.Context, p model.PlatformType) ([]string, error)
	GamesWithAchievements(ctx context.Context, p model.PlatformType) ([]int64, error)
	GamesWithoutAchievements(ctx context.Context, p model.PlatformType) ([]model.Game, error)
	PlayersWithoutLibrary(ctx context.Context, p model.PlatformType) ([]string, error)
	PlayersWithoutReviews(ctx context.Context) ([]string, error)
	GamesWithoutPrice(ctx context.Context, p model.PlatformType, day datatypes.Date) ([]model.Game, error)
	GamesMissingDetails(ctx context.Context, p model.PlatformType) ([]model.Game, error)

	// FillGameDetails 只填充当前为 NULL 的字段
	FillGameDetails(ctx context.Context, p model.PlatformType, gameID int64, d model.GameDetails) (int64, error)
}

// Checkpointer 进度快照读写
type Checkpointer interface {
	LoadIDSet(key string) *checkpoint.IDSet
	LoadURLMap(key string) *checkpoint.URLMap
	SaveIDSet(key string, set *checkpoint.IDSet) error
	SaveURLMap(key string, m *checkpoint.URLMap) error
}
