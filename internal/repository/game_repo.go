package repository

import (
	"context"
	"errors"
	"fmt"

	"GameStatsSync/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrEmptyBatch 空批次：通常意味着上游页面结构变化导致什么都没提取到
var ErrEmptyBatch = errors.New("empty batch")

// insertBatchSize 单条 INSERT 语句的最大行数
const insertBatchSize = 500

// GameRepository 三个平台共用的入库逻辑
type GameRepository struct {
	db *gorm.DB
}

func NewGameRepository(db *gorm.DB) *GameRepository {
	return &GameRepository{db: db}
}

// insertOrIgnore 按主键 insert-or-ignore；整批在一个事务里，失败只回滚本批
func insertOrIgnore[T any](ctx context.Context, db *gorm.DB, table string, rows []T) (int64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("写入%s: %w", table, ErrEmptyBatch)
	}
	res := db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(rows, insertBatchSize)
	if res.Error != nil {
		return 0, fmt.Errorf("写入%s失败: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

func (r *GameRepository) InsertGames(ctx context.Context, p model.PlatformType, games []model.Game) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TableGames), games)
}

func (r *GameRepository) InsertAchievements(ctx context.Context, p model.PlatformType, achievements []model.Achievement) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TableAchievements), achievements)
}

func (r *GameRepository) InsertPlayers(ctx context.Context, p model.PlatformType, players []model.Player) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TablePlayers), players)
}

func (r *GameRepository) InsertHistory(ctx context.Context, p model.PlatformType, history []model.History) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TableHistory), history)
}

func (r *GameRepository) InsertPurchased(ctx context.Context, p model.PlatformType, purchased []model.PurchasedGames) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TablePurchasedGames), purchased)
}

func (r *GameRepository) InsertPrices(ctx context.Context, p model.PlatformType, prices []model.Price) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(p, model.TablePrices), prices)
}

// InsertReviews 评测、好友、私密玩家只存在于 steam schema
func (r *GameRepository) InsertReviews(ctx context.Context, reviews []model.Review) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(model.PlatformSteam, model.TableReviews), reviews)
}

func (r *GameRepository) InsertFriends(ctx context.Context, friends []model.Friends) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(model.PlatformSteam, model.TableFriends), friends)
}

func (r *GameRepository) InsertPrivate(ctx context.Context, players []model.PrivateSteamID) (int64, error) {
	return insertOrIgnore(ctx, r.db, model.Table(model.PlatformSteam, model.TablePrivateSteamID), players)
}

// DeletePurchased 补偿：历史写入失败时撤销玩家的已处理标记
func (r *GameRepository) DeletePurchased(ctx context.Context, p model.PlatformType, playerIDs []string) (int64, error) {
	if len(playerIDs) == 0 {
		return 0, nil
	}
	table := model.Table(p, model.TablePurchasedGames)
	res := r.db.WithContext(ctx).Table(table).Where("player_id IN ?", playerIDs).Delete(&model.PurchasedGames{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除%s失败: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteGames 上游不再收录的游戏，成就与历史随外键级联删除
func (r *GameRepository) DeleteGames(ctx context.Context, p model.PlatformType, gameIDs []int64) (int64, error) {
	if len(gameIDs) == 0 {
		return 0, nil
	}
	table := model.Table(p, model.TableGames)
	res := r.db.WithContext(ctx).Table(table).Where("game_id IN ?", gameIDs).Delete(&model.Game{})
	if res.Error != nil {
		return 0, fmt.Errorf("删除%s失败: %w", table, res.Error)
	}
	return res.RowsAffected, nil
}

// FillGameDetails 只填充当前为 NULL 的列（COALESCE），已有数据不会被覆盖
func (r *GameRepository) FillGameDetails(ctx context.Context, p model.PlatformType, gameID int64, d model.GameDetails) (int64, error) {
	updates := map[string]any{}
	if len(d.Developers) > 0 {
		updates["developers"] = gorm.Expr("COALESCE(developers, ?)", model.TextList(d.Developers))
	}
	if len(d.Publishers) > 0 {
		updates["publishers"] = gorm.Expr("COALESCE(publishers, ?)", model.TextList(d.Publishers))
	}
	if len(d.Genres) > 0 {
		updates["genres"] = gorm.Expr("COALESCE(genres, ?)", model.TextList(d.Genres))
	}
	if d.ReleaseDate != nil {
		updates["release_date"] = gorm.Expr("COALESCE(release_date, ?)", *model.DateOf(d.ReleaseDate))
	}
	if len(updates) == 0 {
		return 0, nil
	}

	table := model.Table(p, model.TableGames)
	res := r.db.WithContext(ctx).Table(table).Where("game_id = ?", gameID).Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("补全%s元数据失败: %w, game_id: %d", table, res.Error, gameID)
	}
	return res.RowsAffected, nil
}
