package repository

import (
	"context"
	"fmt"

	"GameStatsSync/internal/model"

	"gorm.io/datatypes"
)

// 以下查询是各采集任务的断点：已经处理过的实体不会再出现在结果里

func (r *GameRepository) GameIDs(ctx context.Context, p model.PlatformType) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).Table(model.Table(p, model.TableGames)).Pluck("game_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询游戏ID失败: %w", err)
	}
	return ids, nil
}

func (r *GameRepository) AchievementIDs(ctx context.Context, p model.PlatformType) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Table(model.Table(p, model.TableAchievements)).Pluck("achievement_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询成就ID失败: %w", err)
	}
	return ids, nil
}

func (r *GameRepository) GamesWithAchievements(ctx context.Context, p model.PlatformType) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Table(model.Table(p, model.TableAchievements)).
		Distinct("game_id").
		Pluck("game_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("查询有成就的游戏失败: %w", err)
	}
	return ids, nil
}

func (r *GameRepository) GamesWithoutAchievements(ctx context.Context, p model.PlatformType) ([]model.Game, error) {
	var games []model.Game
	err := r.db.WithContext(ctx).
		Table(model.Table(p, model.TableGames) + " AS g").
		Where("NOT EXISTS (SELECT 1 FROM " + model.Table(p, model.TableAchievements) + " a WHERE a.game_id = g.game_id)").
		Order("g.game_id").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("查询无成就的游戏失败: %w", err)
	}
	return games, nil
}

// PlayersWithoutLibrary 随机顺序，中途中断时已处理的玩家也具有代表性
func (r *GameRepository) PlayersWithoutLibrary(ctx context.Context, p model.PlatformType) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table(model.Table(p, model.TablePlayers)+" AS pl").
		Where("NOT EXISTS (SELECT 1 FROM "+model.Table(p, model.TablePurchasedGames)+" pg WHERE pg.player_id = pl.player_id)").
		Order("RANDOM()").
		Pluck("pl.player_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询待采集库存的玩家失败: %w", err)
	}
	return ids, nil
}

func (r *GameRepository) PlayersWithoutReviews(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Table(model.Table(model.PlatformSteam, model.TablePlayers)+" AS pl").
		Where("NOT EXISTS (SELECT 1 FROM "+model.Table(model.PlatformSteam, model.TableReviews)+" rv WHERE rv.player_id = pl.player_id)").
		Where("NOT EXISTS (SELECT 1 FROM "+model.Table(model.PlatformSteam, model.TablePrivateSteamID)+" ps WHERE ps.player_id = pl.player_id)").
		Order("RANDOM()").
		Pluck("pl.player_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("查询待采集评测的玩家失败: %w", err)
	}
	return ids, nil
}

// GamesWithoutPrice 当天还没有报价的游戏
func (r *GameRepository) GamesWithoutPrice(ctx context.Context, p model.PlatformType, day datatypes.Date) ([]model.Game, error) {
	var games []model.Game
	err := r.db.WithContext(ctx).
		Table(model.Table(p, model.TableGames)+" AS g").
		Where("NOT EXISTS (SELECT 1 FROM "+model.Table(p, model.TablePrices)+" pr WHERE pr.game_id = g.game_id AND pr.date_acquired = ?)", day).
		Order("g.game_id").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("查询待采集价格的游戏失败: %w", err)
	}
	return games, nil
}

func (r *GameRepository) GamesMissingDetails(ctx context.Context, p model.PlatformType) ([]model.Game, error) {
	var games []model.Game
	err := r.db.WithContext(ctx).
		Table(model.Table(p, model.TableGames)).
		Where("developers IS NULL OR publishers IS NULL OR genres IS NULL OR release_date IS NULL").
		Order("game_id").
		Find(&games).Error
	if err != nil {
		return nil, fmt.Errorf("查询元数据缺失的游戏失败: %w", err)
	}
	return games, nil
}
