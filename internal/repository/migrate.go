package repository

import (
	"context"
	"fmt"

	"GameStatsSync/internal/model"

	"gorm.io/gorm"
)

// tableModel 表名与对应的 gorm 模型，按外键依赖顺序排列
type tableModel struct {
	name  string
	model any
}

func platformTables(p model.PlatformType) []tableModel {
	tables := []tableModel{
		{model.TableGames, &model.Game{}},
		{model.TableAchievements, &model.Achievement{}},
		{model.TablePlayers, &model.Player{}},
		{model.TableHistory, &model.History{}},
		{model.TablePurchasedGames, &model.PurchasedGames{}},
		{model.TablePrices, &model.Price{}},
	}
	if p == model.PlatformSteam {
		tables = append(tables,
			tableModel{model.TableReviews, &model.Review{}},
			tableModel{model.TableFriends, &model.Friends{}},
			tableModel{model.TablePrivateSteamID, &model.PrivateSteamID{}},
		)
	}
	return tables
}

// constraint 需要手工补的约束（AutoMigrate 不会为 Table() 指定的表建外键）
type constraint struct {
	table string
	name  string
	ddl   string
}

func platformConstraints(p model.PlatformType) []constraint {
	games := model.Table(p, model.TableGames)
	players := model.Table(p, model.TablePlayers)
	achievements := model.Table(p, model.TableAchievements)

	cs := []constraint{
		{model.TableAchievements, "fk_achievements_game", "FOREIGN KEY (game_id) REFERENCES " + games + " (game_id) ON DELETE CASCADE"},
		{model.TableHistory, "fk_history_player", "FOREIGN KEY (player_id) REFERENCES " + players + " (player_id) ON DELETE CASCADE"},
		{model.TableHistory, "fk_history_achievement", "FOREIGN KEY (achievement_id) REFERENCES " + achievements + " (achievement_id) ON DELETE CASCADE"},
		{model.TablePurchasedGames, "fk_purchased_player", "FOREIGN KEY (player_id) REFERENCES " + players + " (player_id) ON DELETE CASCADE"},
		{model.TablePrices, "fk_prices_game", "FOREIGN KEY (game_id) REFERENCES " + games + " (game_id) ON DELETE CASCADE"},
	}
	switch p {
	case model.PlatformSteam:
		cs = append(cs,
			constraint{model.TableReviews, "fk_reviews_player", "FOREIGN KEY (player_id) REFERENCES " + players + " (player_id) ON DELETE CASCADE"},
			constraint{model.TableReviews, "fk_reviews_game", "FOREIGN KEY (game_id) REFERENCES " + games + " (game_id) ON DELETE CASCADE"},
			constraint{model.TableFriends, "fk_friends_player", "FOREIGN KEY (player_id) REFERENCES " + players + " (player_id) ON DELETE CASCADE"},
			constraint{model.TablePrivateSteamID, "fk_private_player", "FOREIGN KEY (player_id) REFERENCES " + players + " (player_id) ON DELETE CASCADE"},
		)
	case model.PlatformPlayStation:
		cs = append(cs, constraint{model.TableAchievements, "ck_achievements_rarity",
			"CHECK (rarity IS NULL OR rarity IN ('Platinum', 'Gold', 'Silver', 'Bronze'))"})
	}
	return cs
}

// Migrate 建 schema、建表、补外键与 CHECK 约束；可重复执行
func Migrate(ctx context.Context, db *gorm.DB, platforms ...model.PlatformType) error {
	if len(platforms) == 0 {
		platforms = model.Platforms
	}
	db = db.WithContext(ctx)
	for _, p := range platforms {
		if err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + string(p)).Error; err != nil {
			return fmt.Errorf("创建schema %s失败: %w", p, err)
		}
		for _, t := range platformTables(p) {
			if err := db.Table(model.Table(p, t.name)).AutoMigrate(t.model); err != nil {
				return fmt.Errorf("迁移%s失败: %w", model.Table(p, t.name), err)
			}
		}
		for _, c := range platformConstraints(p) {
			if err := ensureConstraint(db, p, c); err != nil {
				return err
			}
		}
	}
	return nil
}

func ensureConstraint(db *gorm.DB, p model.PlatformType, c constraint) error {
	var count int64
	err := db.Raw(`SELECT COUNT(*) FROM pg_constraint con
		JOIN pg_namespace ns ON ns.oid = con.connamespace
		WHERE con.conname = ? AND ns.nspname = ?`, c.name, string(p)).Scan(&count).Error
	if err != nil {
		return fmt.Errorf("查询约束%s失败: %w", c.name, err)
	}
	if count > 0 {
		return nil
	}
	table := model.Table(p, c.table)
	if err := db.Exec("ALTER TABLE " + table + " ADD CONSTRAINT " + c.name + " " + c.ddl).Error; err != nil {
		return fmt.Errorf("添加约束%s.%s失败: %w", table, c.name, err)
	}
	return nil
}
