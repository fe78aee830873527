package model

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GameRef 目录/玩家游戏列表中的一条游戏引用
type GameRef struct {
	GameID   int64
	Title    string
	URL      string  // 详情页地址（Exophase），Steam 为空
	Platform *string // PS4/PS5/PS Vita 等
}

// GameDetails 详情页提取出的元数据，缺失字段为 nil
type GameDetails struct {
	Developers         []string
	Publishers         []string
	Genres             []string
	SupportedLanguages []string
	ReleaseDate        *time.Time
}

// Empty 所有字段都缺失
func (d GameDetails) Empty() bool {
	return d.Developers == nil && d.Publishers == nil && d.Genres == nil && d.ReleaseDate == nil
}

// GameBundle 单个游戏详情页的全部产出
type GameBundle struct {
	Game         Game
	Achievements []Achievement
}

// NewGame 由引用和详情组装游戏行
func NewGame(ref GameRef, d GameDetails) Game {
	g := Game{
		GameID:             ref.GameID,
		Title:              ref.Title,
		Platform:           ref.Platform,
		Developers:         NullIfEmpty(d.Developers),
		Publishers:         NullIfEmpty(d.Publishers),
		Genres:             NullIfEmpty(d.Genres),
		SupportedLanguages: NullIfEmpty(d.SupportedLanguages),
		ReleaseDate:        DateOf(d.ReleaseDate),
	}
	return g
}

// Earned 玩家已获得的一个成就（平台内部标识 + 获得时间）
type Earned struct {
	Slug       string
	UnlockedAt time.Time
}

// SearchHit 二级数据源搜索结果
type SearchHit struct {
	Title string
	URL   string
}

// PriceCandidate 价格站搜索结果中的一条
type PriceCandidate struct {
	Title string
	// Price 解析失败时 Valid=false，Free 为 0
	Price decimal.NullDecimal
}

// AchievementID 成就主键统一为 {game_id}_{slug}
func AchievementID(gameID int64, slug string) string {
	return strconv.FormatInt(gameID, 10) + "_" + slug
}

// DateOf time.Time 转 datatypes.Date 指针
func DateOf(t *time.Time) *datatypes.Date {
	if t == nil {
		return nil
	}
	d := Day(*t)
	return &d
}
