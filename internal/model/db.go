package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// 三个平台共用同一组表结构，表名统一带 schema 前缀（steam.games 等），通过 db.Table() 指定

type Game struct {
	GameID             int64           `gorm:"column:game_id;primaryKey;autoIncrement:false;comment:平台原生游戏ID"`
	Title              string          `gorm:"column:title;type:text;not null;comment:游戏标题"`
	Platform           *string         `gorm:"column:platform;type:varchar(32);comment:PS平台细分（PS4/PS5/PS Vita）"`
	Developers         TextList        `gorm:"column:developers;comment:开发商"`
	Publishers         TextList        `gorm:"column:publishers;comment:发行商"`
	Genres             TextList        `gorm:"column:genres;comment:类型"`
	SupportedLanguages TextList        `gorm:"column:supported_languages;comment:支持语言"`
	ReleaseDate        *datatypes.Date `gorm:"column:release_date;comment:发售日期"`
}

type Achievement struct {
	AchievementID string  `gorm:"column:achievement_id;primaryKey;type:text;comment:{game_id}_{平台内部标识}"`
	GameID        int64   `gorm:"column:game_id;not null;index;comment:所属游戏"`
	Title         string  `gorm:"column:title;type:text;comment:成就标题"`
	Description   *string `gorm:"column:description;type:text;comment:成就描述"`
	Rarity        *string `gorm:"column:rarity;type:varchar(16);comment:PS奖杯等级"`
	Points        *int    `gorm:"column:points;comment:Xbox成就点数"`
}

type Player struct {
	PlayerID string     `gorm:"column:player_id;primaryKey;type:text;comment:平台原生玩家ID"`
	Nickname *string    `gorm:"column:nickname;type:text;comment:昵称"`
	Country  *string    `gorm:"column:country;type:text;comment:国家"`
	Created  *time.Time `gorm:"column:created;comment:账号创建时间"`
}

type History struct {
	PlayerID      string     `gorm:"column:player_id;primaryKey;type:text"`
	AchievementID string     `gorm:"column:achievement_id;primaryKey;type:text"`
	AcquiredAt    *time.Time `gorm:"column:date_acquired;comment:获得时间"`
}

type PurchasedGames struct {
	PlayerID string   `gorm:"column:player_id;primaryKey;type:text"`
	Library  Int8List `gorm:"column:library;comment:已购游戏ID，NULL表示资料私密"`
}

type Price struct {
	GameID       int64               `gorm:"column:game_id;primaryKey;autoIncrement:false"`
	DateAcquired datatypes.Date      `gorm:"column:date_acquired;primaryKey;comment:采集日期"`
	USD          decimal.NullDecimal `gorm:"column:usd;type:numeric(10,2)"`
	EUR          decimal.NullDecimal `gorm:"column:eur;type:numeric(10,2)"`
	GBP          decimal.NullDecimal `gorm:"column:gbp;type:numeric(10,2)"`
	JPY          decimal.NullDecimal `gorm:"column:jpy;type:numeric(10,2)"`
	RUB          decimal.NullDecimal `gorm:"column:rub;type:numeric(10,2)"`
}

type Review struct {
	ReviewID uint64          `gorm:"column:review_id;primaryKey;autoIncrement;comment:自增主键ID"`
	PlayerID string          `gorm:"column:player_id;type:text;not null;uniqueIndex:uk_review_player_game"`
	GameID   int64           `gorm:"column:game_id;not null;uniqueIndex:uk_review_player_game"`
	Review   string          `gorm:"column:review;type:text"`
	Helpful  int             `gorm:"column:helpful;default:0"`
	Funny    int             `gorm:"column:funny;default:0"`
	Awards   int             `gorm:"column:awards;default:0"`
	Posted   *datatypes.Date `gorm:"column:posted"`
}

type Friends struct {
	PlayerID string   `gorm:"column:player_id;primaryKey;type:text"`
	Friends  TextList `gorm:"column:friends;comment:好友ID，NULL表示好友列表不公开"`
}

type PrivateSteamID struct {
	PlayerID string `gorm:"column:player_id;primaryKey;type:text"`
}

// 价格币种与列的对应，顺序即 Currencies 配置顺序
var PriceColumns = []string{"usd", "eur", "gbp", "jpy", "rub"}

// SetByIndex 按币种下标写入价格
func (p *Price) SetByIndex(i int, v decimal.NullDecimal) {
	switch i {
	case 0:
		p.USD = v
	case 1:
		p.EUR = v
	case 2:
		p.GBP = v
	case 3:
		p.JPY = v
	case 4:
		p.RUB = v
	}
}

// HasAny 是否至少有一个币种有价格
func (p *Price) HasAny() bool {
	return p.USD.Valid || p.EUR.Valid || p.GBP.Valid || p.JPY.Valid || p.RUB.Valid
}

// Day 当天日期（UTC）
func Day(t time.Time) datatypes.Date {
	y, m, d := t.UTC().Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
