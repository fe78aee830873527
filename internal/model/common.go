package model

import (
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgtype"
)

// PlatformType 平台类型枚举，同时也是数据库 schema 名
type PlatformType string

const (
	PlatformSteam       PlatformType = "steam"
	PlatformPlayStation PlatformType = "playstation"
	PlatformXbox        PlatformType = "xbox"
)

// Platforms 全部平台
var Platforms = []PlatformType{PlatformSteam, PlatformPlayStation, PlatformXbox}

// ParsePlatform 校验平台名
func ParsePlatform(s string) (PlatformType, error) {
	for _, p := range Platforms {
		if string(p) == s {
			return p, nil
		}
	}
	return "", fmt.Errorf("未知平台: %s", s)
}

// 表名（不含 schema）
const (
	TableGames          = "games"
	TableAchievements   = "achievements"
	TablePlayers        = "players"
	TableHistory        = "history"
	TablePurchasedGames = "purchased_games"
	TablePrices         = "prices"
	TableReviews        = "reviews"
	TableFriends        = "friends"
	TablePrivateSteamID = "private_steamids"
)

// Table 带 schema 的完整表名，如 steam.games
func Table(p PlatformType, table string) string {
	return string(p) + "." + table
}

// TextList text[] 列，nil 表示 NULL
type TextList []string

func (l TextList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	var arr pgtype.TextArray
	if err := arr.Set([]string(l)); err != nil {
		return nil, err
	}
	return arr.Value()
}

func (l *TextList) Scan(src any) error {
	var arr pgtype.TextArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	if arr.Status != pgtype.Present {
		*l = nil
		return nil
	}
	out := []string{}
	if err := arr.AssignTo(&out); err != nil {
		return err
	}
	*l = out
	return nil
}

func (TextList) GormDataType() string { return "text[]" }

// Int8List bigint[] 列（游戏库），nil 表示 NULL
type Int8List []int64

func (l Int8List) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	var arr pgtype.Int8Array
	if err := arr.Set([]int64(l)); err != nil {
		return nil, err
	}
	return arr.Value()
}

func (l *Int8List) Scan(src any) error {
	var arr pgtype.Int8Array
	if err := arr.Scan(src); err != nil {
		return err
	}
	if arr.Status != pgtype.Present {
		*l = nil
		return nil
	}
	out := []int64{}
	if err := arr.AssignTo(&out); err != nil {
		return err
	}
	*l = out
	return nil
}

func (Int8List) GormDataType() string { return "bigint[]" }

// NullIfEmpty 空切片转为 NULL
func NullIfEmpty(values []string) TextList {
	if len(values) == 0 {
		return nil
	}
	return TextList(values)
}
