package steam

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/shopspring/decimal"
)

type summariesResponse struct {
	Response struct {
		Players []struct {
			SteamID        string `json:"steamid"`
			PersonaName    string `json:"personaname"`
			LocCountryCode string `json:"loccountrycode"`
			TimeCreated    int64  `json:"timecreated"`
		} `json:"players"`
	} `json:"response"`
}

// PlayerSummaries 一次最多 100 个 steamid
func (a *Adapter) PlayerSummaries(ctx context.Context, playerIDs []string) ([]model.Player, error) {
	if len(playerIDs) == 0 {
		return nil, nil
	}
	q := url.Values{"steamids": {strings.Join(playerIDs, ",")}}
	var resp summariesResponse
	if err := a.getJSON(ctx, a.api("/ISteamUser/GetPlayerSummaries/v2/", q), &resp); err != nil {
		return nil, fmt.Errorf("获取玩家资料失败: %w", err)
	}
	players := make([]model.Player, 0, len(resp.Response.Players))
	for _, p := range resp.Response.Players {
		player := model.Player{PlayerID: p.SteamID}
		if p.PersonaName != "" {
			name := p.PersonaName
			player.Nickname = &name
		}
		if country, ok := CountryName(p.LocCountryCode); ok {
			player.Country = &country
		}
		if p.TimeCreated > 0 {
			created := time.Unix(p.TimeCreated, 0).UTC()
			player.Created = &created
		}
		players = append(players, player)
	}
	return players, nil
}

type friendListResponse struct {
	FriendsList struct {
		Friends []struct {
			SteamID string `json:"steamid"`
		} `json:"friends"`
	} `json:"friendslist"`
}

// FriendList 好友列表不公开时接口返回 401
func (a *Adapter) FriendList(ctx context.Context, playerID string) ([]string, error) {
	q := url.Values{"steamid": {playerID}, "relationship": {"friend"}}
	var resp friendListResponse
	if err := a.getJSON(ctx, a.api("/ISteamUser/GetFriendList/v1/", q), &resp); err != nil {
		return nil, err
	}
	friends := make([]string, 0, len(resp.FriendsList.Friends))
	for _, f := range resp.FriendsList.Friends {
		friends = append(friends, f.SteamID)
	}
	return friends, nil
}

type ownedGamesResponse struct {
	Response struct {
		Games *[]struct {
			AppID int64 `json:"appid"`
		} `json:"games"`
	} `json:"response"`
}

// OwnedGames 资料私密时 response 为空对象，按 ErrForbidden 处理
func (a *Adapter) OwnedGames(ctx context.Context, playerID string) ([]int64, error) {
	q := url.Values{"steamid": {playerID}, "include_played_free_games": {"1"}}
	var resp ownedGamesResponse
	if err := a.getJSON(ctx, a.api("/IPlayerService/GetOwnedGames/v1/", q), &resp); err != nil {
		return nil, err
	}
	if resp.Response.Games == nil {
		return nil, fmt.Errorf("%w: 游戏库不公开 %s", transport.ErrForbidden, playerID)
	}
	library := make([]int64, 0, len(*resp.Response.Games))
	for _, g := range *resp.Response.Games {
		library = append(library, g.AppID)
	}
	return library, nil
}

type playerAchievementsResponse struct {
	PlayerStats struct {
		Achievements []struct {
			APIName    string `json:"apiname"`
			Achieved   int    `json:"achieved"`
			UnlockTime int64  `json:"unlocktime"`
		} `json:"achievements"`
	} `json:"playerstats"`
}

// PlayerAchievements 只保留已解锁的成就
func (a *Adapter) PlayerAchievements(ctx context.Context, playerID string, gameID int64) ([]model.Earned, error) {
	q := url.Values{"steamid": {playerID}, "appid": {strconv.FormatInt(gameID, 10)}}
	var resp playerAchievementsResponse
	if err := a.getJSON(ctx, a.api("/ISteamUserStats/GetPlayerAchievements/v1/", q), &resp); err != nil {
		return nil, err
	}
	var earned []model.Earned
	for _, ach := range resp.PlayerStats.Achievements {
		if ach.Achieved != 1 {
			continue
		}
		earned = append(earned, model.Earned{Slug: ach.APIName, UnlockedAt: time.Unix(ach.UnlockTime, 0).UTC()})
	}
	return earned, nil
}

// Prices 商店价格，price_overview.final 单位为分；免费游戏 data 为空数组，不出现在结果中
func (a *Adapter) Prices(ctx context.Context, gameIDs []int64, region string) (map[int64]decimal.NullDecimal, error) {
	ids := make([]string, 0, len(gameIDs))
	for _, id := range gameIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	resp, err := a.appDetails(ctx, url.Values{
		"appids":  {strings.Join(ids, ",")},
		"cc":      {region},
		"filters": {"price_overview"},
	})
	if err != nil {
		return nil, fmt.Errorf("获取价格失败(%s): %w", region, err)
	}
	prices := make(map[int64]decimal.NullDecimal, len(resp))
	for _, id := range gameIDs {
		var data appData
		if !resp[strconv.FormatInt(id, 10)].decode(&data) || data.PriceOverview == nil {
			continue
		}
		prices[id] = decimal.NewNullDecimal(decimal.New(data.PriceOverview.Final, -2))
	}
	return prices, nil
}
