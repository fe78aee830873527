package exophase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// LeaderboardPage 排行榜页上的玩家资料页地址；Total 取自分页栏倒数第二项
func (a *Adapter) LeaderboardPage(ctx context.Context, page int) (paginate.Result[string], error) {
	u := fmt.Sprintf("%s/%s/leaderboard/page/%d/", a.cfg.StoreURL, a.environment, page)
	payload, err := a.fetcher.Fetch(ctx, u, transport.ExpectHTML)
	if err != nil {
		return paginate.Result[string]{}, fmt.Errorf("获取排行榜第%d页失败: %w", page, err)
	}
	doc, err := payload.Document()
	if err != nil {
		return paginate.Result[string]{}, err
	}

	var profiles []string
	doc.Find("table.table tr.player td.username_inner a").Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && href != "" {
			profiles = append(profiles, a.absolute(href))
		}
	})

	total := 1
	items := doc.Find("ul.pagination li")
	if n := items.Length(); n >= 2 {
		if last, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(items.Eq(n-2).Text()), ",", "")); err == nil {
			total = last
		}
	}
	return paginate.Result[string]{Items: profiles, Total: total}, nil
}

func (a *Adapter) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(a.cfg.StoreURL, "/") + "/" + strings.TrimLeft(href, "/")
}

// Profile 资料页头部的 data-playerid / data-username
func (a *Adapter) Profile(ctx context.Context, profileURL string) (model.Player, error) {
	payload, err := a.fetcher.Fetch(ctx, profileURL, transport.ExpectHTML)
	if err != nil {
		return model.Player{}, err
	}
	doc, err := payload.Document()
	if err != nil {
		return model.Player{}, err
	}
	header := doc.Find("section.section-profile-header div").First()
	playerID := strings.TrimSpace(header.AttrOr("data-playerid", ""))
	if playerID == "" {
		return model.Player{}, fmt.Errorf("%w: %s: 资料页缺少 data-playerid", transport.ErrMalformedResponse, profileURL)
	}
	player := model.Player{PlayerID: playerID}
	if name := strings.TrimSpace(header.AttrOr("data-username", "")); name != "" {
		player.Nickname = &name
	}
	return player, nil
}

type playerGamesResponse struct {
	Success bool `json:"success"`
	Games   []struct {
		MasterID any `json:"master_id"`
		Meta     struct {
			Title          string         `json:"title"`
			EndpointAwards *string        `json:"endpoint_awards"`
			Platforms      []platformName `json:"platforms"`
		} `json:"meta"`
	} `json:"games"`
}

// PlayerGamesPage 玩家游戏列表；endpoint_awards 为空的游戏在源站没有数据，跳过
func (a *Adapter) PlayerGamesPage(ctx context.Context, playerID string, page int) (paginate.Result[model.GameRef], error) {
	u := fmt.Sprintf("%s/public/player/%s/games?page=%d&environment=%s&sort=1", a.cfg.BaseURL, playerID, page, a.environment)
	var resp playerGamesResponse
	if err := a.getJSON(ctx, u, &resp); err != nil {
		return paginate.Result[model.GameRef]{}, err
	}
	if !resp.Success {
		return paginate.Result[model.GameRef]{Done: true}, nil
	}

	refs := make([]model.GameRef, 0, len(resp.Games))
	for _, g := range resp.Games {
		id, err := cast.ToInt64E(g.MasterID)
		if err != nil || id <= 0 {
			continue
		}
		if g.Meta.EndpointAwards == nil || *g.Meta.EndpointAwards == "" {
			a.logger.WithFields(logrus.Fields{"game_id": id, "title": g.Meta.Title}).Warn("源站没有该游戏的数据，跳过")
			continue
		}
		detailsURL, _, _ := strings.Cut(*g.Meta.EndpointAwards, "#")
		refs = append(refs, model.GameRef{
			GameID:   id,
			Title:    g.Meta.Title,
			URL:      detailsURL,
			Platform: a.subPlatform(g.Meta.Platforms),
		})
	}
	// 只有 success=false 才结束翻页
	return paginate.Result[model.GameRef]{Items: refs, More: len(resp.Games) > 0}, nil
}

type earnedResponse struct {
	List []struct {
		AwardID   any `json:"awardid"`
		Timestamp any `json:"timestamp"`
	} `json:"list"`
}

// Earned 玩家在某个游戏中获得的成就，awardid 与详情页 li 的 id 一致
func (a *Adapter) Earned(ctx context.Context, playerID string, gameID int64) ([]model.Earned, error) {
	u := fmt.Sprintf("%s/public/player/%s/game/%d/earned", a.cfg.BaseURL, playerID, gameID)
	var resp earnedResponse
	if err := a.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	earned := make([]model.Earned, 0, len(resp.List))
	for _, e := range resp.List {
		slug := cast.ToString(e.AwardID)
		if slug == "" {
			continue
		}
		earned = append(earned, model.Earned{
			Slug:       slug,
			UnlockedAt: time.Unix(cast.ToInt64(e.Timestamp), 0).UTC(),
		})
	}
	return earned, nil
}
