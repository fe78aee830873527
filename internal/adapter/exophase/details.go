package exophase

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/PuerkitoBio/goquery"
)

func (a *Adapter) detailsPage(ctx context.Context, ref model.GameRef) (*goquery.Document, error) {
	if ref.URL == "" {
		return nil, fmt.Errorf("游戏 %d 没有详情页地址", ref.GameID)
	}
	payload, err := a.fetcher.Fetch(ctx, ref.URL, transport.ExpectHTML)
	if err != nil {
		return nil, fmt.Errorf("获取详情页失败: %w", err)
	}
	return payload.Document()
}

// parseAwards div#awards li[id]；Xbox 带点数，PS 的等级来自奖杯图标 class 的最后一段
func (a *Adapter) parseAwards(doc *goquery.Document, gameID int64) []model.Achievement {
	var achievements []model.Achievement
	doc.Find("div#awards li[id]").Each(func(_ int, li *goquery.Selection) {
		slug, _ := li.Attr("id")
		ach := model.Achievement{
			AchievementID: model.AchievementID(gameID, slug),
			GameID:        gameID,
			Title:         strings.TrimSpace(li.Find("div.award-title a").First().Text()),
		}
		if desc := strings.TrimSpace(li.Find("div.award-description p").First().Text()); desc != "" {
			ach.Description = &desc
		}

		points := li.Find("div.award-points").First()
		if n, err := strconv.Atoi(strings.TrimSpace(points.Find("span").First().Text())); err == nil {
			ach.Points = &n
		} else if rarity := trophyRarity(points.Find("i").First()); rarity != "" {
			ach.Rarity = &rarity
		}
		achievements = append(achievements, ach)
	})
	return achievements
}

// trophyRarity "trophy-icon trophy-gold" → Gold
func trophyRarity(icon *goquery.Selection) string {
	classes := strings.Fields(icon.AttrOr("class", ""))
	if len(classes) == 0 {
		return ""
	}
	parts := strings.Split(classes[len(classes)-1], "-")
	last := parts[len(parts)-1]
	if last == "" {
		return ""
	}
	return strings.ToUpper(last[:1]) + strings.ToLower(last[1:])
}
