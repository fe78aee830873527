package service

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"

	"GameStatsSync/internal/model"

	"github.com/sirupsen/logrus"
)

// xboxTitleNoise Xbox 标题里的版本后缀，搜索 trueachievements 前去掉
var xboxTitleNoise = func() []string {
	noise := []string{
		"ùÑû", "(Xbox Series X|S Edition)", "(Windows 10)", "(Xbox One)", "(Windows)",
		"(Xbox Series)", "(Xbox)", " (for Windows 10)", "Xbox One", "Xbox Series X|S",
		"(Xbox Series X|S)", "[Windows]", "(Asian version)", "(Xbox Version)", "(Game Preview)",
		"(PC)", "Series X|S", "(X1)", "(QUByte Classics)",
	}
	// 长的先替换，避免 "Xbox One" 先于 "(Xbox One)" 命中留下括号
	slices.SortStableFunc(noise, func(a, b string) int { return len(b) - len(a) })
	return noise
}()

// cleanTitle 去掉平台后缀后的搜索标题
func cleanTitle(p model.PlatformType, title string) string {
	if p != model.PlatformXbox {
		return title
	}
	for _, n := range xboxTitleNoise {
		title = strings.ReplaceAll(title, n, "")
	}
	return strings.Join(strings.Fields(title), " ")
}

// syncBackfill 元数据缺失的游戏 → 二级数据源搜索 → 模糊匹配 → 只填充为 NULL 的字段
func (s *SyncService) syncBackfill(ctx context.Context) (Totals, error) {
	p := s.platform()

	job := Job[model.Game]{
		Name: CrawlBackfill,
		Discover: func(ctx context.Context) ([]model.Game, error) {
			if s.sources.Details == nil {
				return nil, errors.New("未配置元数据补全数据源")
			}
			return s.store.GamesMissingDetails(ctx, p)
		},
		Process: func(ctx context.Context, game model.Game) (Totals, error) {
			totals := Totals{}
			log := s.log().WithField("game_id", game.GameID)
			title := cleanTitle(p, game.Title)

			hits, err := retry(ctx, s, func(ctx context.Context) ([]model.SearchHit, error) {
				return s.sources.Details.Search(ctx, title)
			})
			if err != nil {
				return totals, err
			}
			titles := make([]string, 0, len(hits))
			for _, h := range hits {
				titles = append(titles, h.Title)
			}
			best, ok := s.matcher.BestMatch(title, titles)
			if !ok {
				totals["backfill_unmatched"]++
				log.WithField("title", title).Debug("没有匹配的搜索结果，保持为空")
				return totals, nil
			}
			hit := hits[slices.IndexFunc(hits, func(h model.SearchHit) bool { return h.Title == best })]

			details, err := retry(ctx, s, func(ctx context.Context) (model.GameDetails, error) {
				return s.sources.Details.Details(ctx, hit)
			})
			if err != nil {
				return totals, err
			}
			if details.Empty() {
				log.WithFields(logrus.Fields{"title": title, "match": best}).Debug("匹配页面没有可用的元数据")
				return totals, nil
			}
			n, err := s.store.FillGameDetails(ctx, p, game.GameID, details)
			totals["games_filled"] += int(n)
			return totals, err
		},
		Key: func(g model.Game) string { return strconv.FormatInt(g.GameID, 10) },
	}
	return Run(ctx, s.engine, job)
}
