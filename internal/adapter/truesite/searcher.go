package truesite

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"
	"GameStatsSync/internal/utils/scrape"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Searcher TrueTrophies / TrueAchievements，两个站点页面结构相同
type Searcher struct {
	cfg     *config.PlatformConfig
	fetcher transport.Fetcher
	logger  *logrus.Logger
}

func NewSearcher(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) *Searcher {
	return &Searcher{cfg: cfg, fetcher: fetcher, logger: logger}
}

func (s *Searcher) base() string { return strings.TrimRight(s.cfg.BaseURL, "/") }

func (s *Searcher) document(ctx context.Context, u string) (*goquery.Document, error) {
	payload, err := s.fetcher.Fetch(ctx, u, transport.ExpectHTML)
	if err != nil {
		return nil, err
	}
	return payload.Document()
}

// Search 搜索结果表中的游戏；只有一个结果时站点直接跳到游戏页，此时返回搜索地址本身
func (s *Searcher) Search(ctx context.Context, title string) ([]model.SearchHit, error) {
	u := s.base() + "/searchresults.aspx?search=" + url.QueryEscape(title)
	doc, err := s.document(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("搜索失败: %w", err)
	}

	table := doc.Find("table.maintable.leaderboard").First()
	if table.Length() == 0 {
		if scrape.HasGameDetails(doc) {
			return []model.SearchHit{{Title: title, URL: u}}, nil
		}
		return nil, nil
	}

	var hits []model.SearchHit
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return
		}
		link := row.Find("td.gamerwide a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		hits = append(hits, model.SearchHit{Title: strings.TrimSpace(link.Text()), URL: s.absolute(href)})
	})
	s.logger.WithFields(logrus.Fields{"title": title, "hits": len(hits)}).Debug("搜索完成")
	return hits, nil
}

func (s *Searcher) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return s.base() + "/" + strings.TrimLeft(href, "/")
}

// Details 游戏页上的元数据块
func (s *Searcher) Details(ctx context.Context, hit model.SearchHit) (model.GameDetails, error) {
	doc, err := s.document(ctx, hit.URL)
	if err != nil {
		return model.GameDetails{}, fmt.Errorf("获取游戏页失败: %w", err)
	}
	return scrape.GameDetails(doc), nil
}
