package psprices

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Searcher psprices.com 的游戏搜索页
type Searcher struct {
	cfg     *config.PlatformConfig
	fetcher transport.Fetcher
	logger  *logrus.Logger
}

func NewSearcher(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) *Searcher {
	return &Searcher{cfg: cfg, fetcher: fetcher, logger: logger}
}

// 货币符号与不换行空格
var priceNoise = strings.NewReplacer("$", "", "£", "", "€", "", "₽", "", "￥", "", "¥", "", "\u00a0", "", " ", "")

// SearchPrices 搜索结果中的标题与价格；region 为 region-us 这样的站点分区
func (s *Searcher) SearchPrices(ctx context.Context, region, platform, title string) ([]model.PriceCandidate, error) {
	u := fmt.Sprintf("%s/%s/games/?q=%s&platform=%s&show=games",
		strings.TrimRight(s.cfg.BaseURL, "/"), region, url.QueryEscape(title), url.QueryEscape(platform))
	payload, err := s.fetcher.Fetch(ctx, u, transport.ExpectHTML)
	if err != nil {
		return nil, fmt.Errorf("psprices 搜索失败: %w", err)
	}
	doc, err := payload.Document()
	if err != nil {
		return nil, err
	}

	var candidates []model.PriceCandidate
	doc.Find("div.grid.grid-cols-12.gap-3 > div.col-span-6").Each(func(_ int, card *goquery.Selection) {
		name := strings.TrimSpace(card.Find("span.line-clamp-2").First().Text())
		if name == "" {
			return
		}
		priceTag := card.Find("span.inline-flex.items-center").FilterFunction(func(_ int, sel *goquery.Selection) bool {
			return sel.HasClass("space-x-0.5")
		}).First()
		candidates = append(candidates, model.PriceCandidate{
			Title: name,
			Price: parsePrice(priceTag.Text(), region),
		})
	})
	s.logger.WithFields(logrus.Fields{"region": region, "title": title, "candidates": len(candidates)}).Debug("psprices 搜索完成")
	return candidates, nil
}

// parsePrice "$19.99" / "19,99 €" / "￥1.980" / "Free"；无法解析时 Valid=false
func parsePrice(raw, region string) decimal.NullDecimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.NullDecimal{}
	}
	if strings.EqualFold(raw, "Free") {
		return decimal.NewNullDecimal(decimal.Zero)
	}
	price := priceNoise.Replace(strings.ReplaceAll(raw, ",", "."))
	if strings.HasSuffix(region, "jp") {
		price = strings.ReplaceAll(price, ".", "")
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}
