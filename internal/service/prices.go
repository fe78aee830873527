package service

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// syncSteamPrices 今天还没有价格的游戏，每批 100 个按区域查询；批内每个游戏都写一行
func (s *SyncService) syncSteamPrices(ctx context.Context) (Totals, error) {
	adapter, err := s.steam()
	if err != nil {
		return nil, err
	}
	day := s.today()

	job := Job[[]int64]{
		Name: CrawlPrices,
		Discover: func(ctx context.Context) ([][]int64, error) {
			games, err := s.store.GamesWithoutPrice(ctx, model.PlatformSteam, day)
			if err != nil {
				return nil, err
			}
			ids := make([]int64, 0, len(games))
			for _, g := range games {
				ids = append(ids, g.GameID)
			}
			return interfaces.Chunk(ids, steamBatchSize), nil
		},
		Process: func(ctx context.Context, batch []int64) (Totals, error) {
			totals := Totals{}
			rows := make([]model.Price, len(batch))
			for i, id := range batch {
				rows[i] = model.Price{GameID: id, DateAcquired: day}
			}
			for i, region := range s.cfg.Currencies {
				prices, err := retry(ctx, s, func(ctx context.Context) (map[int64]decimal.NullDecimal, error) {
					return adapter.Prices(ctx, batch, region)
				})
				if err != nil {
					return totals, err
				}
				for j := range rows {
					if v, ok := prices[rows[j].GameID]; ok {
						rows[j].SetByIndex(i, v)
					}
				}
			}
			n, err := s.store.InsertPrices(ctx, model.PlatformSteam, rows)
			totals[model.TablePrices] += int(n)
			return totals, err
		},
		Key: func(batch []int64) string { return strconv.FormatInt(batch[0], 10) },
	}
	return Run(ctx, s.engine, job)
}

// storePlatform psprices 的平台参数
func storePlatform(p model.PlatformType, game model.Game) string {
	if p == model.PlatformXbox {
		return "XOne"
	}
	if game.Platform == nil {
		return ""
	}
	return strings.ReplaceAll(*game.Platform, " ", "")
}

// regionUnavailable Xbox 在 psprices 上没有日区
func regionUnavailable(p model.PlatformType, region string) bool {
	return p == model.PlatformXbox && strings.HasSuffix(region, "jp")
}

// syncStorePrices 按标题在价格站搜索，模糊匹配后取价；找不到的币种为 NULL，但每个游戏当天都写一行
func (s *SyncService) syncStorePrices(ctx context.Context) (Totals, error) {
	p := s.platform()
	day := s.today()

	job := Job[model.Game]{
		Name: CrawlPrices,
		Discover: func(ctx context.Context) ([]model.Game, error) {
			if s.sources.Prices == nil {
				return nil, errors.New("未配置价格数据源")
			}
			return s.store.GamesWithoutPrice(ctx, p, day)
		},
		Process: func(ctx context.Context, game model.Game) (Totals, error) {
			totals := Totals{}
			row := model.Price{GameID: game.GameID, DateAcquired: day}
			platform := storePlatform(p, game)
			for i, region := range s.cfg.Currencies {
				if regionUnavailable(p, region) {
					continue
				}
				price, err := s.matchPrice(ctx, region, platform, game.Title)
				if err != nil {
					if transport.Classify(err) == transport.OutcomeFatal {
						return totals, err
					}
					s.log().WithError(err).WithFields(logrus.Fields{"game_id": game.GameID, "region": region}).
						Warn("价格搜索失败，该币种记为空")
					continue
				}
				row.SetByIndex(i, price)
			}
			if !row.HasAny() {
				totals["prices_missing"]++
			}
			n, err := s.store.InsertPrices(ctx, p, []model.Price{row})
			totals[model.TablePrices] += int(n)
			return totals, err
		},
		Key: func(g model.Game) string { return strconv.FormatInt(g.GameID, 10) },
	}
	return Run(ctx, s.engine, job)
}

// matchPrice 只有带价格的候选参与匹配
func (s *SyncService) matchPrice(ctx context.Context, region, platform, title string) (decimal.NullDecimal, error) {
	candidates, err := retry(ctx, s, func(ctx context.Context) ([]model.PriceCandidate, error) {
		return s.sources.Prices.SearchPrices(ctx, region, platform, title)
	})
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	byTitle := map[string]decimal.NullDecimal{}
	titles := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !c.Price.Valid {
			continue
		}
		if _, ok := byTitle[c.Title]; !ok {
			byTitle[c.Title] = c.Price
			titles = append(titles, c.Title)
		}
	}
	best, ok := s.matcher.BestMatch(title, titles)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return byTitle[best], nil
}
