package service

import (
	"context"
	"strconv"
	"sync"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"
)

// syncLeaderboardPlayers 排行榜逐页 → 玩家资料页 → players；已完成的页记入快照
func (s *SyncService) syncLeaderboardPlayers(ctx context.Context) (Totals, error) {
	adapter, err := s.exophase()
	if err != nil {
		return nil, err
	}
	key := s.checkpointKey(CrawlPlayers)
	done := s.checkpoints.LoadIDSet(key)

	var mu sync.Mutex
	cached := map[int][]string{}

	job := Job[int]{
		Name: CrawlPlayers,
		Discover: func(ctx context.Context) ([]int, error) {
			first, err := retry(ctx, s, func(ctx context.Context) (paginate.Result[string], error) {
				return adapter.LeaderboardPage(ctx, 1)
			})
			if err != nil {
				return nil, err
			}
			cached[1] = first.Items
			var pages []int
			for n := 1; n <= max(first.Total, 1); n++ {
				if !done.Has(strconv.Itoa(n)) {
					pages = append(pages, n)
				}
			}
			return pages, nil
		},
		Process: func(ctx context.Context, page int) (Totals, error) {
			totals := Totals{}
			mu.Lock()
			urls, ok := cached[page]
			delete(cached, page)
			mu.Unlock()
			if !ok {
				res, err := retry(ctx, s, func(ctx context.Context) (paginate.Result[string], error) {
					return adapter.LeaderboardPage(ctx, page)
				})
				if err != nil {
					return totals, err
				}
				urls = res.Items
			}

			players := make([]model.Player, 0, len(urls))
			for _, u := range urls {
				player, err := retry(ctx, s, func(ctx context.Context) (model.Player, error) {
					return adapter.Profile(ctx, u)
				})
				if err != nil {
					if transport.Classify(err) == transport.OutcomeFatal {
						return totals, err
					}
					s.log().WithError(err).WithField("profile", u).Warn("获取玩家资料失败，跳过")
					continue
				}
				players = append(players, player)
			}
			if len(players) > 0 {
				n, err := s.store.InsertPlayers(ctx, s.platform(), players)
				if err != nil {
					return totals, err
				}
				totals[model.TablePlayers] += int(n)
			}
			done.Add(strconv.Itoa(page))
			return totals, nil
		},
		Checkpoint: func(ctx context.Context) error { return s.checkpoints.SaveIDSet(key, done) },
		Key:        strconv.Itoa,
	}
	return Run(ctx, s.engine, job)
}
