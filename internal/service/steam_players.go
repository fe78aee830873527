package service

import (
	"context"
	"errors"
	"maps"
	"slices"

	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
)

// steamBatchSize GetPlayerSummaries 每次最多 100 个id
const steamBatchSize = 100

// defaultSteamSeeds 滚雪球采集的初始种子
var defaultSteamSeeds = []string{
	"76561198039237628", "76561198029302470", "76561198025633383", "76561198196298282",
	"76561198117967228", "76561198080218537", "76561198146253210", "76561197970417960",
	"76561198083134207", "76561197972971221", "76561197990056992", "76561198043902016",
}

func (s *SyncService) steam() (interfaces.SteamAdapter, error) {
	a, ok := s.sources.Platform.(interfaces.SteamAdapter)
	if !ok {
		return nil, errors.New("数据源不支持Steam玩家接口")
	}
	return a, nil
}

// syncSteamPlayers 从种子出发按好友关系逐层扩展（滚雪球），每层一次引擎运行
func (s *SyncService) syncSteamPlayers(ctx context.Context) (Totals, error) {
	adapter, err := s.steam()
	if err != nil {
		return nil, err
	}
	pendingKey := s.checkpointKey(CrawlPlayers)
	visitedKey := pendingKey + "_visited"

	visited := s.checkpoints.LoadIDSet(visitedKey)
	frontier := s.checkpoints.LoadIDSet(pendingKey)
	if frontier.Len() == 0 && visited.Len() == 0 {
		frontier = checkpoint.NewIDSet(s.seeds...)
	}

	all := Totals{}
	for wave := 1; frontier.Len() > 0; wave++ {
		ids := slices.DeleteFunc(frontier.Slice(), visited.Has)
		if s.playerCap > 0 {
			left := s.playerCap - visited.Len()
			if left <= 0 {
				s.log().WithField("cap", s.playerCap).Info("已达到玩家数量上限，停止扩展")
				break
			}
			ids = ids[:min(len(ids), left)]
		}
		if len(ids) == 0 {
			break
		}

		next := checkpoint.NewIDSet()
		current := frontier
		save := func(ctx context.Context) error {
			pending := checkpoint.NewIDSet(next.Slice()...)
			for _, id := range current.Slice() {
				if !visited.Has(id) {
					pending.Add(id)
				}
			}
			if err := s.checkpoints.SaveIDSet(visitedKey, visited); err != nil {
				return err
			}
			return s.checkpoints.SaveIDSet(pendingKey, pending)
		}

		s.log().WithFields(logrus.Fields{"wave": wave, "players": len(ids)}).Info("开始新一层玩家扩展")
		job := Job[[]string]{
			Name: CrawlPlayers,
			Discover: func(ctx context.Context) ([][]string, error) {
				return slices.Collect(slices.Chunk(ids, steamBatchSize)), nil
			},
			Process: func(ctx context.Context, batch []string) (Totals, error) {
				return s.snowballBatch(ctx, adapter, batch, visited, current, next)
			},
			Checkpoint: save,
			Key:        func(batch []string) string { return batch[0] },
		}
		totals, err := Run(ctx, s.engine, job)
		all.Add(totals)
		if err != nil {
			if runErr, ok := IsAborted(err); ok {
				runErr.Totals = maps.Clone(all)
			}
			return all, err
		}
		frontier = next
	}
	return all, nil
}

// snowballBatch 一批玩家：资料 → players，好友列表 → friends，未访问过的好友进入下一层
func (s *SyncService) snowballBatch(ctx context.Context, adapter interfaces.SteamAdapter, batch []string,
	visited, current, next *checkpoint.IDSet) (Totals, error) {
	totals := Totals{}
	players, err := retry(ctx, s, func(ctx context.Context) ([]model.Player, error) {
		return adapter.PlayerSummaries(ctx, batch)
	})
	if err != nil {
		return totals, err
	}
	if len(players) > 0 {
		n, err := s.store.InsertPlayers(ctx, model.PlatformSteam, players)
		if err != nil {
			return totals, err
		}
		totals[model.TablePlayers] += int(n)
	}

	friends := make([]model.Friends, 0, len(players))
	for _, player := range players {
		list, err := retry(ctx, s, func(ctx context.Context) ([]string, error) {
			return adapter.FriendList(ctx, player.PlayerID)
		})
		switch {
		case errors.Is(err, transport.ErrForbidden):
			list = nil
		case transport.Classify(err) == transport.OutcomeFatal:
			return totals, err
		case err != nil:
			s.log().WithError(err).WithField("player_id", player.PlayerID).Warn("获取好友列表失败，跳过")
			continue
		}
		friends = append(friends, model.Friends{PlayerID: player.PlayerID, Friends: model.NullIfEmpty(list)})
		for _, id := range list {
			if !visited.Has(id) && !current.Has(id) {
				next.Add(id)
			}
		}
	}
	if len(friends) > 0 {
		n, err := s.store.InsertFriends(ctx, friends)
		if err != nil {
			return totals, err
		}
		totals[model.TableFriends] += int(n)
	}

	for _, id := range batch {
		visited.Add(id)
	}
	return totals, nil
}

// syncSteamReviews 逐个玩家翻页抓取评测，只保留库中已有的游戏；一条都没有的玩家记入 private_steamids
func (s *SyncService) syncSteamReviews(ctx context.Context) (Totals, error) {
	adapter, err := s.steam()
	if err != nil {
		return nil, err
	}
	known := map[int64]bool{}

	job := Job[string]{
		Name: CrawlReviews,
		Discover: func(ctx context.Context) ([]string, error) {
			ids, err := s.store.GameIDs(ctx, model.PlatformSteam)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				known[id] = true
			}
			return s.store.PlayersWithoutReviews(ctx)
		},
		Process: func(ctx context.Context, playerID string) (Totals, error) {
			totals := Totals{}
			var reviews []model.Review
			fetch := func(ctx context.Context, page int) (paginate.Result[model.Review], error) {
				return adapter.ReviewPage(ctx, playerID, page)
			}
			for page, err := range paginate.Pages(ctx, s.driver(paginate.UntilEmpty), 1, fetch) {
				if err != nil {
					return totals, err
				}
				for _, r := range page.Items {
					if known[r.GameID] {
						reviews = append(reviews, r)
					}
				}
			}

			if len(reviews) == 0 {
				n, err := s.store.InsertPrivate(ctx, []model.PrivateSteamID{{PlayerID: playerID}})
				totals[model.TablePrivateSteamID] += int(n)
				return totals, err
			}
			n, err := s.store.InsertReviews(ctx, reviews)
			totals[model.TableReviews] += int(n)
			return totals, err
		},
	}
	return Run(ctx, s.engine, job)
}
