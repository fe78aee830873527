package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
)

// knownAchievements 已入库的成就ID；缺失时按游戏刷新一次成就定义
type knownAchievements struct {
	ids       *checkpoint.IDSet
	mu        sync.Mutex
	refreshed map[int64]*sync.Once
}

func (s *SyncService) loadKnownAchievements(ctx context.Context) (*knownAchievements, error) {
	ids, err := s.store.AchievementIDs(ctx, s.platform())
	if err != nil {
		return nil, err
	}
	return &knownAchievements{ids: checkpoint.NewIDSet(ids...), refreshed: map[int64]*sync.Once{}}, nil
}

// resolve 把已获得的成就转为 history 行，未知成就先刷新所属游戏，刷新失败的丢弃
func (s *SyncService) resolve(ctx context.Context, known *knownAchievements, playerID string, ref model.GameRef,
	earned []model.Earned, totals Totals) []model.History {
	rows := make([]model.History, 0, len(earned))
	for _, e := range earned {
		id := model.AchievementID(ref.GameID, e.Slug)
		if !known.ids.Has(id) {
			known.once(ref.GameID).Do(func() {
				ids, err := s.refreshAchievements(ctx, ref, totals)
				if err != nil {
					s.log().WithError(err).WithFields(logrus.Fields{"game_id": ref.GameID, "achievement_id": id}).
						Warn("刷新成就定义失败，丢弃该游戏的未知成就")
				}
				known.add(ids)
			})
		}
		if !known.ids.Has(id) {
			totals["history_dropped"]++
			continue
		}
		at := e.UnlockedAt
		rows = append(rows, model.History{PlayerID: playerID, AchievementID: id, AcquiredAt: &at})
	}
	return rows
}

// once 每个游戏只刷新一次，并发的调用方等待同一次刷新完成
func (k *knownAchievements) once(gameID int64) *sync.Once {
	k.mu.Lock()
	defer k.mu.Unlock()
	o, ok := k.refreshed[gameID]
	if !ok {
		o = &sync.Once{}
		k.refreshed[gameID] = o
	}
	return o
}

func (k *knownAchievements) add(ids []string) {
	for _, id := range ids {
		k.ids.Add(id)
	}
}

// recordLibrary 先写 purchased_games 再写 history；history 写入失败时删除刚写入的 purchased 行，
// 保证玩家下次仍会被重新处理
func (s *SyncService) recordLibrary(ctx context.Context, playerID string, library []int64, history []model.History, totals Totals) error {
	p := s.platform()
	var lib model.Int8List
	if len(library) > 0 {
		lib = library
	}
	n, err := s.store.InsertPurchased(ctx, p, []model.PurchasedGames{{PlayerID: playerID, Library: lib}})
	if err != nil {
		return err
	}
	totals[model.TablePurchasedGames] += int(n)
	if len(history) == 0 {
		return nil
	}

	n, err = s.store.InsertHistory(ctx, p, history)
	if err == nil {
		totals[model.TableHistory] += int(n)
		return nil
	}
	deleted, delErr := s.store.DeletePurchased(context.WithoutCancel(ctx), p, []string{playerID})
	if delErr != nil {
		return errors.Join(err, delErr)
	}
	totals[model.TablePurchasedGames] -= int(deleted)
	s.log().WithError(err).WithField("player_id", playerID).Warn("写入成就历史失败，已回滚游戏库")
	return err
}

// syncSteamHistory 已购游戏 → 每个有成就的游戏的已解锁成就
func (s *SyncService) syncSteamHistory(ctx context.Context) (Totals, error) {
	adapter, err := s.steam()
	if err != nil {
		return nil, err
	}
	var known *knownAchievements
	withAchievements := map[int64]bool{}

	job := Job[string]{
		Name: CrawlHistory,
		Discover: func(ctx context.Context) ([]string, error) {
			k, err := s.loadKnownAchievements(ctx)
			if err != nil {
				return nil, err
			}
			known = k
			games, err := s.store.GamesWithAchievements(ctx, model.PlatformSteam)
			if err != nil {
				return nil, err
			}
			for _, id := range games {
				withAchievements[id] = true
			}
			return s.store.PlayersWithoutLibrary(ctx, model.PlatformSteam)
		},
		Process: func(ctx context.Context, playerID string) (Totals, error) {
			totals := Totals{}
			log := s.log().WithField("player_id", playerID)
			owned, err := retry(ctx, s, func(ctx context.Context) ([]int64, error) {
				return adapter.OwnedGames(ctx, playerID)
			})
			if errors.Is(err, transport.ErrForbidden) {
				log.Debug("资料私密，记录空游戏库")
				return totals, s.recordLibrary(ctx, playerID, nil, nil, totals)
			}
			if err != nil {
				return totals, err
			}

			var history []model.History
			for _, gameID := range owned {
				if !withAchievements[gameID] {
					continue
				}
				earned, err := retry(ctx, s, func(ctx context.Context) ([]model.Earned, error) {
					return adapter.PlayerAchievements(ctx, playerID, gameID)
				})
				if errors.Is(err, transport.ErrForbidden) {
					// 游戏统计不公开：整个游戏库按私密处理
					log.Debug("游戏统计不公开，清空游戏库")
					owned, history = nil, nil
					break
				}
				if err != nil {
					if transport.Classify(err) == transport.OutcomeFatal {
						return totals, err
					}
					log.WithError(err).WithField("game_id", gameID).Warn("获取玩家成就失败，跳过该游戏")
					continue
				}
				history = append(history, s.resolve(ctx, known, playerID, model.GameRef{GameID: gameID}, earned, totals)...)
			}
			return totals, s.recordLibrary(ctx, playerID, owned, history, totals)
		},
	}
	return Run(ctx, s.engine, job)
}

func (s *SyncService) exophase() (interfaces.ExophaseAdapter, error) {
	a, ok := s.sources.Platform.(interfaces.ExophaseAdapter)
	if !ok {
		return nil, errors.New("数据源不支持Exophase玩家接口")
	}
	return a, nil
}

// syncExophaseHistory 玩家游戏列表 → 未知游戏先入库 → 每个游戏的已获得成就
func (s *SyncService) syncExophaseHistory(ctx context.Context) (Totals, error) {
	adapter, err := s.exophase()
	if err != nil {
		return nil, err
	}
	p := s.platform()
	progress := s.loadGameProgress()
	var known *knownAchievements
	var games *checkpoint.IDSet

	job := Job[string]{
		Name: CrawlHistory,
		Discover: func(ctx context.Context) ([]string, error) {
			k, err := s.loadKnownAchievements(ctx)
			if err != nil {
				return nil, err
			}
			known = k
			ids, err := s.store.GameIDs(ctx, p)
			if err != nil {
				return nil, err
			}
			games = checkpoint.NewIDSet()
			for _, id := range ids {
				games.Add(strconv.FormatInt(id, 10))
			}
			return s.store.PlayersWithoutLibrary(ctx, p)
		},
		Process: func(ctx context.Context, playerID string) (Totals, error) {
			totals := Totals{}
			log := s.log().WithField("player_id", playerID)

			var refs []model.GameRef
			fetch := func(ctx context.Context, page int) (paginate.Result[model.GameRef], error) {
				return adapter.PlayerGamesPage(ctx, playerID, page)
			}
			for page, err := range paginate.Pages(ctx, s.driver(paginate.UntilEmpty), 1, fetch) {
				if err != nil {
					return totals, err
				}
				refs = append(refs, page.Items...)
			}

			library := make([]int64, 0, len(refs))
			var history []model.History
			for _, ref := range refs {
				library = append(library, ref.GameID)
				if !games.Has(strconv.FormatInt(ref.GameID, 10)) {
					if err := s.insertUnknownGame(ctx, ref, progress, games, known, totals); err != nil {
						if transport.Classify(err) == transport.OutcomeFatal {
							return totals, err
						}
						log.WithError(err).WithField("game_id", ref.GameID).Warn("未知游戏入库失败，跳过其成就")
						continue
					}
				}
				if ref.URL == "" {
					ref.URL = progress.url(ref.GameID)
				}

				earned, err := retry(ctx, s, func(ctx context.Context) ([]model.Earned, error) {
					return adapter.Earned(ctx, playerID, ref.GameID)
				})
				if err != nil {
					if transport.Classify(err) == transport.OutcomeFatal {
						return totals, err
					}
					log.WithError(err).WithField("game_id", ref.GameID).Warn("获取已获得成就失败，跳过该游戏")
					continue
				}
				history = append(history, s.resolve(ctx, known, playerID, ref, earned, totals)...)
			}
			return totals, s.recordLibrary(ctx, playerID, library, history, totals)
		},
		Checkpoint: func(ctx context.Context) error { return s.saveGameProgress(progress) },
	}
	return Run(ctx, s.engine, job)
}

// insertUnknownGame 玩家库中出现的新游戏：抓取详情页，游戏与成就入库后加入已知集合
func (s *SyncService) insertUnknownGame(ctx context.Context, ref model.GameRef, progress *gameProgress,
	games *checkpoint.IDSet, known *knownAchievements, totals Totals) error {
	bundle, err := retry(ctx, s, func(ctx context.Context) (*model.GameBundle, error) {
		return s.sources.Platform.GameDetails(ctx, ref)
	})
	if err != nil {
		return err
	}
	if bundle == nil {
		return errors.New("详情页不是已发售的游戏")
	}
	n, err := s.store.InsertGames(ctx, s.platform(), []model.Game{bundle.Game})
	if err != nil {
		return err
	}
	totals[model.TableGames] += int(n)
	if len(bundle.Achievements) > 0 {
		n, err := s.store.InsertAchievements(ctx, s.platform(), bundle.Achievements)
		if err != nil {
			return err
		}
		totals[model.TableAchievements] += int(n)
		for _, a := range bundle.Achievements {
			known.ids.Add(a.AchievementID)
		}
	}
	games.Add(strconv.FormatInt(ref.GameID, 10))
	progress.mark(ref)
	return nil
}
