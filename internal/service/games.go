package service

import (
	"context"
	"errors"
	"strconv"

	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"

	"github.com/sirupsen/logrus"
)

// gameProgress 已处理游戏的进度：Steam 只记 appid，PS/Xbox 记 id → 详情页地址（历史采集刷新成就时复用）
type gameProgress struct {
	key  string
	ids  *checkpoint.IDSet
	urls *checkpoint.URLMap
}

func (s *SyncService) loadGameProgress() *gameProgress {
	g := &gameProgress{key: s.checkpointKey(CrawlGames)}
	if s.platform() == model.PlatformSteam {
		g.ids = s.checkpoints.LoadIDSet(g.key)
	} else {
		g.urls = s.checkpoints.LoadURLMap(g.key)
	}
	return g
}

func (g *gameProgress) has(id int64) bool {
	key := strconv.FormatInt(id, 10)
	if g.ids != nil {
		return g.ids.Has(key)
	}
	_, ok := g.urls.Get(key)
	return ok
}

func (g *gameProgress) mark(ref model.GameRef) {
	key := strconv.FormatInt(ref.GameID, 10)
	if g.ids != nil {
		g.ids.Add(key)
		return
	}
	g.urls.Set(key, ref.URL)
}

// url 游戏详情页地址，没有记录时返回空
func (g *gameProgress) url(id int64) string {
	if g.urls == nil {
		return ""
	}
	u, _ := g.urls.Get(strconv.FormatInt(id, 10))
	return u
}

func (s *SyncService) saveGameProgress(g *gameProgress) error {
	if g.ids != nil {
		return s.checkpoints.SaveIDSet(g.key, g.ids)
	}
	return s.checkpoints.SaveURLMap(g.key, g.urls)
}

// syncGames 游戏目录 → 详情页 → games + achievements
func (s *SyncService) syncGames(ctx context.Context) (Totals, error) {
	p := s.platform()
	adapter := s.sources.Platform
	progress := s.loadGameProgress()
	known := map[int64]bool{}

	job := Job[model.GameRef]{
		Name: CrawlGames,
		Discover: func(ctx context.Context) ([]model.GameRef, error) {
			ids, err := s.store.GameIDs(ctx, p)
			if err != nil {
				return nil, err
			}
			for _, id := range ids {
				known[id] = true
			}

			pages, pageErrs, err := paginate.Collect(ctx, s.driver(paginate.KnownExtent), 1, adapter.CatalogPage)
			if err != nil {
				return nil, err
			}
			for _, pageErr := range pageErrs {
				s.log().WithError(pageErr).Warn("目录页获取失败，跳过")
			}

			var refs []model.GameRef
			seen := map[int64]bool{}
			for _, page := range pages {
				for _, ref := range page.Items {
					if seen[ref.GameID] || progress.has(ref.GameID) {
						continue
					}
					seen[ref.GameID] = true
					refs = append(refs, ref)
				}
			}
			s.log().WithFields(logrus.Fields{"pages": len(pages), "pending": len(refs)}).Info("游戏目录获取完成")
			return refs, nil
		},
		Process: func(ctx context.Context, ref model.GameRef) (Totals, error) {
			totals := Totals{}
			bundle, err := retry(ctx, s, func(ctx context.Context) (*model.GameBundle, error) {
				return adapter.GameDetails(ctx, ref)
			})
			if err != nil {
				return totals, err
			}
			if bundle == nil {
				// 未发售、DLC 等；上游不再作为游戏收录的已有记录同步删除
				if known[ref.GameID] {
					n, err := s.store.DeleteGames(ctx, p, []int64{ref.GameID})
					if err != nil {
						return totals, err
					}
					totals["games_deleted"] += int(n)
				}
				progress.mark(ref)
				return totals, nil
			}

			n, err := s.store.InsertGames(ctx, p, []model.Game{bundle.Game})
			if err != nil {
				return totals, err
			}
			totals[model.TableGames] += int(n)

			if len(bundle.Achievements) > 0 {
				n, err := s.store.InsertAchievements(ctx, p, bundle.Achievements)
				if err != nil {
					return totals, err
				}
				totals[model.TableAchievements] += int(n)
			}
			progress.mark(ref)
			return totals, nil
		},
		Checkpoint: func(ctx context.Context) error { return s.saveGameProgress(progress) },
		Key:        func(ref model.GameRef) string { return strconv.FormatInt(ref.GameID, 10) },
	}
	return Run(ctx, s.engine, job)
}

// syncAchievements 还没有成就定义的游戏重新拉取成就
func (s *SyncService) syncAchievements(ctx context.Context) (Totals, error) {
	p := s.platform()
	progress := s.loadGameProgress()

	job := Job[model.GameRef]{
		Name: CrawlAchievements,
		Discover: func(ctx context.Context) ([]model.GameRef, error) {
			games, err := s.store.GamesWithoutAchievements(ctx, p)
			if err != nil {
				return nil, err
			}
			refs := make([]model.GameRef, 0, len(games))
			for _, g := range games {
				refs = append(refs, model.GameRef{GameID: g.GameID, Title: g.Title, URL: progress.url(g.GameID), Platform: g.Platform})
			}
			return refs, nil
		},
		Process: func(ctx context.Context, ref model.GameRef) (Totals, error) {
			totals := Totals{}
			_, err := s.refreshAchievements(ctx, ref, totals)
			if errors.Is(err, errNoAchievements) {
				return totals, nil
			}
			return totals, err
		},
		Key: func(ref model.GameRef) string { return strconv.FormatInt(ref.GameID, 10) },
	}
	return Run(ctx, s.engine, job)
}

var errNoAchievements = errors.New("game has no achievements")

// refreshAchievements 拉取并写入一个游戏的成就定义，返回写入后已知的成就ID
func (s *SyncService) refreshAchievements(ctx context.Context, ref model.GameRef, totals Totals) ([]string, error) {
	achievements, err := retry(ctx, s, func(ctx context.Context) ([]model.Achievement, error) {
		return s.sources.Platform.Achievements(ctx, ref)
	})
	if err != nil {
		return nil, err
	}
	if len(achievements) == 0 {
		return nil, errNoAchievements
	}
	n, err := s.store.InsertAchievements(ctx, s.platform(), achievements)
	if err != nil {
		return nil, err
	}
	totals[model.TableAchievements] += int(n)

	ids := make([]string, 0, len(achievements))
	for _, a := range achievements {
		ids = append(ids, a.AchievementID)
	}
	return ids, nil
}
