package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"GameStatsSync/internal/model"
	"GameStatsSync/internal/repository"

	"gorm.io/datatypes"
)

var errForeignKey = errors.New("violates foreign key constraint")

// memSchema 一个平台 schema 的内存版本
type memSchema struct {
	games        map[int64]model.Game
	achievements map[string]model.Achievement
	players      map[string]model.Player
	history      map[string]model.History
	purchased    map[string]model.PurchasedGames
	prices       map[string]model.Price
}

// memStore 内存版 Store：主键 insert-or-ignore，外键不满足时整批拒绝，删除游戏时级联
type memStore struct {
	mu      sync.Mutex
	schemas map[model.PlatformType]*memSchema
	reviews map[string]model.Review
	friends map[string]model.Friends
	private map[string]bool

	failHistory bool
	deletes     int
}

func newMemStore() *memStore {
	s := &memStore{
		schemas: map[model.PlatformType]*memSchema{},
		reviews: map[string]model.Review{},
		friends: map[string]model.Friends{},
		private: map[string]bool{},
	}
	for _, p := range model.Platforms {
		s.schemas[p] = &memSchema{
			games:        map[int64]model.Game{},
			achievements: map[string]model.Achievement{},
			players:      map[string]model.Player{},
			history:      map[string]model.History{},
			purchased:    map[string]model.PurchasedGames{},
			prices:       map[string]model.Price{},
		}
	}
	return s
}

func insertRows[K comparable, V any](table map[K]V, rows []V, key func(V) K, check func(V) error) (int64, error) {
	if len(rows) == 0 {
		return 0, repository.ErrEmptyBatch
	}
	if check != nil {
		for _, r := range rows {
			if err := check(r); err != nil {
				return 0, err
			}
		}
	}
	var n int64
	for _, r := range rows {
		k := key(r)
		if _, ok := table[k]; ok {
			continue
		}
		table[k] = r
		n++
	}
	return n, nil
}

func (s *memStore) schema(p model.PlatformType) *memSchema { return s.schemas[p] }

func (s *memStore) InsertGames(_ context.Context, p model.PlatformType, games []model.Game) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRows(s.schema(p).games, games, func(g model.Game) int64 { return g.GameID }, nil)
}

func (s *memStore) InsertAchievements(_ context.Context, p model.PlatformType, achievements []model.Achievement) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	return insertRows(sc.achievements, achievements, func(a model.Achievement) string { return a.AchievementID },
		func(a model.Achievement) error {
			if _, ok := sc.games[a.GameID]; !ok {
				return fmt.Errorf("achievement %s: %w", a.AchievementID, errForeignKey)
			}
			return nil
		})
}

func (s *memStore) InsertPlayers(_ context.Context, p model.PlatformType, players []model.Player) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertRows(s.schema(p).players, players, func(pl model.Player) string { return pl.PlayerID }, nil)
}

func (s *memStore) InsertHistory(_ context.Context, p model.PlatformType, history []model.History) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failHistory && len(history) > 0 {
		return 0, errors.New("history insert failed")
	}
	sc := s.schema(p)
	return insertRows(sc.history, history, func(h model.History) string { return h.PlayerID + "|" + h.AchievementID },
		func(h model.History) error {
			if _, ok := sc.players[h.PlayerID]; !ok {
				return fmt.Errorf("history player %s: %w", h.PlayerID, errForeignKey)
			}
			if _, ok := sc.achievements[h.AchievementID]; !ok {
				return fmt.Errorf("history achievement %s: %w", h.AchievementID, errForeignKey)
			}
			return nil
		})
}

func (s *memStore) InsertPurchased(_ context.Context, p model.PlatformType, purchased []model.PurchasedGames) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	return insertRows(sc.purchased, purchased, func(pg model.PurchasedGames) string { return pg.PlayerID },
		func(pg model.PurchasedGames) error {
			if _, ok := sc.players[pg.PlayerID]; !ok {
				return fmt.Errorf("purchased player %s: %w", pg.PlayerID, errForeignKey)
			}
			return nil
		})
}

func (s *memStore) InsertPrices(_ context.Context, p model.PlatformType, prices []model.Price) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	return insertRows(sc.prices, prices, func(pr model.Price) string { return dayKey(pr.GameID, pr.DateAcquired) },
		func(pr model.Price) error {
			if _, ok := sc.games[pr.GameID]; !ok {
				return fmt.Errorf("price game %d: %w", pr.GameID, errForeignKey)
			}
			return nil
		})
}

func dayKey(id int64, day datatypes.Date) string {
	y, m, d := time.Time(day).Date()
	return fmt.Sprintf("%d|%04d-%02d-%02d", id, y, m, d)
}

func (s *memStore) InsertReviews(_ context.Context, reviews []model.Review) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(model.PlatformSteam)
	return insertRows(s.reviews, reviews, func(r model.Review) string { return fmt.Sprintf("%s|%d", r.PlayerID, r.GameID) },
		func(r model.Review) error {
			if _, ok := sc.players[r.PlayerID]; !ok {
				return fmt.Errorf("review player %s: %w", r.PlayerID, errForeignKey)
			}
			if _, ok := sc.games[r.GameID]; !ok {
				return fmt.Errorf("review game %d: %w", r.GameID, errForeignKey)
			}
			return nil
		})
}

func (s *memStore) InsertFriends(_ context.Context, friends []model.Friends) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(model.PlatformSteam)
	return insertRows(s.friends, friends, func(f model.Friends) string { return f.PlayerID },
		func(f model.Friends) error {
			if _, ok := sc.players[f.PlayerID]; !ok {
				return fmt.Errorf("friends player %s: %w", f.PlayerID, errForeignKey)
			}
			return nil
		})
}

func (s *memStore) InsertPrivate(_ context.Context, players []model.PrivateSteamID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(players) == 0 {
		return 0, repository.ErrEmptyBatch
	}
	var n int64
	for _, pl := range players {
		if !s.private[pl.PlayerID] {
			s.private[pl.PlayerID] = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeletePurchased(_ context.Context, p model.PlatformType, playerIDs []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	var n int64
	for _, id := range playerIDs {
		if _, ok := sc.purchased[id]; ok {
			delete(sc.purchased, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) DeleteGames(_ context.Context, p model.PlatformType, gameIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	sc := s.schema(p)
	var n int64
	for _, id := range gameIDs {
		if _, ok := sc.games[id]; !ok {
			continue
		}
		delete(sc.games, id)
		n++
		for aid, a := range sc.achievements {
			if a.GameID != id {
				continue
			}
			delete(sc.achievements, aid)
			for hk, h := range sc.history {
				if h.AchievementID == aid {
					delete(sc.history, hk)
				}
			}
		}
		for k, pr := range sc.prices {
			if pr.GameID == id {
				delete(sc.prices, k)
			}
		}
	}
	return n, nil
}

func (s *memStore) GameIDs(_ context.Context, p model.PlatformType) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.schema(p).games)), nil
}

func (s *memStore) AchievementIDs(_ context.Context, p model.PlatformType) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.schema(p).achievements)), nil
}

func (s *memStore) GamesWithAchievements(_ context.Context, p model.PlatformType) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[int64]bool{}
	for _, a := range s.schema(p).achievements {
		seen[a.GameID] = true
	}
	return slices.Sorted(maps.Keys(seen)), nil
}

func (s *memStore) gamesWhere(p model.PlatformType, keep func(model.Game) bool) []model.Game {
	sc := s.schema(p)
	var out []model.Game
	for _, id := range slices.Sorted(maps.Keys(sc.games)) {
		if keep(sc.games[id]) {
			out = append(out, sc.games[id])
		}
	}
	return out
}

func (s *memStore) GamesWithoutAchievements(_ context.Context, p model.PlatformType) ([]model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	has := map[int64]bool{}
	for _, a := range s.schema(p).achievements {
		has[a.GameID] = true
	}
	return s.gamesWhere(p, func(g model.Game) bool { return !has[g.GameID] }), nil
}

func (s *memStore) PlayersWithoutLibrary(_ context.Context, p model.PlatformType) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	var ids []string
	for _, id := range slices.Sorted(maps.Keys(sc.players)) {
		if _, ok := sc.purchased[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) PlayersWithoutReviews(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reviewed := map[string]bool{}
	for _, r := range s.reviews {
		reviewed[r.PlayerID] = true
	}
	var ids []string
	for _, id := range slices.Sorted(maps.Keys(s.schema(model.PlatformSteam).players)) {
		if !reviewed[id] && !s.private[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) GamesWithoutPrice(_ context.Context, p model.PlatformType, day datatypes.Date) ([]model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	return s.gamesWhere(p, func(g model.Game) bool {
		_, ok := sc.prices[dayKey(g.GameID, day)]
		return !ok
	}), nil
}

func (s *memStore) GamesMissingDetails(_ context.Context, p model.PlatformType) ([]model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gamesWhere(p, func(g model.Game) bool {
		return g.Developers == nil || g.Publishers == nil || g.Genres == nil || g.ReleaseDate == nil
	}), nil
}

func (s *memStore) FillGameDetails(_ context.Context, p model.PlatformType, gameID int64, d model.GameDetails) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	g, ok := sc.games[gameID]
	if !ok {
		return 0, nil
	}
	if g.Developers == nil {
		g.Developers = model.NullIfEmpty(d.Developers)
	}
	if g.Publishers == nil {
		g.Publishers = model.NullIfEmpty(d.Publishers)
	}
	if g.Genres == nil {
		g.Genres = model.NullIfEmpty(d.Genres)
	}
	if g.ReleaseDate == nil {
		g.ReleaseDate = model.DateOf(d.ReleaseDate)
	}
	sc.games[gameID] = g
	return 1, nil
}

// count 表行数
func (s *memStore) count(p model.PlatformType, table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc := s.schema(p)
	switch table {
	case model.TableGames:
		return len(sc.games)
	case model.TableAchievements:
		return len(sc.achievements)
	case model.TablePlayers:
		return len(sc.players)
	case model.TableHistory:
		return len(sc.history)
	case model.TablePurchasedGames:
		return len(sc.purchased)
	case model.TablePrices:
		return len(sc.prices)
	case model.TableReviews:
		return len(s.reviews)
	case model.TableFriends:
		return len(s.friends)
	case model.TablePrivateSteamID:
		return len(s.private)
	}
	return 0
}
