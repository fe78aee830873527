package steam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"GameStatsSync/internal/adapter"
	"GameStatsSync/internal/config"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
)

func init() {
	adapter.Register(model.PlatformSteam, NewSteamAdapter)
}

// Adapter Steam Web API + 商店接口 + 社区评测页
type Adapter struct {
	cfg     *config.PlatformConfig
	fetcher transport.Fetcher
	logger  *logrus.Logger
	now     func() time.Time
}

func NewSteamAdapter(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) interfaces.PlatformAdapter {
	return &Adapter{cfg: cfg, fetcher: fetcher, logger: logger, now: time.Now}
}

var _ interfaces.SteamAdapter = (*Adapter)(nil)

func (a *Adapter) GetType() model.PlatformType { return model.PlatformSteam }

// api Web API 地址，自动带上 key
func (a *Adapter) api(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	if a.cfg.AuthKey != "" {
		query.Set("key", a.cfg.AuthKey)
	}
	return a.cfg.BaseURL + path + "?" + query.Encode()
}

func (a *Adapter) getJSON(ctx context.Context, u string, v any) error {
	payload, err := a.fetcher.Fetch(ctx, u, transport.ExpectJSON)
	if err != nil {
		return err
	}
	return payload.DecodeJSON(v)
}

type appListResponse struct {
	AppList struct {
		Apps []struct {
			AppID int64  `json:"appid"`
			Name  string `json:"name"`
		} `json:"apps"`
	} `json:"applist"`
}

// CatalogPage GetAppList 一次返回全部应用，只有一页
func (a *Adapter) CatalogPage(ctx context.Context, page int) (paginate.Result[model.GameRef], error) {
	if page > 1 {
		return paginate.Result[model.GameRef]{Total: 1, Done: true}, nil
	}
	var resp appListResponse
	if err := a.getJSON(ctx, a.api("/ISteamApps/GetAppList/v2/", nil), &resp); err != nil {
		return paginate.Result[model.GameRef]{}, fmt.Errorf("获取应用列表失败: %w", err)
	}
	refs := make([]model.GameRef, 0, len(resp.AppList.Apps))
	for _, app := range resp.AppList.Apps {
		refs = append(refs, model.GameRef{GameID: app.AppID, Title: app.Name})
	}
	return paginate.Result[model.GameRef]{Items: refs, Total: 1}, nil
}

// appDetails appdetails 接口的单个条目；data 在免费游戏的价格查询里是空数组
type appDetails struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

type appData struct {
	Type               string   `json:"type"`
	Name               string   `json:"name"`
	Developers         []string `json:"developers"`
	Publishers         []string `json:"publishers"`
	SupportedLanguages string   `json:"supported_languages"`
	Genres             []struct {
		Description string `json:"description"`
	} `json:"genres"`
	ReleaseDate struct {
		ComingSoon bool   `json:"coming_soon"`
		Date       string `json:"date"`
	} `json:"release_date"`
	Achievements *struct {
		Total int `json:"total"`
	} `json:"achievements"`
	PriceOverview *struct {
		Final int64 `json:"final"`
	} `json:"price_overview"`
}

// decode 成功且 data 是对象时返回 true
func (d appDetails) decode(v *appData) bool {
	if !d.Success || !bytes.HasPrefix(bytes.TrimSpace(d.Data), []byte("{")) {
		return false
	}
	return json.Unmarshal(d.Data, v) == nil
}

func (a *Adapter) appDetails(ctx context.Context, query url.Values) (map[string]appDetails, error) {
	u := a.cfg.StoreURL + "/api/appdetails/?" + query.Encode()
	var resp map[string]appDetails
	if err := a.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GameDetails 只有已发售、类型为 game 的应用才会入库
func (a *Adapter) GameDetails(ctx context.Context, ref model.GameRef) (*model.GameBundle, error) {
	id := strconv.FormatInt(ref.GameID, 10)
	resp, err := a.appDetails(ctx, url.Values{"appids": {id}})
	if err != nil {
		return nil, fmt.Errorf("获取应用详情失败: %w", err)
	}
	var data appData
	if !resp[id].decode(&data) || data.ReleaseDate.ComingSoon || data.Type != "game" {
		return nil, nil
	}

	details := model.GameDetails{
		Developers:         data.Developers,
		Publishers:         data.Publishers,
		SupportedLanguages: parseLanguages(data.SupportedLanguages),
		ReleaseDate:        parseReleaseDate(data.ReleaseDate.Date),
	}
	for _, g := range data.Genres {
		details.Genres = append(details.Genres, g.Description)
	}
	title := data.Name
	if title == "" {
		title = ref.Title
	}
	bundle := &model.GameBundle{Game: model.NewGame(model.GameRef{GameID: ref.GameID, Title: title}, details)}

	if data.Achievements != nil && data.Achievements.Total > 0 {
		achievements, err := a.Achievements(ctx, ref)
		if err != nil {
			// 成就定义留给 achievements 任务补采
			a.logger.WithError(err).WithField("game_id", ref.GameID).Warn("获取成就定义失败")
		}
		bundle.Achievements = achievements
	}
	return bundle, nil
}

type schemaAchievement struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type schemaResponse struct {
	Game struct {
		AvailableGameStats struct {
			Achievements []schemaAchievement `json:"achievements"`
		} `json:"availableGameStats"`
		Achievements []schemaAchievement `json:"achievements"`
	} `json:"game"`
}

// Achievements GetSchemaForGame，成就ID为 {appid}_{apiname}
func (a *Adapter) Achievements(ctx context.Context, ref model.GameRef) ([]model.Achievement, error) {
	q := url.Values{"appid": {strconv.FormatInt(ref.GameID, 10)}}
	var resp schemaResponse
	if err := a.getJSON(ctx, a.api("/ISteamUserStats/GetSchemaForGame/v2/", q), &resp); err != nil {
		return nil, fmt.Errorf("获取成就定义失败: %w", err)
	}
	list := resp.Game.AvailableGameStats.Achievements
	if len(list) == 0 {
		list = resp.Game.Achievements
	}
	achievements := make([]model.Achievement, 0, len(list))
	for _, s := range list {
		ach := model.Achievement{
			AchievementID: model.AchievementID(ref.GameID, s.Name),
			GameID:        ref.GameID,
			Title:         s.DisplayName,
		}
		if d := strings.TrimSpace(s.Description); d != "" {
			ach.Description = &d
		}
		achievements = append(achievements, ach)
	}
	return achievements, nil
}

// parseLanguages "English<strong>*</strong>, French<br>..." → [English French]
func parseLanguages(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part, _, _ = strings.Cut(part, "<")
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var releaseLayouts = []string{"2 Jan, 2006", "Jan 2, 2006"}

func parseReleaseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range releaseLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
