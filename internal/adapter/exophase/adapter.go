package exophase

import (
	"context"
	"fmt"

	"GameStatsSync/internal/adapter"
	"GameStatsSync/internal/config"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/paginate"
	"GameStatsSync/internal/transport"
	"GameStatsSync/internal/utils/scrape"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

func init() {
	adapter.Register(model.PlatformPlayStation, NewPlayStationAdapter)
	adapter.Register(model.PlatformXbox, NewXboxAdapter)
}

// Adapter Exophase 公开接口 + 网页，PlayStation 与 Xbox 只差 environment
type Adapter struct {
	platform    model.PlatformType
	environment string // psn / xbox
	cfg         *config.PlatformConfig
	fetcher     transport.Fetcher
	logger      *logrus.Logger
}

func NewPlayStationAdapter(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) interfaces.PlatformAdapter {
	return &Adapter{platform: model.PlatformPlayStation, environment: "psn", cfg: cfg, fetcher: fetcher, logger: logger}
}

func NewXboxAdapter(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) interfaces.PlatformAdapter {
	return &Adapter{platform: model.PlatformXbox, environment: "xbox", cfg: cfg, fetcher: fetcher, logger: logger}
}

var _ interfaces.ExophaseAdapter = (*Adapter)(nil)

func (a *Adapter) GetType() model.PlatformType { return a.platform }

func (a *Adapter) getJSON(ctx context.Context, u string, v any) error {
	payload, err := a.fetcher.Fetch(ctx, u, transport.ExpectJSON)
	if err != nil {
		return err
	}
	return payload.DecodeJSON(v)
}

type platformName struct {
	Name string `json:"name"`
}

type archiveResponse struct {
	Games struct {
		Pages int `json:"pages"`
		List  []struct {
			MasterID       any            `json:"master_id"`
			Title          string         `json:"title"`
			EndpointAwards string         `json:"endpoint_awards"`
			Platforms      []platformName `json:"platforms"`
		} `json:"list"`
	} `json:"games"`
}

// CatalogPage 平台归档列表，第一页的 pages 即总页数
func (a *Adapter) CatalogPage(ctx context.Context, page int) (paginate.Result[model.GameRef], error) {
	u := fmt.Sprintf("%s/public/archive/platform/%s/page/%d?q=&sort=added", a.cfg.BaseURL, a.environment, page)
	var resp archiveResponse
	if err := a.getJSON(ctx, u, &resp); err != nil {
		return paginate.Result[model.GameRef]{}, fmt.Errorf("获取游戏归档第%d页失败: %w", page, err)
	}

	refs := make([]model.GameRef, 0, len(resp.Games.List))
	for _, g := range resp.Games.List {
		id, err := cast.ToInt64E(g.MasterID)
		if err != nil || id <= 0 || g.EndpointAwards == "" {
			a.logger.WithFields(logrus.Fields{"master_id": g.MasterID, "title": g.Title}).Debug("归档条目缺少ID或详情页，跳过")
			continue
		}
		refs = append(refs, model.GameRef{
			GameID:   id,
			Title:    g.Title,
			URL:      g.EndpointAwards,
			Platform: a.subPlatform(g.Platforms),
		})
	}
	return paginate.Result[model.GameRef]{Items: refs, Total: resp.Games.Pages}, nil
}

// subPlatform 只有 PlayStation 记录 PS4/PS5/PS Vita
func (a *Adapter) subPlatform(platforms []platformName) *string {
	if a.platform != model.PlatformPlayStation || len(platforms) == 0 || platforms[0].Name == "" {
		return nil
	}
	name := platforms[0].Name
	return &name
}

// GameDetails 详情页上的元数据与成就列表
func (a *Adapter) GameDetails(ctx context.Context, ref model.GameRef) (*model.GameBundle, error) {
	doc, err := a.detailsPage(ctx, ref)
	if err != nil {
		return nil, err
	}
	return &model.GameBundle{
		Game:         model.NewGame(ref, scrape.GameDetails(doc)),
		Achievements: a.parseAwards(doc, ref.GameID),
	}, nil
}

// Achievements 重新抓取详情页，只取成就
func (a *Adapter) Achievements(ctx context.Context, ref model.GameRef) ([]model.Achievement, error) {
	doc, err := a.detailsPage(ctx, ref)
	if err != nil {
		return nil, err
	}
	return a.parseAwards(doc, ref.GameID), nil
}
