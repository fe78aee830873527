package adapter

import (
	"fmt"

	"GameStatsSync/internal/adapter/psprices"
	"GameStatsSync/internal/adapter/truesite"
	"GameStatsSync/internal/config"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
)

// 二级数据源在配置中的名字
const (
	SourcePSPrices         = "psprices"
	SourceTrueTrophies     = "truetrophies"
	SourceTrueAchievements = "trueachievements"
)

// detailSources 平台 → 元数据补全数据源
var detailSources = map[model.PlatformType]string{
	model.PlatformPlayStation: SourceTrueTrophies,
	model.PlatformXbox:        SourceTrueAchievements,
}

// PlatformRegistry 按配置为每个平台组装采集用到的全部数据源
type PlatformRegistry struct {
	cfg    *config.Config
	logger *logrus.Logger
	// 存储平台类型→数据源的映射
	sources map[model.PlatformType]interfaces.Sources
}

func NewPlatformRegistry(cfg *config.Config, logger *logrus.Logger) *PlatformRegistry {
	r := &PlatformRegistry{
		cfg:     cfg,
		logger:  logger,
		sources: make(map[model.PlatformType]interfaces.Sources),
	}
	r.initAdaptersFromFactories()
	return r
}

// initAdaptersFromFactories 从工厂函数注册表创建适配器实例
func (r *PlatformRegistry) initAdaptersFromFactories() {
	for _, platform := range ListFactories() {
		log := r.logger.WithField("platform", platform)
		platformCfg, err := r.cfg.Platform(string(platform))
		if err != nil {
			log.Debug("配置中没有该平台，跳过")
			continue
		}

		factory, _ := GetFactory(platform)
		client := transport.NewClient(string(platform), platformCfg, r.logger)
		adapterIns := factory(&platformCfg, client, r.logger)
		if adapterIns == nil {
			log.Error("工厂函数返回nil适配器实例")
			continue
		}
		if adapterIns.GetType() != platform {
			log.WithField("adapter_platform", adapterIns.GetType()).Error("适配器平台类型与配置不匹配")
			continue
		}

		sources := interfaces.Sources{Platform: adapterIns}
		if platform != model.PlatformSteam {
			if cfg, err := r.cfg.Platform(SourcePSPrices); err == nil {
				sources.Prices = psprices.NewSearcher(&cfg, transport.NewClient(SourcePSPrices, cfg, r.logger), r.logger)
			}
			name := detailSources[platform]
			if cfg, err := r.cfg.Platform(name); err == nil {
				sources.Details = truesite.NewSearcher(&cfg, transport.NewClient(name, cfg, r.logger), r.logger)
			}
		}
		r.sources[platform] = sources
		log.Debug("数据源初始化完成")
	}
}

// ListRegisteredPlatforms 已初始化数据源的平台
func (r *PlatformRegistry) ListRegisteredPlatforms() []model.PlatformType {
	var platforms []model.PlatformType
	for _, p := range model.Platforms {
		if _, ok := r.sources[p]; ok {
			platforms = append(platforms, p)
		}
	}
	return platforms
}

// GetSources 获取平台的数据源
func (r *PlatformRegistry) GetSources(platform model.PlatformType) (interfaces.Sources, error) {
	sources, ok := r.sources[platform]
	if !ok {
		return interfaces.Sources{}, fmt.Errorf("平台%s未初始化适配器实例（已初始化：%v）", platform, r.ListRegisteredPlatforms())
	}
	return sources, nil
}
