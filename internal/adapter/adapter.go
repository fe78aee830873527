package adapter

import (
	"fmt"
	"slices"
	"sync"

	"GameStatsSync/internal/config"
	"GameStatsSync/internal/interfaces"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/transport"

	"github.com/sirupsen/logrus"
)

// Factory 平台适配器工厂函数签名
// 入参：平台配置、该平台的传输层客户端、日志实例
type Factory func(cfg *config.PlatformConfig, fetcher transport.Fetcher, logger *logrus.Logger) interfaces.PlatformAdapter

// ========== 全局工厂函数注册表 ==========
var (
	factoryMu       sync.RWMutex
	factoryRegistry = make(map[model.PlatformType]Factory)
)

// Register 供适配器 init 函数调用，注册工厂函数
func Register(platform model.PlatformType, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("平台%s的工厂函数不能为nil", platform))
	}
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, exists := factoryRegistry[platform]; exists {
		logrus.Warnf("平台%s的适配器已注册，将覆盖原有实现", platform)
	}
	factoryRegistry[platform] = factory
}

// GetFactory 获取指定平台的工厂函数
func GetFactory(platform model.PlatformType) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	factory, ok := factoryRegistry[platform]
	return factory, ok
}

// ListFactories 列出所有已注册工厂函数的平台（排序）
func ListFactories() []model.PlatformType {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	var platforms []model.PlatformType
	for p := range factoryRegistry {
		platforms = append(platforms, p)
	}
	slices.Sort(platforms)
	return platforms
}
