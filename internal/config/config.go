package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Database  DatabaseConfig            `mapstructure:"database" validate:"required"`  // PostgreSQL配置
	Crawl     CrawlConfig               `mapstructure:"crawl" validate:"required"`     // 采集任务配置
	Log       LogConfig                 `mapstructure:"log"`                           // 日志配置
	Debug     DebugConfig               `mapstructure:"debug"`                         // 调试服务配置
	Platforms map[string]PlatformConfig `mapstructure:"platforms" validate:"required"` // 多平台独立配置
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn" validate:"required"` // 连接DSN（URL形式）
	MaxOpenConns    int           `mapstructure:"max_open_conns"`          // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`          // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`       // 连接最大存活时间
}

// CrawlConfig 采集任务通用配置
type CrawlConfig struct {
	Workers           int     `mapstructure:"workers" validate:"gte=1,lte=64"`                 // 并发 worker 数
	CheckpointEvery   int     `mapstructure:"checkpoint_every" validate:"gte=1"`               // 每处理多少个单元落盘一次进度
	ResourcesDir      string  `mapstructure:"resources_dir" validate:"required"`               // 进度快照、匹配审计文件目录
	CheckpointBackend string  `mapstructure:"checkpoint_backend" validate:"oneof=file badger"` // 进度快照后端
	MatchThreshold    float64 `mapstructure:"match_threshold" validate:"gte=0,lte=100"`        // 模糊匹配阈值（0-100）
	MatchAuditFile    string  `mapstructure:"match_audit_file" validate:"required"`            // 模糊匹配审计CSV文件名
	PlayerCap         int     `mapstructure:"player_cap" validate:"gte=0"`                     // 滚雪球采集玩家上限，0为不限
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`         // 日志目录
	Level      string `mapstructure:"level"`       // 日志级别
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // 单文件最大尺寸
	MaxBackups int    `mapstructure:"max_backups"` // 保留的历史文件数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩历史文件
}

// DebugConfig 调试服务配置（pprof + 运行状态），Addr为空则不启动
type DebugConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// PlatformConfig 单个平台的独立配置
type PlatformConfig struct {
	BaseURL           string        `mapstructure:"base_url"`                             // API基础地址
	StoreURL          string        `mapstructure:"store_url"`                            // 商店/详情页面地址
	CommunityURL      string        `mapstructure:"community_url"`                        // 社区页面地址（Steam评测）
	Timeout           int           `mapstructure:"timeout"`                              // 请求超时（秒）
	RetryCount        int           `mapstructure:"retry_count" validate:"gte=0"`         // 连接被重置等情况的立即重试次数
	RetryWait         time.Duration `mapstructure:"retry_wait"`                           // 立即重试间隔
	RateLimitBackoff  time.Duration `mapstructure:"rate_limit_backoff"`                   // 收到429后的等待时长
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"` // 请求节流，0为不限
	AuthKey           string        `mapstructure:"auth_key"`                             // API Key（Steam）
	Proxy             string        `mapstructure:"proxy"`                                // 代理地址
	CloudflareBypass  bool          `mapstructure:"cloudflare_bypass"`                    // HTML抓取是否启用cloudflare绕过
	Currencies        []string      `mapstructure:"currencies"`                           // 价格采集的区域/币种代码（usd,eur,gbp,jpy,rub顺序）
}

var validate = validator.New()

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("./config")
}

// LoadConfigFrom 从指定目录加载 config.yaml
func LoadConfigFrom(dir string) (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("crawl.workers", 8)
	v.SetDefault("crawl.checkpoint_every", 1)
	v.SetDefault("crawl.resources_dir", "./resources")
	v.SetDefault("crawl.checkpoint_backend", "file")
	v.SetDefault("crawl.match_threshold", 90)
	v.SetDefault("crawl.match_audit_file", "match_missing_data.csv")
	v.SetDefault("log.dir", "./logs")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("debug.mode", "release")
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}
	for name, p := range c.Platforms {
		if err := validate.Struct(p); err != nil {
			return fmt.Errorf("平台%s配置校验失败: %w", name, err)
		}
	}
	return nil
}

// Platform 获取指定平台配置
func (c *Config) Platform(name string) (PlatformConfig, error) {
	p, ok := c.Platforms[name]
	if !ok {
		return PlatformConfig{}, fmt.Errorf("未获取到平台配置: %s", name)
	}
	return p, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if cfg.Platforms == nil {
		cfg.Platforms = map[string]PlatformConfig{}
	}
	for name, p := range cfg.Platforms {
		prefix := strings.ToUpper(name)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			p.AuthKey = v
		}
		if v := os.Getenv(prefix + "_PROXY"); v != "" {
			p.Proxy = v
		}
		cfg.Platforms[name] = p
	}
	if v := os.Getenv("PG_DSN"); v != "" {
		cfg.Database.DSN = v
	}
}
