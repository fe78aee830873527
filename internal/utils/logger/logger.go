package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"GameStatsSync/internal/config"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New 创建基础日志器（仅 stderr），用于 run 之前的阶段
func New(cfg config.LogConfig) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(parseLevel(cfg.Level))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// NewForRun 为单个采集任务创建日志器：stderr + logs/<platform>_<crawl>.log（按大小滚动）
func NewForRun(cfg config.LogConfig, platform, crawl string) (*logrus.Logger, io.Closer, error) {
	if cfg.Dir == "" {
		return New(cfg), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, fmt.Sprintf("%s_%s.log", platform, crawl)),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}
	l := New(cfg)
	l.SetOutput(io.MultiWriter(os.Stderr, file))
	return l, file, nil
}

func parseLevel(s string) logrus.Level {
	lvl, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
