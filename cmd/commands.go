package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"GameStatsSync/internal/adapter"
	"GameStatsSync/internal/api"
	"GameStatsSync/internal/checkpoint"
	"GameStatsSync/internal/fuzzy"
	"GameStatsSync/internal/model"
	"GameStatsSync/internal/repository"
	"GameStatsSync/internal/service"
	applog "GameStatsSync/internal/utils/logger"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [platform...]",
	Short: "建 schema、表与约束（可重复执行），不指定平台时迁移全部",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := applog.New(cfg.Log)

		platforms := make([]model.PlatformType, 0, len(args))
		for _, a := range args {
			p, err := model.ParsePlatform(a)
			if err != nil {
				return err
			}
			platforms = append(platforms, p)
		}

		db, err := openDB(cfg.Database, log)
		if err != nil {
			return err
		}
		if err := repository.Migrate(cmd.Context(), db, platforms...); err != nil {
			return fmt.Errorf("数据库表结构迁移失败: %w", err)
		}
		log.Info("数据库表结构检查完成（不存在则已创建）")
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "列出各平台支持的采集任务",
	Run: func(cmd *cobra.Command, args []string) {
		t := newTable()
		t.AppendHeader(table.Row{"platform", "crawls"})
		for _, p := range model.Platforms {
			t.AppendRow(table.Row{p, strings.Join(service.Crawls(p), ", ")})
		}
		t.Render()
	},
}

var runCmd = &cobra.Command{
	Use:   "run <platform> <crawl>",
	Short: "执行一个采集任务；中断后再次执行会从进度快照继续",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, err := model.ParsePlatform(args[0])
		if err != nil {
			return err
		}
		crawl := args[1]

		log, closer, err := applog.NewForRun(cfg.Log, string(p), crawl)
		if err != nil {
			return err
		}
		defer closer.Close()

		db, err := openDB(cfg.Database, log)
		if err != nil {
			return err
		}

		checkpoints, err := checkpoint.Open(cfg.Crawl.CheckpointBackend, filepath.Join(cfg.Crawl.ResourcesDir, "checkpoints"), log)
		if err != nil {
			return err
		}
		defer checkpoints.Close()

		audit, err := fuzzy.NewAudit(filepath.Join(cfg.Crawl.ResourcesDir, cfg.Crawl.MatchAuditFile))
		if err != nil {
			return err
		}
		matcher := fuzzy.NewMatcher(cfg.Crawl.MatchThreshold, audit, log)

		sources, err := adapter.NewPlatformRegistry(cfg, log).GetSources(p)
		if err != nil {
			return err
		}
		platformCfg, err := cfg.Platform(string(p))
		if err != nil {
			return err
		}

		engine := service.NewEngine(p, cfg.Crawl, log)
		if cfg.Debug.Addr != "" {
			api.Serve(ctx, cfg.Debug.Addr, api.NewRouter(cfg.Debug.Mode, api.NewStatusHandler(engine.Status(), log)), log)
		}

		svc := service.NewSyncService(engine, repository.NewGameRepository(db), checkpoints, matcher, sources, platformCfg,
			service.WithPlayerCap(cfg.Crawl.PlayerCap))
		totals, err := svc.SyncPlatform(ctx, crawl)
		if runErr, ok := service.IsAborted(err); ok {
			totals = runErr.Totals
		}
		printTotals(p, crawl, engine.Status().Snapshot().State, totals)
		return err
	},
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func printTotals(p model.PlatformType, crawl string, state service.State, totals service.Totals) {
	t := newTable()
	t.SetTitle(fmt.Sprintf("%s %s: %s", p, crawl, state))
	t.AppendHeader(table.Row{"table", "rows"})
	for _, k := range totals.Keys() {
		t.AppendRow(table.Row{k, totals[k]})
	}
	t.Render()
}
