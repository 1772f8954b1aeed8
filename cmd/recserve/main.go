// Command recserve 是推荐服务的入口。
//
//	recserve -config config.yaml          启动 HTTP 服务（serve）
//	recserve -config config.yaml load     把离线表写入配置的存储（通常是 Redis）
//
// 配置加载顺序：内置默认值 → 配置文件 → RECSERVE_ 前缀的环境变量。
// 收到 SIGINT / SIGTERM 后优雅退出，并输出请求统计。
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/config"
	_ "github.com/rushteam/recserve/config/builders"
	"github.com/rushteam/recserve/pkg/logging"
	"github.com/rushteam/recserve/server"
	"github.com/rushteam/recserve/service"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (or RECSERVE_CONFIG)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config file] [serve|load]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "recserve: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Caller: cfg.Log.Caller})
	logger := logging.Logger()
	mainLog := logging.Component("main")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mode := flag.Arg(0)
	switch mode {
	case "", "serve":
		err = serve(ctx, cfg, logger)
	case "load":
		_, err = service.Load(ctx, cfg, logger)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		mainLog.Error().Err(err).Str("mode", mode).Msg("recserve failed")
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	app, err := service.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logging.Component("main").Warn().Err(err).Msg("close store")
		}
	}()

	srv, err := server.New(server.Deps{
		Orchestrator: app.Orchestrator,
		Similar:      app.Similar,
		History:      app.History,
		DefaultK:     cfg.Recommend.DefaultK,
		ListK:        cfg.Recommend.SimilarK,
		HistoryK:     cfg.Recommend.HistoryLength,
	}, cfg.Server, logger)
	if err != nil {
		return err
	}

	err = srv.Run(ctx)
	app.Orchestrator.LogStats()
	return err
}
