// Package service 按配置装配推荐服务：存储、离线表、历史、相似物品、编排器。
//
//	app, err := service.Build(ctx, cfg, logger)
//	defer app.Close()
//	resp, err := app.Orchestrator.Recommend(ctx, recommend.Request{UserID: "u1", K: 10})
//
// 存储后端通过 config.Register 注册，入口处需要空白导入 config/builders。
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/loader"
	"github.com/rushteam/recserve/metrics"
	"github.com/rushteam/recserve/recall"
	"github.com/rushteam/recserve/recommend"
)

// App 是装配好的服务。
type App struct {
	Config       *config.Config
	Orchestrator *recommend.Orchestrator

	// Similar 是本地相似物品表，/similar_items 使用
	Similar core.SimilarItemsIndex

	// History 是本地交互历史，/history 与 /events 使用
	History *recall.UserHistory

	store  core.KeyValueStore
	logger zerolog.Logger
}

// Close 释放存储连接。
func (a *App) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// offlineTables 是离线表的读取入口
type offlineTables struct {
	personal core.PersonalizationStore
	similar  core.SimilarItemsIndex
	popular  core.PopularityStore
}

// Build 根据配置创建 App。
//   - memory 后端：离线表在这里从文件加载，历史表导入进程内存储
//   - redis 后端：离线表由 load 命令事先写入，这里只创建读取入口
//
// 配置了 remote.history_url / remote.similar_url 时，在线召回改用远程服务。
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("service: config is required")
	}
	logger = logger.With().Str("component", "service").Logger()

	kv, err := config.BuildStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, store: kv, logger: logger}

	history := &recall.UserHistory{
		Store:     kv,
		KeyPrefix: cfg.Store.HistoryPrefix,
		MaxLength: cfg.Recommend.HistoryLength,
		Keep:      cfg.Store.HistoryKeep,
	}

	var tables *offlineTables
	if cfg.Store.Backend == "memory" {
		tables, err = loadMemoryTables(ctx, cfg, history, logger)
	} else {
		tables = storeTables(cfg, kv)
	}
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	app.History = history
	app.Similar = tables.similar

	historySvc := NewHistoryService(cfg, history, logger)
	similarSvc, err := NewSimilarIndex(cfg, tables.similar, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	offline := &recall.Offline{
		Personal: tables.personal,
		Popular:  tables.popular,
		Logger:   logger.With().Str("source", "offline").Logger(),
	}
	online := &recall.Online{
		History:       historySvc,
		Similar:       similarSvc,
		SimilarK:      cfg.Recommend.SimilarK,
		LookupTimeout: cfg.Recommend.LookupTimeout,
		MaxConcurrent: cfg.Recommend.MaxConcurrent,
		Logger:        logger.With().Str("source", "online").Logger(),
	}

	app.Orchestrator, err = recommend.New(offline, online, recommend.Options{
		MaxK:          cfg.Recommend.MaxK,
		SourceTimeout: cfg.Recommend.SourceTimeout,
		OnlineWhen:    cfg.Recommend.OnlineWhen,
	}, logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	logger.Info().
		Str("store", kv.Name()).
		Str("history", sourceName(historySvc)).
		Str("similar", sourceName(similarSvc)).
		Msg("service built")
	return app, nil
}

// NewHistoryService 返回在线召回使用的历史服务：配置了远程地址时为远程客户端，否则为 local。
func NewHistoryService(cfg *config.Config, local core.HistoryService, logger zerolog.Logger) core.HistoryService {
	if cfg.Remote.HistoryURL == "" {
		return local
	}
	return recall.NewRemoteHistory(cfg.Remote.HistoryURL, cfg.Recommend.HistoryLength, remoteOptions(cfg, logger))
}

// NewSimilarIndex 返回在线召回使用的相似物品索引：配置了远程地址时为远程客户端，否则为 local。
// 远程每次取 max_k 个，在线召回按请求的 k 再截断。
func NewSimilarIndex(cfg *config.Config, local core.SimilarItemsIndex, logger zerolog.Logger) (core.SimilarItemsIndex, error) {
	if cfg.Remote.SimilarURL == "" {
		return local, nil
	}
	return recall.NewRemoteSimilar(cfg.Remote.SimilarURL, cfg.Recommend.MaxK, cfg.Remote.SimilarCacheSize, remoteOptions(cfg, logger))
}

func remoteOptions(cfg *config.Config, logger zerolog.Logger) recall.RemoteOptions {
	b := cfg.Remote.Breaker
	return recall.RemoteOptions{
		Timeout: cfg.Remote.Timeout,
		Breaker: recall.BreakerSettings{
			MaxRequests:   b.MaxRequests,
			Interval:      b.Interval,
			Timeout:       b.Timeout,
			MinRequests:   b.MinRequests,
			FailureRatio:  b.FailureRatio,
			OnStateChange: metrics.BreakerStateChange,
		},
		Logger: logger,
	}
}

// storeTables 从共享存储读取离线表（redis 后端）。
func storeTables(cfg *config.Config, kv core.KeyValueStore) *offlineTables {
	return &offlineTables{
		personal: &recall.StoreTable{Store: kv, KeyPrefix: cfg.Store.PersonalPrefix, Module: core.ModulePersonal},
		similar:  &recall.StoreTable{Store: kv, KeyPrefix: cfg.Store.SimilarPrefix, Module: core.ModuleSimilar},
		popular:  &recall.Hot{Store: kv, Key: cfg.Store.PopularKey, IDs: cfg.Recommend.PopularFallbackIDs},
	}
}

// loadMemoryTables 从文件加载离线表到进程内存。未配置的表为空表。
func loadMemoryTables(ctx context.Context, cfg *config.Config, history *recall.UserHistory, logger zerolog.Logger) (*offlineTables, error) {
	l, err := loader.New(logger)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	personal, err := loadTable(ctx, l, cfg.Tables.Personal, core.ModulePersonal)
	if err != nil {
		return nil, err
	}
	similar, err := loadTable(ctx, l, cfg.Tables.Similar, core.ModuleSimilar)
	if err != nil {
		return nil, err
	}

	popularIDs := cfg.Recommend.PopularFallbackIDs
	if cfg.Tables.Popular.Enabled() {
		list, err := l.LoadList(ctx, cfg.Tables.Popular)
		if err != nil {
			return nil, fmt.Errorf("load popular table: %w", err)
		}
		metrics.TableRows.WithLabelValues(core.ModulePopular).Set(float64(len(list)))
		if len(list) > 0 {
			popularIDs = list
		} else {
			logger.Warn().Str("path", cfg.Tables.Popular.Path).Msg("popular table is empty, using popular_fallback_ids")
		}
	}

	if cfg.Tables.History.Enabled() {
		lists, err := l.LoadLists(ctx, cfg.Tables.History)
		if err != nil {
			return nil, fmt.Errorf("load history table: %w", err)
		}
		if err := loader.ImportHistory(ctx, history, lists); err != nil {
			return nil, err
		}
		metrics.TableRows.WithLabelValues(core.ModuleHistory).Set(float64(len(lists)))
	}

	return &offlineTables{
		personal: personal,
		similar:  similar,
		popular:  recall.NewHot(popularIDs),
	}, nil
}

func loadTable(ctx context.Context, l *loader.Loader, src config.TableSource, module string) (*recall.Table, error) {
	rows := map[string]core.RankedList{}
	if src.Enabled() {
		var err error
		if rows, err = l.LoadLists(ctx, src); err != nil {
			return nil, fmt.Errorf("load %s table: %w", module, err)
		}
	}
	t := recall.NewTable(module, rows)
	metrics.TableRows.WithLabelValues(module).Set(float64(t.Len()))
	return t, nil
}

func sourceName(v any) string {
	if n, ok := v.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", v)
}
