package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/loader"
	"github.com/rushteam/recserve/recall"
)

// LoadSummary 是一次 load 写入的 key 数。
type LoadSummary struct {
	Personal int
	Similar  int
	Popular  int
	History  int
}

// Load 把配置中的离线表写入共享存储，供 redis 后端的服务进程读取。
// 未配置路径的表跳过。
func Load(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (LoadSummary, error) {
	var sum LoadSummary
	logger = logger.With().Str("component", "load").Logger()

	kv, err := config.BuildStore(ctx, cfg.Store)
	if err != nil {
		return sum, err
	}
	defer kv.Close()

	l, err := loader.New(logger)
	if err != nil {
		return sum, err
	}
	defer l.Close()

	writeLists := func(src config.TableSource, prefix string) (int, error) {
		if !src.Enabled() {
			return 0, nil
		}
		lists, err := l.LoadLists(ctx, src)
		if err != nil {
			return 0, err
		}
		return len(lists), loader.WriteLists(ctx, kv, prefix, lists)
	}

	if sum.Personal, err = writeLists(cfg.Tables.Personal, cfg.Store.PersonalPrefix); err != nil {
		return sum, fmt.Errorf("load personal table: %w", err)
	}
	if sum.Similar, err = writeLists(cfg.Tables.Similar, cfg.Store.SimilarPrefix); err != nil {
		return sum, fmt.Errorf("load similar table: %w", err)
	}

	if cfg.Tables.Popular.Enabled() {
		list, err := l.LoadList(ctx, cfg.Tables.Popular)
		if err != nil {
			return sum, fmt.Errorf("load popular table: %w", err)
		}
		if err := kv.SetList(ctx, cfg.Store.PopularKey, list); err != nil {
			return sum, fmt.Errorf("write popular list: %w", err)
		}
		sum.Popular = len(list)
	}

	if cfg.Tables.History.Enabled() {
		lists, err := l.LoadLists(ctx, cfg.Tables.History)
		if err != nil {
			return sum, fmt.Errorf("load history table: %w", err)
		}
		h := &recall.UserHistory{Store: kv, KeyPrefix: cfg.Store.HistoryPrefix, Keep: cfg.Store.HistoryKeep}
		if err := loader.ImportHistory(ctx, h, lists); err != nil {
			return sum, err
		}
		sum.History = len(lists)
	}

	logger.Info().
		Str("store", kv.Name()).
		Int(core.ModulePersonal, sum.Personal).
		Int(core.ModuleSimilar, sum.Similar).
		Int(core.ModulePopular, sum.Popular).
		Int(core.ModuleHistory, sum.History).
		Msg("tables written")
	return sum, nil
}
