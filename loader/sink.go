package loader

import (
	"context"
	"fmt"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recall"
)

// batchSize 是每次 BatchSetList 写入的 key 数
const batchSize = 500

// WriteLists 把 key -> RankedList 写入 Store，实际 key 为 {prefix}:{key}。
// 按批写入，每批在 Redis 中是一个事务。
func WriteLists(ctx context.Context, s core.Store, prefix string, lists map[string]core.RankedList) error {
	batch := make(map[string][]string, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.BatchSetList(ctx, batch); err != nil {
			return fmt.Errorf("write %s: %w", prefix, err)
		}
		batch = make(map[string][]string, batchSize)
		return nil
	}

	for k, list := range lists {
		batch[recall.StoreKey(prefix, k)] = list
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// ImportHistory 把离线导出的历史（最近的在前）写入交互历史存储。
func ImportHistory(ctx context.Context, h *recall.UserHistory, lists map[string]core.RankedList) error {
	for userID, list := range lists {
		if err := h.Import(ctx, userID, core.InteractionHistory(list)); err != nil {
			return fmt.Errorf("import history for %s: %w", userID, err)
		}
	}
	return nil
}
