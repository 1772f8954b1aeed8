package recall

import (
	"context"
	"time"

	"github.com/rushteam/recserve/core"
)

// UserHistory 是基于 KeyValueStore 有序集合的交互历史服务。
// 实际 key 为 {KeyPrefix}:{UserID}，member 为物品 ID，score 为交互时间（毫秒），
// 同一物品再次交互时只更新时间，因此历史天然无重复。
type UserHistory struct {
	Store core.KeyValueStore

	// KeyPrefix 默认 "history"
	KeyPrefix string

	// MaxLength 是 RecentItems 返回的最大条数，默认 core.DefaultHistoryLength
	MaxLength int

	// Keep 是每个用户保留的历史条数上限，Record 写入后裁剪，0 表示不裁剪
	Keep int64

	// Now 用于测试注入时间，默认 time.Now
	Now func() time.Time
}

func (r *UserHistory) Name() string { return "recall.user_history" }

// RecentItems 实现 core.HistoryService：返回最近的 MaxLength 条交互，最近的在前。
func (r *UserHistory) RecentItems(ctx context.Context, userID string) (core.InteractionHistory, error) {
	n := r.MaxLength
	if n <= 0 {
		n = core.DefaultHistoryLength
	}
	return r.Recent(ctx, userID, n)
}

// Recent 返回最近的 n 条交互；n <= 0 返回全部已保留的历史。
func (r *UserHistory) Recent(ctx context.Context, userID string, n int) (core.InteractionHistory, error) {
	stop := int64(-1)
	if n > 0 {
		stop = int64(n) - 1
	}
	members, err := r.Store.ZRange(ctx, r.key(userID), 0, stop)
	if err != nil {
		return nil, core.Unavailable(core.ModuleHistory, err)
	}
	if members == nil {
		return core.InteractionHistory{}, nil
	}
	return core.InteractionHistory(members), nil
}

// Record 记录一次交互，并把历史裁剪到 Keep 条。
func (r *UserHistory) Record(ctx context.Context, userID, itemID string) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	key := r.key(userID)
	if err := r.Store.ZAdd(ctx, key, float64(now().UnixMilli()), itemID); err != nil {
		return core.Unavailable(core.ModuleHistory, err)
	}
	if r.Keep > 0 {
		if err := r.Store.ZTrim(ctx, key, r.Keep); err != nil {
			return core.Unavailable(core.ModuleHistory, err)
		}
	}
	return nil
}

// Import 写入离线导出的历史（最近的在前）。导入的分数小于任何实时交互的时间戳，
// 因此之后 Record 的交互总排在前面。
func (r *UserHistory) Import(ctx context.Context, userID string, items core.InteractionHistory) error {
	key := r.key(userID)
	items = core.InteractionHistory(core.RankedList(items).Dedup())
	for i, id := range items {
		if err := r.Store.ZAdd(ctx, key, float64(len(items)-i), id); err != nil {
			return core.Unavailable(core.ModuleHistory, err)
		}
	}
	return nil
}

func (r *UserHistory) key(userID string) string {
	prefix := r.KeyPrefix
	if prefix == "" {
		prefix = "history"
	}
	return StoreKey(prefix, userID)
}

var _ core.HistoryService = (*UserHistory)(nil)
