package core

import "context"

// PersonalizationStore 是离线个性化推荐表：UserID -> 预先计算好的 RankedList。
//
// 用户没有个性化列表时返回 NOT_FOUND（errors.Is(err, ErrNotFound)），
// 由编排层降级到 PopularityStore。
//
// 实现：
//   - recall.Table：启动时加载的只读内存表
//   - recall.StoreTable：基于 core.Store（Redis 等）
type PersonalizationStore interface {
	Lookup(ctx context.Context, userID string) (RankedList, error)
}

// PopularityStore 提供全局热门列表，在没有个性化推荐时使用。
//
// 实现：
//   - recall.Hot
type PopularityStore interface {
	Popular(ctx context.Context) (RankedList, error)
}

// HistoryService 返回用户最近交互过的物品（最近的在前，长度有上限）。
// 没有记录时返回空列表，不返回 NOT_FOUND；可能是远程服务，可能瞬时失败。
//
// 实现：
//   - recall.UserHistory：基于 core.KeyValueStore 的有序集合
//   - recall.RemoteHistory：HTTP 远程历史服务
type HistoryService interface {
	RecentItems(ctx context.Context, userID string) (InteractionHistory, error)
}

// SimilarItemsIndex 返回与给定物品相似的物品，按相似度排序。
//
// 实现：
//   - recall.Table / recall.StoreTable
//   - recall.RemoteSimilar：HTTP 远程相似物品服务
type SimilarItemsIndex interface {
	Lookup(ctx context.Context, itemID string) (RankedList, error)
}
