package recall

import (
	"context"
	"sync"

	"github.com/rushteam/recserve/core"
)

// Hot 是全局热门列表（PopularityStore），没有个性化推荐时使用。
//   - Store 为 KeyValueStore 且 ZSet 为 true 时，用 ZRange 读取（按分数从高到低）
//   - 否则从 Store 的 List 读取（按写入顺序）
//   - Store 为空或读取失败时，使用内存中的 IDs
//
// 第一次成功从 Store 读取后结果被缓存，之后所有请求共享同一个只读切片。
type Hot struct {
	Store core.Store
	Key   string // 存储 key，例如 "popular"
	ZSet  bool
	Limit int      // 读取上限，0 表示全部
	IDs   []string // fallback 内存列表

	mu     sync.Mutex
	loaded bool
	list   core.RankedList
}

// NewHot 创建固定列表的热门来源。
func NewHot(ids []string) *Hot {
	h := &Hot{IDs: ids}
	h.list = core.RankedList(ids).Dedup()
	h.loaded = true
	return h
}

func (r *Hot) Name() string { return "recall.hot" }

// Popular 实现 core.PopularityStore。
func (r *Hot) Popular(ctx context.Context) (core.RankedList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return r.list, nil
	}

	if r.Store == nil || r.Key == "" {
		r.list = core.RankedList(r.IDs).Dedup()
		r.loaded = true
		return r.list, nil
	}

	ids, err := r.read(ctx)
	switch {
	case err == nil:
		r.list = core.RankedList(ids).Dedup()
		r.loaded = true
		return r.list, nil
	case core.IsStoreNotFound(err):
		// 热门表不存在时长期使用内存列表
		r.list = core.RankedList(r.IDs).Dedup()
		r.loaded = true
		return r.list, nil
	case len(r.IDs) > 0:
		// 瞬时失败：本次使用内存列表，下次重试 Store
		return core.RankedList(r.IDs).Dedup(), nil
	default:
		return nil, core.Unavailable(core.ModulePopular, err)
	}
}

func (r *Hot) read(ctx context.Context) ([]string, error) {
	if kv, ok := r.Store.(core.KeyValueStore); ok && r.ZSet {
		stop := int64(-1)
		if r.Limit > 0 {
			stop = int64(r.Limit) - 1
		}
		members, err := kv.ZRange(ctx, r.Key, 0, stop)
		if err != nil {
			return nil, err
		}
		if len(members) == 0 {
			return nil, core.ErrStoreNotFound
		}
		return members, nil
	}
	return r.Store.GetList(ctx, r.Key, r.Limit)
}

var _ core.PopularityStore = (*Hot)(nil)
