package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rushteam/recserve/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于单机部署/测试/开发。
// 列表用于离线表，有序集合用于用户交互历史；进程重启后数据丢失。
type MemoryStore struct {
	mu    sync.RWMutex
	lists map[string][]string
	zsets map[string]map[string]float64 // zset key -> member -> score
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lists: make(map[string][]string),
		zsets: make(map[string]map[string]float64),
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) GetList(ctx context.Context, key string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids, ok := m.lists[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out, nil
}

func (m *MemoryStore) SetList(ctx context.Context, key string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]string, len(ids))
	copy(cp, ids)
	m.lists[key] = cp
	return nil
}

func (m *MemoryStore) BatchSetList(ctx context.Context, lists map[string][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, ids := range lists {
		cp := make([]string, len(ids))
		copy(cp, ids)
		m.lists[k] = cp
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ core.KeyValueStore = (*MemoryStore)(nil)

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pairs := m.sortedLocked(key)
	if len(pairs) == 0 {
		return nil, nil
	}

	// 处理范围
	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}

	result := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, pairs[i].member)
	}
	return result, nil
}

func (m *MemoryStore) ZTrim(ctx context.Context, key string, keep int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pairs := m.sortedLocked(key)
	if int64(len(pairs)) <= keep {
		return nil
	}
	if keep <= 0 {
		delete(m.zsets, key)
		return nil
	}
	for _, p := range pairs[keep:] {
		delete(m.zsets[key], p.member)
	}
	return nil
}

type pair struct {
	member string
	score  float64
}

// sortedLocked 按 score 降序返回成员，score 相同时按成员排序保证结果稳定。
func (m *MemoryStore) sortedLocked(key string) []pair {
	zset := m.zsets[key]
	if len(zset) == 0 {
		return nil
	}
	pairs := make([]pair, 0, len(zset))
	for mem, s := range zset {
		pairs = append(pairs, pair{member: mem, score: s})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].member > pairs[j].member
	})
	return pairs
}
