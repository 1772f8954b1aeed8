package recall

import (
	"context"

	"github.com/rushteam/recserve/core"
)

// Table 是启动时加载、之后只读的 key -> RankedList 表。
// 个性化表（UserID -> 推荐列表）和相似物品表（ItemID -> 相似列表）都用它。
// 加载完成后不再修改，多个请求可以无锁并发读取。
type Table struct {
	module string
	rows   map[string]core.RankedList
}

// NewTable 以 rows 构造只读表。每个列表会被拷贝并按首次出现去重。
// module 用于 NOT_FOUND 错误（core.ModulePersonal / core.ModuleSimilar）。
func NewTable(module string, rows map[string]core.RankedList) *Table {
	t := &Table{module: module, rows: make(map[string]core.RankedList, len(rows))}
	for k, list := range rows {
		t.rows[k] = list.Dedup()
	}
	return t
}

// Lookup 返回 key 对应的列表；key 不存在时返回 NOT_FOUND。
// 返回的切片是共享的，调用方不能修改。
func (t *Table) Lookup(ctx context.Context, key string) (core.RankedList, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Unavailable(t.module, err)
	}
	list, ok := t.rows[key]
	if !ok {
		return nil, core.NotFound(t.module, "%s: no list for %q", t.module, key)
	}
	return list, nil
}

// Len 返回 key 的数量。
func (t *Table) Len() int { return len(t.rows) }

// StoreTable 是基于 core.Store 的 key -> RankedList 表，实际 key 为 {KeyPrefix}:{key}。
// 多个服务进程可以共享同一份 Redis 中的离线表。
type StoreTable struct {
	Store     core.Store
	KeyPrefix string
	Module    string
	// Limit 限制读取的列表长度，0 表示全部
	Limit int
}

func (t *StoreTable) Lookup(ctx context.Context, key string) (core.RankedList, error) {
	ids, err := t.Store.GetList(ctx, StoreKey(t.KeyPrefix, key), t.Limit)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.NotFound(t.Module, "%s: no list for %q", t.Module, key)
		}
		return nil, core.Unavailable(t.Module, err)
	}
	return core.RankedList(ids).Dedup(), nil
}

// StoreKey 返回 {prefix}:{key}；prefix 为空时返回 key。
func StoreKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + ":" + key
}

var (
	_ core.PersonalizationStore = (*Table)(nil)
	_ core.SimilarItemsIndex    = (*Table)(nil)
	_ core.PersonalizationStore = (*StoreTable)(nil)
	_ core.SimilarItemsIndex    = (*StoreTable)(nil)
)
