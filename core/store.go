package core

import "context"

// Store 是存储的领域接口。
//
// 离线表（个性化、热门、相似物品）以"有序列表"的形式存放：
//   - 个性化：{prefix}:{userID} -> [itemID...]
//   - 相似物品：{prefix}:{itemID} -> [itemID...]
//   - 热门：{prefix} -> [itemID...]
//
// 实现：
//   - store.MemoryStore 实现此接口
//   - store.RedisStore 实现此接口
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// GetList 读取 key 对应的有序列表；limit <= 0 表示全部。
	// key 不存在时返回 ErrStoreNotFound。
	GetList(ctx context.Context, key string, limit int) ([]string, error)

	// SetList 整体替换 key 对应的有序列表。
	// 写入空列表时，RedisStore 删除 key（之后 GetList 返回 ErrStoreNotFound），
	// MemoryStore 保留一个空列表。
	SetList(ctx context.Context, key string, ids []string) error

	// BatchSetList 批量写入（加载离线表时使用，减少网络往返）
	BatchSetList(ctx context.Context, lists map[string][]string) error

	// Close 关闭连接/释放资源
	Close() error
}

// KeyValueStore 是 Store 的扩展接口，增加有序集合操作。
// 用户交互历史存放在有序集合中，score 为交互时间戳。
type KeyValueStore interface {
	Store

	// ZAdd 向有序集合添加成员；成员已存在时更新分数
	ZAdd(ctx context.Context, key string, score float64, member string) error

	// ZRange 按分数降序获取 [start, stop] 排名区间的成员（stop = -1 表示到末尾）
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)

	// ZTrim 只保留分数最高的 keep 个成员
	ZTrim(ctx context.Context, key string, keep int64) error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	if domainErr != nil && domainErr.Module == ModuleStore {
		return domainErr.Code == ErrorCodeNotFound
	}
	return false
}
