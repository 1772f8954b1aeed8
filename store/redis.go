package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/recserve/core"
)

// RedisStore 是 Redis 实现的 KeyValueStore。
// 离线表使用 List（LRANGE），用户历史使用 Sorted Set（ZREVRANGE），
// 多个服务进程可以共享同一份离线表。
type RedisStore struct {
	client *redis.Client
}

// RedisOptions 是 RedisStore 的连接参数。
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient 使用已有的 *redis.Client（例如共享连接池）。
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) GetList(ctx context.Context, key string, limit int) ([]string, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	pipe := r.client.Pipeline()
	exists := pipe.Exists(ctx, key)
	vals := pipe.LRange(ctx, key, 0, stop)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	if exists.Val() == 0 {
		return nil, core.ErrStoreNotFound
	}
	return vals.Val(), nil
}

func (r *RedisStore) SetList(ctx context.Context, key string, ids []string) error {
	return r.BatchSetList(ctx, map[string][]string{key: ids})
}

// BatchSetList 在一个 MULTI/EXEC 中整体替换列表，读者不会看到写了一半的列表。
// Redis 不保存空列表：写入空列表会删除 key，之后 GetList 返回 ErrStoreNotFound
// （MemoryStore 则返回空列表）。离线表加载不会写出空列表。
func (r *RedisStore) BatchSetList(ctx context.Context, lists map[string][]string) error {
	pipe := r.client.TxPipeline()
	for k, ids := range lists {
		pipe.Del(ctx, k)
		if len(ids) == 0 {
			continue
		}
		vals := make([]any, len(ids))
		for i, id := range ids {
			vals[i] = id
		}
		pipe.RPush(ctx, k, vals...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return r.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (r *RedisStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return r.client.ZRevRange(ctx, key, start, stop).Result()
}

func (r *RedisStore) ZTrim(ctx context.Context, key string, keep int64) error {
	if keep <= 0 {
		return r.client.Del(ctx, key).Err()
	}
	// 分数升序排列时，最低的 len-keep 个成员位于 [0, -(keep+1)]
	return r.client.ZRemRangeByRank(ctx, key, 0, -(keep + 1)).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// 确保 RedisStore 实现了 core.Store 和 core.KeyValueStore 接口
var _ core.Store = (*RedisStore)(nil)
var _ core.KeyValueStore = (*RedisStore)(nil)
