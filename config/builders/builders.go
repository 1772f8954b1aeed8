// Package builders 注册内置存储后端。入口处以空白导入启用：
//
//	import _ "github.com/rushteam/recserve/config/builders"
package builders

import (
	"context"
	"fmt"

	"github.com/rushteam/recserve/config"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/store"
)

func init() {
	config.Register("memory", BuildMemoryStore)
	config.Register("redis", BuildRedisStore)
}

func BuildMemoryStore(_ context.Context, _ config.StoreConfig) (core.KeyValueStore, error) {
	return store.NewMemoryStore(), nil
}

func BuildRedisStore(ctx context.Context, cfg config.StoreConfig) (core.KeyValueStore, error) {
	s, err := store.NewRedisStore(ctx, store.RedisOptions{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
	}
	return s, nil
}
