package config

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/recserve/core"
)

// 使用配置构建存储时，需在 main 或入口处 import _ "github.com/rushteam/recserve/config/builders"
// 以触发内置存储后端（memory、redis）的 init 注册。

// StoreBuilder 根据配置构建存储后端。
// 各后端在 init 中调用 Register(backend, builder) 即可被配置驱动。
type StoreBuilder func(ctx context.Context, cfg StoreConfig) (core.KeyValueStore, error)

var (
	defaultBuilders   = make(map[string]StoreBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种存储后端的构建逻辑。
func Register(backend string, builder StoreBuilder) {
	if backend == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[backend] = builder
}

// SupportedBackends 返回已注册的后端列表（排序），用于错误提示。
func SupportedBackends() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	backends := make([]string, 0, len(defaultBuilders))
	for b := range defaultBuilders {
		backends = append(backends, b)
	}
	sort.Strings(backends)
	return backends
}

// BuildStore 按 cfg.Backend 构建存储；未注册的后端返回包含已支持列表的错误。
func BuildStore(ctx context.Context, cfg StoreConfig) (core.KeyValueStore, error) {
	defaultBuildersMu.RLock()
	builder, ok := defaultBuilders[cfg.Backend]
	defaultBuildersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported store backend %q (supported: %v)", cfg.Backend, SupportedBackends())
	}
	return builder(ctx, cfg)
}
