// Package recall 实现推荐结果的各个来源：离线表、热门列表、用户历史、
// 相似物品（本地或远程），以及把它们并发解析的 Fanout。
package recall

import (
	"context"

	"github.com/rushteam/recserve/core"
)

// Source 是一个可并发 fan-out 的推荐来源。
// Resolve 不返回 error：依赖失败在来源内部被吸收为 Degraded 结果，
// 调用方总能拿到一个可以直接参与混排的列表。
type Source interface {
	Name() string
	Resolve(ctx context.Context, rctx *core.RecommendContext) core.Outcome
}

// SourceFunc 把函数适配为 Source。
type SourceFunc struct {
	SourceName string
	Fn         func(ctx context.Context, rctx *core.RecommendContext) core.Outcome
}

func (s SourceFunc) Name() string { return s.SourceName }

func (s SourceFunc) Resolve(ctx context.Context, rctx *core.RecommendContext) core.Outcome {
	return s.Fn(ctx, rctx)
}
