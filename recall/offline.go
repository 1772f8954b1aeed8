package recall

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
)

// 离线来源名称，也是指标和统计里的 source 标签。
const (
	SourcePersonal = "personal"
	SourceDefault  = "default"
)

// Offline 解析离线推荐列表：有个性化列表时使用个性化列表，
// 个性化表返回 NOT_FOUND 时降级到完整的热门列表（不截断，由混排统一截断到 k）。
type Offline struct {
	Personal core.PersonalizationStore
	Popular  core.PopularityStore
	Logger   zerolog.Logger
}

func (r *Offline) Name() string { return "offline" }

// Resolve 实现 Source 接口。
func (r *Offline) Resolve(ctx context.Context, rctx *core.RecommendContext) core.Outcome {
	return r.Recommend(ctx, rctx.UserID)
}

// Recommend 返回 userID 的离线列表。
//   - 个性化命中：Status OK，Source personal
//   - 个性化 NOT_FOUND：Status Fallback，Source default，Items 为热门列表
//   - 其它错误或超时：Status Degraded，Items 为空
func (r *Offline) Recommend(ctx context.Context, userID string) core.Outcome {
	if r.Personal != nil {
		list, err := r.Personal.Lookup(ctx, userID)
		switch {
		case err == nil:
			return core.Success(SourcePersonal, list)
		case !core.IsNotFound(err):
			r.Logger.Warn().Err(err).Str("user_id", userID).Msg("personal lookup failed, offline source degraded")
			return core.Degraded(SourcePersonal, err)
		}
		r.Logger.Debug().Str("user_id", userID).Msg("no personal list, using popular")
	}

	if r.Popular == nil {
		return core.Fallback(SourceDefault, nil)
	}
	list, err := r.Popular.Popular(ctx)
	if err != nil {
		r.Logger.Warn().Err(err).Msg("popular list unavailable, offline source degraded")
		return core.Degraded(SourceDefault, err)
	}
	return core.Fallback(SourceDefault, list)
}

var _ Source = (*Offline)(nil)
