package recall

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/core"
)

// Online 根据用户最近的交互实时生成推荐：
//
//  1. 取最近 HistoryLength 条交互（最近的在前）
//  2. 对每个历史物品并发查询相似物品，每次查询有独立的超时
//  3. 按历史顺序拼接各物品的相似列表，每个列表最多取 max(SimilarK, k) 个
//  4. 按首次出现去重
//
// 单个物品的相似查询失败只跳过该物品（计入 Outcome.Misses）；
// 相似物品表里没有该物品不算失败，只是没有贡献。
type Online struct {
	History core.HistoryService
	Similar core.SimilarItemsIndex

	// SimilarK 是每个历史物品至少保留的相似物品数，请求的 k 更大时按 k 截断；
	// 0 表示不截断
	SimilarK int

	// LookupTimeout 是单次历史/相似查询的超时时间
	LookupTimeout time.Duration

	// MaxConcurrent 限制同时进行的相似查询数（0 表示无限制）
	MaxConcurrent int

	Logger zerolog.Logger
}

func (r *Online) Name() string { return "online" }

// Resolve 实现 Source 接口。
func (r *Online) Resolve(ctx context.Context, rctx *core.RecommendContext) core.Outcome {
	return r.recommend(ctx, rctx.UserID, rctx.K)
}

// Recommend 为 userID 生成在线推荐，每个历史物品的相似列表只按 SimilarK 截断。
// 历史服务失败时返回 Degraded；历史为空时返回 OK 的空列表。
func (r *Online) Recommend(ctx context.Context, userID string) core.Outcome {
	return r.recommend(ctx, userID, 0)
}

func (r *Online) recommend(ctx context.Context, userID string, k int) core.Outcome {
	history, err := r.recentItems(ctx, userID)
	if err != nil {
		r.Logger.Warn().Err(err).Str("user_id", userID).Msg("history unavailable, online source degraded")
		return core.Degraded(r.Name(), err)
	}
	if len(history) == 0 {
		return core.Success(r.Name(), nil)
	}

	lists := make([]core.RankedList, len(history))
	missed := make([]bool, len(history))

	var eg errgroup.Group
	if r.MaxConcurrent > 0 {
		eg.SetLimit(r.MaxConcurrent)
	}
	for i, itemID := range history {
		i, itemID := i, itemID
		eg.Go(func() error {
			list, err := r.lookup(ctx, itemID)
			switch {
			case err == nil:
				lists[i] = list
			case core.IsNotFound(err):
			default:
				missed[i] = true
				r.Logger.Debug().Err(err).Str("item_id", itemID).Msg("similar lookup failed, skipped")
			}
			return nil
		})
	}
	_ = eg.Wait()

	misses := 0
	perItem := r.perItemCap(k)
	concat := make(core.RankedList, 0, len(history)*max(perItem, 1))
	for i, list := range lists {
		if missed[i] {
			misses++
			continue
		}
		if perItem > 0 {
			list = list.Head(perItem)
		}
		concat = append(concat, list...)
	}

	out := core.Success(r.Name(), concat.Dedup())
	out.Lookups = len(history)
	out.Misses = misses
	return out
}

// perItemCap 返回每个历史物品最多贡献的相似物品数，0 表示不截断。
// SimilarK > 0 时单个物品的贡献不少于请求的 k。
func (r *Online) perItemCap(k int) int {
	if r.SimilarK <= 0 {
		return 0
	}
	return max(r.SimilarK, k)
}

func (r *Online) recentItems(ctx context.Context, userID string) (core.InteractionHistory, error) {
	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	history, err := r.History.RecentItems(callCtx, userID)
	if err != nil {
		if core.IsUnavailable(err) {
			return nil, err
		}
		return nil, core.Unavailable(core.ModuleHistory, err)
	}
	// 历史里同一物品出现多次时只查一次
	return core.InteractionHistory(core.RankedList(history).Dedup()), nil
}

func (r *Online) lookup(ctx context.Context, itemID string) (core.RankedList, error) {
	callCtx, cancel := r.withTimeout(ctx)
	defer cancel()
	return r.Similar.Lookup(callCtx, itemID)
}

func (r *Online) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.LookupTimeout > 0 {
		return context.WithTimeout(ctx, r.LookupTimeout)
	}
	return context.WithCancel(ctx)
}

var _ Source = (*Online)(nil)
