package recall

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recserve/core"
)

// Fanout 并发解析多个来源，结果按 Sources 的顺序返回。
// 每个来源有独立的超时；单个来源失败、超时或 panic 只会让它自己降级，不影响其它来源。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个来源的超时时间，0 表示只受调用方 ctx 约束
	MaxConcurrent int           // 最大并发数（0 表示无限制）
}

func (n *Fanout) Name() string { return "recall.fanout" }

// Resolve 等待所有来源完成后返回。outcomes[i] 对应 Sources[i]。
func (n *Fanout) Resolve(ctx context.Context, rctx *core.RecommendContext) []core.Outcome {
	outcomes := make([]core.Outcome, len(n.Sources))
	if len(n.Sources) == 0 {
		return outcomes
	}

	var eg errgroup.Group
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}

	for i, src := range n.Sources {
		i, src := i, src
		eg.Go(func() error {
			outcomes[i] = n.resolveOne(ctx, rctx, src)
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func (n *Fanout) resolveOne(ctx context.Context, rctx *core.RecommendContext, src Source) (out core.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = core.Degraded(src.Name(), fmt.Errorf("source %s panicked: %v", src.Name(), r))
		}
	}()

	srcCtx := ctx
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		srcCtx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}

	out = src.Resolve(srcCtx, rctx)
	if out.Items == nil {
		out.Items = core.RankedList{}
	}
	return out
}
