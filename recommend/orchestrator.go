// Package recommend 是推荐请求的编排入口：并发解析离线与在线来源，
// 混排为去重、定长的结果。
//
//	RESOLVE_OFFLINE ─┐
//	                 ├─> BLEND ─> RESPOND
//	RESOLVE_ONLINE  ─┘
//
// 依赖失败都在本包内被吸收为降级结果；只有非法输入会作为错误返回。
package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/blend"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/metrics"
	"github.com/rushteam/recserve/pkg/dsl"
	"github.com/rushteam/recserve/pkg/utils"
	"github.com/rushteam/recserve/recall"
)

// 指标里的 endpoint 标签
const (
	EndpointBlended = "recommendations"
	EndpointOffline = "offline"
	EndpointOnline  = "online"
)

// Options 是编排参数，零值字段使用 core 包中的默认值。
type Options struct {
	// MaxK 是允许的最大 k
	MaxK int

	// SourceTimeout 是离线、在线来源各自的解析超时
	SourceTimeout time.Duration

	// OnlineWhen 是在线召回的开关表达式（CEL），为空时总是启用
	OnlineWhen string
}

// Orchestrator 编排一次推荐请求。并发安全，整个进程共享一个实例。
type Orchestrator struct {
	offline recall.Source
	online  recall.Source
	gate    *dsl.Eval
	opts    Options
	logger  zerolog.Logger
	stats   Stats
}

// New 创建 Orchestrator。online 可以为 nil（只使用离线结果）。
// OnlineWhen 表达式在这里编译，编译失败返回错误。
func New(offline, online recall.Source, opts Options, logger zerolog.Logger) (*Orchestrator, error) {
	if offline == nil {
		return nil, fmt.Errorf("recommend: offline source is required")
	}
	if opts.MaxK <= 0 {
		opts.MaxK = core.DefaultMaxK
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = core.DefaultSourceTimeout
	}
	gate, err := dsl.Compile(opts.OnlineWhen)
	if err != nil {
		return nil, fmt.Errorf("recommend: online_when: %w", err)
	}
	return &Orchestrator{
		offline: offline,
		online:  online,
		gate:    gate,
		opts:    opts,
		logger:  logger.With().Str("component", "recommend").Logger(),
	}, nil
}

// Recommend 返回离线与在线混排后的结果。
func (o *Orchestrator) Recommend(ctx context.Context, req Request) (*Response, error) {
	return o.serve(ctx, req, EndpointBlended, true, true)
}

// Offline 只返回离线结果（个性化或热门），截断到 k。
func (o *Orchestrator) Offline(ctx context.Context, req Request) (*Response, error) {
	return o.serve(ctx, req, EndpointOffline, true, false)
}

// Online 只返回基于最近交互的在线结果，截断到 k。
func (o *Orchestrator) Online(ctx context.Context, req Request) (*Response, error) {
	return o.serve(ctx, req, EndpointOnline, false, true)
}

// Stats 返回请求统计快照。
func (o *Orchestrator) Stats() StatsSnapshot { return o.stats.Snapshot() }

// LogStats 把请求统计输出到日志，服务停止时调用。
func (o *Orchestrator) LogStats() { o.stats.Log(o.logger) }

func (o *Orchestrator) serve(ctx context.Context, req Request, endpoint string, withOffline, withOnline bool) (*Response, error) {
	start := time.Now()
	o.stats.requests.Add(1)

	if err := req.Validate(o.opts.MaxK); err != nil {
		o.stats.invalid.Add(1)
		metrics.InvalidRequests.Inc()
		return nil, err
	}

	rctx := req.context()
	if req.K == 0 {
		return newResponse(req, nil, rctx), nil
	}

	offline, online := o.resolve(ctx, rctx, withOffline, withOnline)

	var items core.RankedList
	switch {
	case withOffline && withOnline:
		items = blend.Blend(offline.Items, online.Items, req.K)
	case withOffline:
		items = blend.Blend(offline.Items, nil, req.K)
	default:
		items = blend.Blend(nil, online.Items, req.K)
	}

	resp := newResponse(req, items, rctx)
	offlineSource := ""
	if withOffline {
		resp.Offline = report(offline)
		o.stats.recordOffline(offline)
		metrics.RecordOutcome(offline.Source, offline.Status.String())
		if !offline.IsDegraded() {
			offlineSource = offline.Source
		}
	}
	if withOnline {
		resp.Online = report(online)
		o.stats.recordOnline(online)
		metrics.RecordOutcome(online.Source, online.Status.String())
		metrics.RecordSimilarLookups(online.Lookups, online.Misses)
	}

	elapsed := time.Since(start)
	metrics.RecordRecommend(endpoint, offlineSource, elapsed)

	o.logger.Debug().
		Str("user_id", req.UserID).
		Str("endpoint", endpoint).
		Int("k", req.K).
		Int("count", len(items)).
		Str("labels", utils.FormatLabels(rctx.Labels)).
		Dur("elapsed", elapsed).
		Msg("recommendation served")

	return resp, nil
}

// resolve 并发解析所需的来源，每个来源有独立的超时。
func (o *Orchestrator) resolve(ctx context.Context, rctx *core.RecommendContext, withOffline, withOnline bool) (offline, online core.Outcome) {
	fanout := &recall.Fanout{Timeout: o.opts.SourceTimeout}
	offlineIdx, onlineIdx := -1, -1

	if withOffline {
		offlineIdx = len(fanout.Sources)
		fanout.Sources = append(fanout.Sources, o.offline)
	}
	if withOnline {
		online = o.gateOnline(rctx)
		if online.Status == core.StatusOK {
			onlineIdx = len(fanout.Sources)
			fanout.Sources = append(fanout.Sources, o.online)
		}
	}

	outcomes := fanout.Resolve(ctx, rctx)
	if offlineIdx >= 0 {
		offline = outcomes[offlineIdx]
		rctx.PutLabel("offline_source", utils.Label{Value: offline.Source, Source: "offline"})
		if offline.IsDegraded() {
			o.logger.Warn().Err(offline.Reason).Str("user_id", rctx.UserID).Msg("offline source degraded")
		}
	}
	if onlineIdx >= 0 {
		online = outcomes[onlineIdx]
		if online.IsDegraded() {
			o.logger.Warn().Err(online.Reason).Str("user_id", rctx.UserID).Msg("online source degraded")
		}
	}
	if withOnline {
		rctx.PutLabel("online", utils.Label{Value: online.Status.String(), Source: "online"})
	}
	return offline, online
}

// gateOnline 判断本次请求是否需要在线召回。返回 StatusOK 表示需要解析。
func (o *Orchestrator) gateOnline(rctx *core.RecommendContext) core.Outcome {
	if o.online == nil {
		return core.Skipped(EndpointOnline)
	}
	ok, err := o.gate.Evaluate(rctx)
	if err != nil {
		o.logger.Warn().Err(err).Str("expr", o.gate.String()).Msg("online gate failed, online source degraded")
		return core.Degraded(o.online.Name(), err)
	}
	if !ok {
		return core.Skipped(o.online.Name())
	}
	return core.Success(o.online.Name(), nil)
}
