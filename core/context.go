package core

import "github.com/rushteam/recserve/pkg/utils"

// RecommendContext 承载单次请求的用户/场景信息，贯穿编排、在线召回、开关表达式。
type RecommendContext struct {
	UserID string
	Scene  string

	// K 是期望返回的物品数量
	K int

	// Labels 是请求级标签，用于 explain / 观测
	// 例如 offline_source=personal|default、online=ok|degraded|skipped
	Labels map[string]utils.Label

	// Params 请求级上下文参数（device_type、time_of_day 等），可被开关表达式读取
	Params map[string]any
}

// PutLabel 写入请求级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}
