// Package recserve 是离线 + 在线混排的推荐服务。
//
// 设计要点：
// - 离线优先：个性化列表命中时使用，否则回退到全局热门
// - 在线补充：根据用户最近的交互实时查询相似物品
// - 混排：按排名交错，首次出现去重，截断到 k
// - 可降级：任何依赖失败只会让对应来源变为空，请求本身总能返回
package recserve

import (
	"github.com/rushteam/recserve/blend"
	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recommend"
)

// 轻量 facade：便于用户直接 import "recserve" 使用核心抽象。
type (
	RankedList   = core.RankedList
	Outcome      = core.Outcome
	Orchestrator = recommend.Orchestrator
	Request      = recommend.Request
	Response     = recommend.Response
)

// Blend 按排名交错离线与在线列表，去重后截断到 k。
func Blend(offline, online RankedList, k int) RankedList {
	return blend.Blend(offline, online, k)
}
