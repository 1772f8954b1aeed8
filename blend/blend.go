// Package blend 把离线列表与在线列表合并为一个去重、定长的推荐结果。
//
// 合并规则（交替 → 追加剩余 → 去重 → 截断）：
//
//	offline = [X, Y, Z], online = [Y, W], k = 4
//	交替：   [X, Y, Y, W, Z]
//	去重：   [X, Y, W, Z]
//	截断：   [X, Y, W, Z]
//
// Blend 是纯函数：相同输入永远得到相同输出，不修改输入。
package blend

import "github.com/rushteam/recserve/core"

// Blend 按排名交替合并 offline 与 online（同一排名 offline 在前），
// 较长列表的剩余部分按原顺序追加，按首次出现去重，最后截断到 k。
// k <= 0 返回空列表；唯一物品数不足 k 时返回全部，不做填充。
func Blend(offline, online core.RankedList, k int) core.RankedList {
	if k <= 0 {
		return core.RankedList{}
	}
	return Truncate(Dedup(Interleave(offline, online)), k)
}

// Interleave 按排名交替输出两个列表的元素，offline 在前；
// 一侧耗尽后，另一侧剩余部分按原顺序追加。结果可能包含重复。
func Interleave(offline, online core.RankedList) core.RankedList {
	out := make(core.RankedList, 0, len(offline)+len(online))
	n := max(len(offline), len(online))
	for i := 0; i < n; i++ {
		if i < len(offline) {
			out = append(out, offline[i])
		}
		if i < len(online) {
			out = append(out, online[i])
		}
	}
	return out
}

// Dedup 从左到右扫描，保留首次出现的物品。
func Dedup(items core.RankedList) core.RankedList {
	return items.Dedup()
}

// Truncate 保留前 k 个物品。
func Truncate(items core.RankedList, k int) core.RankedList {
	return items.Head(k)
}
