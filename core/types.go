package core

// RankedList 是有序的物品 ID 列表，排名即下标。
// 由单一来源产出的 RankedList 内不应有重复 ID。
type RankedList []string

// InteractionHistory 是用户最近交互过的物品，最近的在前，长度有上限。
// 空历史是合法状态，与"未知用户"不同。
type InteractionHistory []string

// Dedup 按首次出现保留，返回新的列表，不修改原列表。
func (l RankedList) Dedup() RankedList {
	if len(l) == 0 {
		return RankedList{}
	}
	seen := make(map[string]struct{}, len(l))
	out := make(RankedList, 0, len(l))
	for _, id := range l {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Head 返回前 n 个元素；n <= 0 返回空列表，n 超过长度时返回全部。
func (l RankedList) Head(n int) RankedList {
	if n <= 0 {
		return RankedList{}
	}
	if n >= len(l) {
		return l
	}
	return l[:n]
}
