package core

// Status 描述一个推荐来源在单次请求中的解析结果。
type Status int

const (
	StatusOK       Status = iota // 正常返回（可能为空，例如用户没有历史）
	StatusFallback               // 个性化缺失，使用了热门列表
	StatusDegraded               // 依赖失败或超时，降级为空列表
	StatusSkipped                // 被策略跳过（例如在线召回开关表达式为 false）
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFallback:
		return "fallback"
	case StatusDegraded:
		return "degraded"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Outcome 是来源解析结果：区分 Success(list) 与 Degraded(empty, reason)，
// 测试可以断言发生了降级，而不会与"历史确实为空"混淆。
type Outcome struct {
	Source  string     // 来源名称：personal / default / online
	Status  Status     // 解析状态
	Items   RankedList // 来源列表；Degraded / Skipped 时为空
	Reason  error      // Degraded 时的原因
	Lookups int        // 在线召回发起的相似物品查询次数
	Misses  int        // 其中失败或超时被跳过的次数
}

// Success 构造正常结果。
func Success(source string, items RankedList) Outcome {
	if items == nil {
		items = RankedList{}
	}
	return Outcome{Source: source, Status: StatusOK, Items: items}
}

// Fallback 构造降级到热门列表的结果。
func Fallback(source string, items RankedList) Outcome {
	if items == nil {
		items = RankedList{}
	}
	return Outcome{Source: source, Status: StatusFallback, Items: items}
}

// Degraded 构造降级为空列表的结果。
func Degraded(source string, reason error) Outcome {
	return Outcome{Source: source, Status: StatusDegraded, Items: RankedList{}, Reason: reason}
}

// Skipped 构造被跳过的结果。
func Skipped(source string) Outcome {
	return Outcome{Source: source, Status: StatusSkipped, Items: RankedList{}}
}

// IsDegraded 报告该来源是否发生了降级。
func (o Outcome) IsDegraded() bool { return o.Status == StatusDegraded }
