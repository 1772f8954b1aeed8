package core

import "time"

// 服务默认值，与离线训练产出保持一致。
const (
	// DefaultK 是调用方未指定 k 时返回的推荐数量
	DefaultK = 10

	// DefaultMaxK 是单次请求允许的最大 k
	DefaultMaxK = 1000

	// DefaultHistoryLength 是在线召回使用的最近交互条数
	DefaultHistoryLength = 5

	// DefaultSimilarK 是每个历史物品取的相似物品数
	DefaultSimilarK = 10

	// DefaultSourceTimeout 是离线/在线来源各自解析的超时时间
	DefaultSourceTimeout = 300 * time.Millisecond

	// DefaultLookupTimeout 是单次外部调用（历史、相似物品）的超时时间
	DefaultLookupTimeout = 150 * time.Millisecond
)
