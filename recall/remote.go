package recall

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recserve/core"
)

// ListRequest 是远程历史/相似物品服务的请求体。
//
//	{"user_id": "u1", "k": 5}
//	{"item_id": "i1", "k": 10}
type ListRequest struct {
	UserID string `json:"user_id,omitempty"`
	ItemID string `json:"item_id,omitempty"`
	K      int    `json:"k,omitempty"`
}

// ListResponse 是远程服务的响应体，item_ids 按排名排列，scores 可选。
//
//	{"item_ids": ["i2", "i3"], "scores": [0.93, 0.71]}
type ListResponse struct {
	ItemIDs []string  `json:"item_ids"`
	Scores  []float64 `json:"scores,omitempty"`
}

// BreakerSettings 是远程调用的熔断配置。
// 统计窗口内请求数达到 MinRequests 且失败率 >= FailureRatio 时熔断，
// Timeout 后进入半开状态，最多放行 MaxRequests 个探测请求。
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64

	// OnStateChange 状态变化回调（指标）
	OnStateChange func(name string, from, to gobreaker.State)
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.MaxRequests == 0 {
		s.MaxRequests = 3
	}
	if s.Interval == 0 {
		s.Interval = time.Minute
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MinRequests == 0 {
		s.MinRequests = 10
	}
	if s.FailureRatio <= 0 {
		s.FailureRatio = 0.6
	}
	return s
}

// RemoteOptions 是远程客户端的公共参数。
type RemoteOptions struct {
	// Timeout 单次请求超时；调用方 ctx 的截止时间更早时以 ctx 为准
	Timeout time.Duration
	Client  *http.Client
	Breaker BreakerSettings
	Logger  zerolog.Logger
}

// remoteClient 以 HTTP POST + JSON 调用远程列表服务，调用经过熔断器。
type remoteClient struct {
	module   string
	endpoint string
	client   *http.Client
	cb       *gobreaker.CircuitBreaker[core.RankedList]
	logger   zerolog.Logger
}

func newRemoteClient(module, endpoint string, opts RemoteOptions) *remoteClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = core.DefaultLookupTimeout
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger.With().Str("component", "remote").Str("module", module).Logger()
	bs := opts.Breaker.withDefaults()

	cb := gobreaker.NewCircuitBreaker[core.RankedList](gobreaker.Settings{
		Name:        "remote-" + module,
		MaxRequests: bs.MaxRequests,
		Interval:    bs.Interval,
		Timeout:     bs.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < bs.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= bs.FailureRatio {
				logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_ratio", ratio).Msg("opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("circuit state transition")
			if bs.OnStateChange != nil {
				bs.OnStateChange(name, from, to)
			}
		},
		// 调用方取消不计为依赖失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &remoteClient{
		module:   module,
		endpoint: endpoint,
		client:   client,
		cb:       cb,
		logger:   logger,
	}
}

func (c *remoteClient) call(ctx context.Context, body ListRequest) (core.RankedList, error) {
	list, err := c.cb.Execute(func() (core.RankedList, error) {
		return c.post(ctx, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Debug().Err(err).Msg("request rejected by circuit breaker")
		}
		return nil, core.Unavailable(c.module, err)
	}
	return list, nil
}

func (c *remoteClient) post(ctx context.Context, body ListRequest) (core.RankedList, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", c.module, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s error: status=%d, body=%s", c.module, resp.StatusCode, string(msg))
	}

	var out ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return core.RankedList(out.ItemIDs).Dedup(), nil
}

// RemoteHistory 是 HTTP 远程交互历史服务（core.HistoryService）。
//
//	h := recall.NewRemoteHistory("http://history:8080/history", 5, recall.RemoteOptions{
//		Timeout: 150 * time.Millisecond,
//	})
type RemoteHistory struct {
	c         *remoteClient
	maxLength int
}

func NewRemoteHistory(endpoint string, maxLength int, opts RemoteOptions) *RemoteHistory {
	if maxLength <= 0 {
		maxLength = core.DefaultHistoryLength
	}
	return &RemoteHistory{c: newRemoteClient(core.ModuleHistory, endpoint, opts), maxLength: maxLength}
}

func (r *RemoteHistory) Name() string { return "recall.remote_history" }

func (r *RemoteHistory) RecentItems(ctx context.Context, userID string) (core.InteractionHistory, error) {
	list, err := r.c.call(ctx, ListRequest{UserID: userID, K: r.maxLength})
	if err != nil {
		return nil, err
	}
	return core.InteractionHistory(list.Head(r.maxLength)), nil
}

// RemoteSimilar 是 HTTP 远程相似物品服务（core.SimilarItemsIndex）。
// 相似物品表在服务端是只读的，成功的结果进入 LRU 缓存，后续请求不再调用远程。
type RemoteSimilar struct {
	c     *remoteClient
	k     int
	cache *lru.Cache[string, core.RankedList]
}

// NewRemoteSimilar 创建远程相似物品客户端；cacheSize <= 0 时不缓存。
func NewRemoteSimilar(endpoint string, k, cacheSize int, opts RemoteOptions) (*RemoteSimilar, error) {
	if k <= 0 {
		k = core.DefaultSimilarK
	}
	r := &RemoteSimilar{c: newRemoteClient(core.ModuleSimilar, endpoint, opts), k: k}
	if cacheSize > 0 {
		cache, err := lru.New[string, core.RankedList](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("similar cache: %w", err)
		}
		r.cache = cache
	}
	return r, nil
}

func (r *RemoteSimilar) Name() string { return "recall.remote_similar" }

func (r *RemoteSimilar) Lookup(ctx context.Context, itemID string) (core.RankedList, error) {
	if r.cache != nil {
		if list, ok := r.cache.Get(itemID); ok {
			return list, nil
		}
	}
	list, err := r.c.call(ctx, ListRequest{ItemID: itemID, K: r.k})
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		r.cache.Add(itemID, list)
	}
	return list, nil
}

var (
	_ core.HistoryService    = (*RemoteHistory)(nil)
	_ core.SimilarItemsIndex = (*RemoteSimilar)(nil)
)
