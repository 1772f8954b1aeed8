// Package metrics 定义服务的 Prometheus 指标，并提供记录函数。
// 指标通过 promauto 注册到默认 Registry，由 server 在 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

var (
	// RecommendRequests 按离线来源（personal / default）统计请求数
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_recommend_requests_total",
			Help: "Total number of recommendation requests by offline source",
		},
		[]string{"endpoint", "offline_source"},
	)

	// SourceOutcomes 按来源与解析状态统计（ok / fallback / degraded / skipped）
	SourceOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_source_outcomes_total",
			Help: "Source resolution outcomes by source and status",
		},
		[]string{"source", "status"},
	)

	SimilarLookups = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recserve_similar_lookups_total",
			Help: "Total number of similar-item lookups issued by the online recommender",
		},
	)

	SimilarMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recserve_similar_misses_total",
			Help: "Similar-item lookups skipped because the index failed or timed out",
		},
	)

	RecommendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recserve_recommend_duration_seconds",
			Help:    "Recommendation latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"endpoint"},
	)

	InvalidRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recserve_invalid_requests_total",
			Help: "Requests rejected as invalid input",
		},
	)

	EventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_events_recorded_total",
			Help: "Interaction events appended to the history store",
		},
		[]string{"result"},
	)

	// CircuitBreakerState 0 = closed, 1 = half-open, 2 = open
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recserve_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recserve_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	TableRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recserve_table_keys",
			Help: "Number of keys loaded per offline table",
		},
		[]string{"table"},
	)
)

// RecordRecommend 记录一次推荐请求。
func RecordRecommend(endpoint, offlineSource string, duration time.Duration) {
	if offlineSource != "" {
		RecommendRequests.WithLabelValues(endpoint, offlineSource).Inc()
	}
	RecommendDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordOutcome 记录一个来源的解析结果。
func RecordOutcome(source, status string) {
	SourceOutcomes.WithLabelValues(source, status).Inc()
}

// RecordSimilarLookups 记录在线召回的相似查询次数与失败次数。
func RecordSimilarLookups(lookups, misses int) {
	SimilarLookups.Add(float64(lookups))
	SimilarMisses.Add(float64(misses))
}

// RecordEvent 记录一次交互写入。
func RecordEvent(err error) {
	if err != nil {
		EventsRecorded.WithLabelValues("error").Inc()
		return
	}
	EventsRecorded.WithLabelValues("ok").Inc()
}

// BreakerStateChange 可直接作为 recall.BreakerSettings.OnStateChange。
func BreakerStateChange(name string, from, to gobreaker.State) {
	CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
	CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
