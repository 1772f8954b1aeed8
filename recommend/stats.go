package recommend

import (
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recall"
)

// Stats 是进程内的请求统计，服务停止时输出到日志。
type Stats struct {
	requests        atomic.Int64
	invalid         atomic.Int64
	personal        atomic.Int64
	defaults        atomic.Int64
	offlineDegraded atomic.Int64
	onlineOK        atomic.Int64
	onlineDegraded  atomic.Int64
	onlineSkipped   atomic.Int64
	similarLookups  atomic.Int64
	similarMisses   atomic.Int64
}

// StatsSnapshot 是 Stats 的只读快照。
type StatsSnapshot struct {
	Requests        int64 `json:"request_count"`
	Invalid         int64 `json:"invalid_count"`
	Personal        int64 `json:"request_personal_count"`
	Default         int64 `json:"request_default_count"`
	OfflineDegraded int64 `json:"offline_degraded_count"`
	OnlineOK        int64 `json:"online_ok_count"`
	OnlineDegraded  int64 `json:"online_degraded_count"`
	OnlineSkipped   int64 `json:"online_skipped_count"`
	SimilarLookups  int64 `json:"similar_lookup_count"`
	SimilarMisses   int64 `json:"similar_miss_count"`
}

func (s *Stats) recordOffline(o core.Outcome) {
	switch {
	case o.IsDegraded():
		s.offlineDegraded.Add(1)
	case o.Source == recall.SourcePersonal:
		s.personal.Add(1)
	case o.Source == recall.SourceDefault:
		s.defaults.Add(1)
	}
}

func (s *Stats) recordOnline(o core.Outcome) {
	switch o.Status {
	case core.StatusDegraded:
		s.onlineDegraded.Add(1)
	case core.StatusSkipped:
		s.onlineSkipped.Add(1)
	default:
		s.onlineOK.Add(1)
	}
	s.similarLookups.Add(int64(o.Lookups))
	s.similarMisses.Add(int64(o.Misses))
}

// Snapshot 返回当前统计。
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Requests:        s.requests.Load(),
		Invalid:         s.invalid.Load(),
		Personal:        s.personal.Load(),
		Default:         s.defaults.Load(),
		OfflineDegraded: s.offlineDegraded.Load(),
		OnlineOK:        s.onlineOK.Load(),
		OnlineDegraded:  s.onlineDegraded.Load(),
		OnlineSkipped:   s.onlineSkipped.Load(),
		SimilarLookups:  s.similarLookups.Load(),
		SimilarMisses:   s.similarMisses.Load(),
	}
}

// Log 把统计输出到 logger。
func (s *Stats) Log(logger zerolog.Logger) {
	snap := s.Snapshot()
	logger.Info().
		Int64("request_count", snap.Requests).
		Int64("invalid_count", snap.Invalid).
		Int64("request_personal_count", snap.Personal).
		Int64("request_default_count", snap.Default).
		Int64("offline_degraded_count", snap.OfflineDegraded).
		Int64("online_ok_count", snap.OnlineOK).
		Int64("online_degraded_count", snap.OnlineDegraded).
		Int64("online_skipped_count", snap.OnlineSkipped).
		Int64("similar_lookup_count", snap.SimilarLookups).
		Int64("similar_miss_count", snap.SimilarMisses).
		Msg("recommendation stats")
}
