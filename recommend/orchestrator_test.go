package recommend

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/recall"
)

var errBoom = errors.New("boom")

type staticHistory map[string]core.InteractionHistory

func (h staticHistory) RecentItems(_ context.Context, userID string) (core.InteractionHistory, error) {
	return h[userID], nil
}

type failingHistory struct{}

func (failingHistory) RecentItems(context.Context, string) (core.InteractionHistory, error) {
	return nil, core.Unavailable(core.ModuleHistory, errBoom)
}

type blockingPersonal struct{}

func (blockingPersonal) Lookup(ctx context.Context, _ string) (core.RankedList, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var popular = core.RankedList{"A", "B", "C", "D", "E", "F"}

// newFixture 构造一个内存版本的完整编排：
//   - u1 只有个性化列表 [P1 P2 P3]
//   - u2 有个性化列表 [P1 P2 P3]，历史 [h1]，h1 的相似物品 [O1 O2]
//   - u3 有个性化列表 [X Y Z]，历史 [h2]，h2 的相似物品 [Y W]
//   - 其它用户没有个性化列表，也没有历史
func newFixture(t *testing.T, opts Options) *Orchestrator {
	t.Helper()
	personal := recall.NewTable(core.ModulePersonal, map[string]core.RankedList{
		"u1": {"P1", "P2", "P3"},
		"u2": {"P1", "P2", "P3"},
		"u3": {"X", "Y", "Z"},
	})
	similar := recall.NewTable(core.ModuleSimilar, map[string]core.RankedList{
		"h1": {"O1", "O2"},
		"h2": {"Y", "W"},
	})
	history := staticHistory{
		"u2": {"h1"},
		"u3": {"h2"},
	}
	return mustNew(t, &recall.Offline{Personal: personal, Popular: recall.NewHot(popular), Logger: zerolog.Nop()},
		&recall.Online{History: history, Similar: similar, Logger: zerolog.Nop()}, opts)
}

func mustNew(t *testing.T, offline, online recall.Source, opts Options) *Orchestrator {
	t.Helper()
	o, err := New(offline, online, opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestOrchestrator_Scenarios(t *testing.T) {
	o := newFixture(t, Options{})

	tests := []struct {
		name          string
		userID        string
		k             int
		want          core.RankedList
		wantOffline   string
		wantOnlineLen int
	}{
		{"no personalization, no history", "cold", 5, core.RankedList{"A", "B", "C", "D", "E"}, recall.SourceDefault, 0},
		{"personalization only", "u1", 3, core.RankedList{"P1", "P2", "P3"}, recall.SourcePersonal, 0},
		{"personalization and history", "u2", 4, core.RankedList{"P1", "O1", "P2", "O2"}, recall.SourcePersonal, 2},
		{"overlap", "u3", 4, core.RankedList{"X", "Y", "W", "Z"}, recall.SourcePersonal, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := o.Recommend(context.Background(), Request{UserID: tt.userID, K: tt.k})
			if err != nil {
				t.Fatalf("Recommend: %v", err)
			}
			if !reflect.DeepEqual(resp.Items, tt.want) {
				t.Errorf("Items = %v, want %v", resp.Items, tt.want)
			}
			if resp.Offline.Source != tt.wantOffline {
				t.Errorf("offline source = %s, want %s", resp.Offline.Source, tt.wantOffline)
			}
			if resp.Online.Count != tt.wantOnlineLen || resp.Online.Status != "ok" {
				t.Errorf("online = %+v, want ok with %d items", resp.Online, tt.wantOnlineLen)
			}
			if resp.Labels["offline_source"] != tt.wantOffline {
				t.Errorf("labels = %v", resp.Labels)
			}
		})
	}
}

// 没有个性化列表、在线为空时，结果等于热门列表的前 k 个（热门列表不能被提前截断）。
func TestOrchestrator_FallbackInvariant(t *testing.T) {
	o := newFixture(t, Options{})
	for k := 0; k <= len(popular)+2; k++ {
		resp, err := o.Recommend(context.Background(), Request{UserID: "cold", K: k})
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if want := popular.Head(k); !reflect.DeepEqual(resp.Items, want) {
			t.Errorf("k=%d: Items = %v, want %v", k, resp.Items, want)
		}
	}
}

func TestOrchestrator_DegradedSources(t *testing.T) {
	personal := recall.NewTable(core.ModulePersonal, map[string]core.RankedList{"u1": {"P1", "P2"}})
	similar := recall.NewTable(core.ModuleSimilar, nil)

	t.Run("history unavailable", func(t *testing.T) {
		o := mustNew(t,
			&recall.Offline{Personal: personal, Popular: recall.NewHot(popular), Logger: zerolog.Nop()},
			&recall.Online{History: failingHistory{}, Similar: similar, Logger: zerolog.Nop()},
			Options{})
		resp, err := o.Recommend(context.Background(), Request{UserID: "u1", K: 5})
		if err != nil {
			t.Fatalf("Recommend: %v", err)
		}
		if !reflect.DeepEqual(resp.Items, core.RankedList{"P1", "P2"}) {
			t.Errorf("Items = %v, want offline only", resp.Items)
		}
		if resp.Online.Status != "degraded" || resp.Online.Reason == "" {
			t.Errorf("online = %+v, want degraded with reason", resp.Online)
		}
		if got := o.Stats().OnlineDegraded; got != 1 {
			t.Errorf("OnlineDegraded = %d, want 1", got)
		}
	})

	t.Run("offline times out", func(t *testing.T) {
		o := mustNew(t,
			&recall.Offline{Personal: blockingPersonal{}, Popular: recall.NewHot(popular), Logger: zerolog.Nop()},
			nil,
			Options{SourceTimeout: 20 * time.Millisecond})
		start := time.Now()
		resp, err := o.Recommend(context.Background(), Request{UserID: "u1", K: 5})
		if err != nil {
			t.Fatalf("Recommend: %v", err)
		}
		if time.Since(start) > time.Second {
			t.Fatal("source timeout not applied")
		}
		if len(resp.Items) != 0 || resp.Offline.Status != "degraded" {
			t.Errorf("resp = %+v, want empty degraded", resp)
		}
		if resp.Online.Status != "skipped" {
			t.Errorf("online = %+v, want skipped without online source", resp.Online)
		}
	})
}

func TestOrchestrator_OnlineGate(t *testing.T) {
	o := newFixture(t, Options{OnlineWhen: `rctx.scene != "cold_start"`})

	resp, err := o.Recommend(context.Background(), Request{UserID: "u2", K: 4, Scene: "cold_start"})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	if resp.Online.Status != "skipped" {
		t.Errorf("online status = %s, want skipped", resp.Online.Status)
	}
	if !reflect.DeepEqual(resp.Items, core.RankedList{"P1", "P2", "P3"}) {
		t.Errorf("Items = %v, want offline only", resp.Items)
	}

	resp, _ = o.Recommend(context.Background(), Request{UserID: "u2", K: 4, Scene: "feed"})
	if resp.Online.Status != "ok" || len(resp.Items) != 4 {
		t.Errorf("feed scene: online=%+v items=%v", resp.Online, resp.Items)
	}

	if _, err := New(&recall.Offline{}, nil, Options{OnlineWhen: "rctx.k +"}, zerolog.Nop()); err == nil {
		t.Error("New with broken online_when expected error")
	}
}

func TestOrchestrator_InvalidInput(t *testing.T) {
	o := newFixture(t, Options{MaxK: 50})

	tests := []struct {
		name string
		req  Request
	}{
		{"empty user", Request{UserID: "", K: 5}},
		{"malformed user", Request{UserID: "u 1", K: 5}},
		{"negative k", Request{UserID: "u1", K: -1}},
		{"k above max", Request{UserID: "u1", K: 51}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Recommend(context.Background(), tt.req)
			if !core.IsInvalidInput(err) {
				t.Errorf("err = %v, want INVALID_INPUT", err)
			}
		})
	}
	if got := o.Stats().Invalid; got != int64(len(tests)) {
		t.Errorf("Invalid = %d, want %d", got, len(tests))
	}
}

func TestOrchestrator_ZeroK(t *testing.T) {
	o := newFixture(t, Options{})
	resp, err := o.Recommend(context.Background(), Request{UserID: "u2", K: 0})
	if err != nil || resp.Items == nil || len(resp.Items) != 0 {
		t.Errorf("Recommend(k=0) = %+v, %v; want empty items", resp, err)
	}
}

func TestOrchestrator_LongSimilarListFillsK(t *testing.T) {
	long := make(core.RankedList, 15)
	for i := range long {
		long[i] = fmt.Sprintf("S%02d", i)
	}
	offline := &recall.Offline{Popular: recall.NewHot([]string{"A", "B", "C"}), Logger: zerolog.Nop()}
	online := &recall.Online{
		History:  staticHistory{"u1": {"h1"}},
		Similar:  recall.NewTable(core.ModuleSimilar, map[string]core.RankedList{"h1": long}),
		SimilarK: 10,
		Logger:   zerolog.Nop(),
	}
	o := mustNew(t, offline, online, Options{})

	resp, err := o.Recommend(context.Background(), Request{UserID: "u1", K: 20})
	if err != nil {
		t.Fatalf("Recommend: %v", err)
	}
	want := core.RankedList{"A", "S00", "B", "S01", "C"}
	want = append(want, long[2:]...)
	if !reflect.DeepEqual(resp.Items, want) {
		t.Errorf("Items = %v, want %v", resp.Items, want)
	}
}

func TestOrchestrator_OfflineAndOnlineOnly(t *testing.T) {
	o := newFixture(t, Options{})
	ctx := context.Background()

	off, err := o.Offline(ctx, Request{UserID: "u2", K: 2})
	if err != nil {
		t.Fatalf("Offline: %v", err)
	}
	if !reflect.DeepEqual(off.Items, core.RankedList{"P1", "P2"}) || off.Online != nil {
		t.Errorf("Offline = %+v", off)
	}

	on, err := o.Online(ctx, Request{UserID: "u2", K: 5})
	if err != nil {
		t.Fatalf("Online: %v", err)
	}
	if !reflect.DeepEqual(on.Items, core.RankedList{"O1", "O2"}) || on.Offline != nil {
		t.Errorf("Online = %+v", on)
	}
}

func TestOrchestrator_CancelledRequest(t *testing.T) {
	o := mustNew(t,
		&recall.Offline{Personal: blockingPersonal{}, Popular: recall.NewHot(popular), Logger: zerolog.Nop()},
		nil, Options{SourceTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := o.Recommend(ctx, Request{UserID: "u1", K: 3})
		if err != nil || len(resp.Items) != 0 {
			t.Errorf("Recommend = %+v, %v; want empty degraded result", resp, err)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation did not propagate to sources")
	}
}

func TestOrchestrator_Stats(t *testing.T) {
	o := newFixture(t, Options{})
	ctx := context.Background()
	_, _ = o.Recommend(ctx, Request{UserID: "u1", K: 3})
	_, _ = o.Recommend(ctx, Request{UserID: "cold", K: 3})
	_, _ = o.Recommend(ctx, Request{UserID: "cold", K: 3})

	s := o.Stats()
	if s.Requests != 3 || s.Personal != 1 || s.Default != 2 {
		t.Errorf("stats = %+v", s)
	}
	o.LogStats()
}
