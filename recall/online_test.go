package recall

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recserve/core"
)

func TestOnline_Recommend(t *testing.T) {
	similar := map[string]core.RankedList{
		"h1": {"a", "b", "c"},
		"h2": {"b", "d"},
		"h3": {"e"},
	}

	tests := []struct {
		name       string
		history    *fakeHistory
		similar    *fakeSimilar
		similarK   int
		want       core.RankedList
		wantStatus core.Status
		wantMisses int
	}{
		{
			name:       "concatenate in history order and dedup",
			history:    &fakeHistory{items: core.InteractionHistory{"h1", "h2", "h3"}},
			similar:    &fakeSimilar{lists: similar},
			want:       core.RankedList{"a", "b", "c", "d", "e"},
			wantStatus: core.StatusOK,
		},
		{
			name:       "per-item cap",
			history:    &fakeHistory{items: core.InteractionHistory{"h1", "h2"}},
			similar:    &fakeSimilar{lists: similar},
			similarK:   1,
			want:       core.RankedList{"a", "b"},
			wantStatus: core.StatusOK,
		},
		{
			name:       "empty history",
			history:    &fakeHistory{items: core.InteractionHistory{}},
			similar:    &fakeSimilar{lists: similar},
			want:       core.RankedList{},
			wantStatus: core.StatusOK,
		},
		{
			name:       "not found is empty contribution, not a miss",
			history:    &fakeHistory{items: core.InteractionHistory{"unknown", "h3"}},
			similar:    &fakeSimilar{lists: similar},
			want:       core.RankedList{"e"},
			wantStatus: core.StatusOK,
		},
		{
			name:       "failed lookup skipped and counted",
			history:    &fakeHistory{items: core.InteractionHistory{"h1", "h2", "h3"}},
			similar:    &fakeSimilar{lists: similar, errs: map[string]error{"h2": errBoom}},
			want:       core.RankedList{"a", "b", "c", "e"},
			wantStatus: core.StatusOK,
			wantMisses: 1,
		},
		{
			name:       "history failure degrades",
			history:    &fakeHistory{err: errBoom},
			similar:    &fakeSimilar{lists: similar},
			want:       core.RankedList{},
			wantStatus: core.StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Online{
				History:  tt.history,
				Similar:  tt.similar,
				SimilarK: tt.similarK,
				Logger:   zerolog.Nop(),
			}
			got := o.Recommend(context.Background(), "u1")
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %v, want %v (reason %v)", got.Status, tt.wantStatus, got.Reason)
			}
			if !reflect.DeepEqual(got.Items, tt.want) {
				t.Errorf("Items = %v, want %v", got.Items, tt.want)
			}
			if got.Misses != tt.wantMisses {
				t.Errorf("Misses = %d, want %d", got.Misses, tt.wantMisses)
			}
		})
	}
}

func TestOnline_LookupTimeout(t *testing.T) {
	o := &Online{
		History: &fakeHistory{items: core.InteractionHistory{"slow", "h1"}},
		Similar: &fakeSimilar{
			lists: map[string]core.RankedList{"h1": {"a"}},
			slow:  map[string]bool{"slow": true},
		},
		LookupTimeout: 20 * time.Millisecond,
		Logger:        zerolog.Nop(),
	}

	start := time.Now()
	got := o.Recommend(context.Background(), "u1")
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Recommend took %v, lookup timeout not applied", elapsed)
	}
	if !reflect.DeepEqual(got.Items, core.RankedList{"a"}) || got.Misses != 1 {
		t.Errorf("got items=%v misses=%d, want [a] 1", got.Items, got.Misses)
	}
}

func TestOnline_HistoryTimeoutDegrades(t *testing.T) {
	o := &Online{
		History:       &fakeHistory{items: core.InteractionHistory{"h1"}, delay: time.Second},
		Similar:       &fakeSimilar{},
		LookupTimeout: 10 * time.Millisecond,
		Logger:        zerolog.Nop(),
	}
	got := o.Recommend(context.Background(), "u1")
	if !got.IsDegraded() || !core.IsUnavailable(got.Reason) {
		t.Errorf("got %v (%v), want degraded unavailable", got.Status, got.Reason)
	}
}

func TestOnline_DuplicateHistoryQueriedOnce(t *testing.T) {
	sim := &fakeSimilar{lists: map[string]core.RankedList{"h1": {"a"}}}
	o := &Online{
		History: &fakeHistory{items: core.InteractionHistory{"h1", "h1"}},
		Similar: sim,
		Logger:  zerolog.Nop(),
	}
	_ = o.Recommend(context.Background(), "u1")
	if n := sim.calls.Load(); n != 1 {
		t.Errorf("similar lookups = %d, want 1", n)
	}
}

func TestOnline_ResolveCapFollowsRequestK(t *testing.T) {
	long := make(core.RankedList, 15)
	for i := range long {
		long[i] = fmt.Sprintf("s%02d", i)
	}

	tests := []struct {
		name     string
		similarK int
		k        int
		wantLen  int
	}{
		{"k above similar_k", 10, 20, 15},
		{"k below similar_k", 10, 3, 10},
		{"no cap", 0, 3, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Online{
				History:  &fakeHistory{items: core.InteractionHistory{"h1"}},
				Similar:  &fakeSimilar{lists: map[string]core.RankedList{"h1": long}},
				SimilarK: tt.similarK,
				Logger:   zerolog.Nop(),
			}
			got := o.Resolve(context.Background(), &core.RecommendContext{UserID: "u1", K: tt.k})
			if len(got.Items) != tt.wantLen {
				t.Fatalf("len(Items) = %d, want %d", len(got.Items), tt.wantLen)
			}
			if !reflect.DeepEqual(got.Items, long[:tt.wantLen]) {
				t.Errorf("Items = %v, want prefix of %v", got.Items, long)
			}
		})
	}
}
