package recall

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/store"
)

func TestUserHistory(t *testing.T) {
	ctx := context.Background()
	clock := time.UnixMilli(1_700_000_000_000)
	h := &UserHistory{
		Store:     store.NewMemoryStore(),
		MaxLength: 3,
		Keep:      4,
		Now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	}

	got, err := h.RecentItems(ctx, "u1")
	if err != nil || len(got) != 0 {
		t.Fatalf("RecentItems(empty) = %v, %v; want empty, nil", got, err)
	}

	if err := h.Import(ctx, "u1", core.InteractionHistory{"old1", "old2", "old1"}); err != nil {
		t.Fatalf("Import: %v", err)
	}
	for _, id := range []string{"a", "b", "c", "a"} {
		if err := h.Record(ctx, "u1", id); err != nil {
			t.Fatalf("Record(%s): %v", id, err)
		}
	}

	got, _ = h.RecentItems(ctx, "u1")
	if want := (core.InteractionHistory{"a", "c", "b"}); !reflect.DeepEqual(got, want) {
		t.Errorf("RecentItems = %v, want %v", got, want)
	}

	// Keep=4：a c b old1 保留，old2 被裁剪
	all, _ := h.Recent(ctx, "u1", 0)
	if want := (core.InteractionHistory{"a", "c", "b", "old1"}); !reflect.DeepEqual(all, want) {
		t.Errorf("Recent(all) = %v, want %v", all, want)
	}
}
