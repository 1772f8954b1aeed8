package recall

import (
	"context"
	"reflect"
	"testing"

	"github.com/rushteam/recserve/core"
	"github.com/rushteam/recserve/store"
)

// failingStore 的所有读取都失败。
type failingStore struct{ *store.MemoryStore }

func (failingStore) GetList(context.Context, string, int) ([]string, error) { return nil, errBoom }

func TestHot_Popular(t *testing.T) {
	ctx := context.Background()

	listStore := store.NewMemoryStore()
	_ = listStore.SetList(ctx, "popular", []string{"A", "B", "C"})

	zsetStore := store.NewMemoryStore()
	_ = zsetStore.ZAdd(ctx, "popular", 1, "low")
	_ = zsetStore.ZAdd(ctx, "popular", 3, "top")
	_ = zsetStore.ZAdd(ctx, "popular", 2, "mid")

	tests := []struct {
		name    string
		hot     *Hot
		want    core.RankedList
		wantErr bool
	}{
		{"static", NewHot([]string{"x", "y", "x"}), core.RankedList{"x", "y"}, false},
		{"list", &Hot{Store: listStore, Key: "popular"}, core.RankedList{"A", "B", "C"}, false},
		{"list limit", &Hot{Store: listStore, Key: "popular", Limit: 2}, core.RankedList{"A", "B"}, false},
		{"zset by score", &Hot{Store: zsetStore, Key: "popular", ZSet: true}, core.RankedList{"top", "mid", "low"}, false},
		{"missing key uses ids", &Hot{Store: listStore, Key: "nope", IDs: []string{"f"}}, core.RankedList{"f"}, false},
		{"store failure uses ids", &Hot{Store: failingStore{store.NewMemoryStore()}, Key: "popular", IDs: []string{"f"}}, core.RankedList{"f"}, false},
		{"store failure without ids", &Hot{Store: failingStore{store.NewMemoryStore()}, Key: "popular"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.hot.Popular(ctx)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Popular err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Popular = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHot_CachedAfterLoad(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	_ = s.SetList(ctx, "popular", []string{"A"})

	h := &Hot{Store: s, Key: "popular"}
	first, _ := h.Popular(ctx)
	_ = s.SetList(ctx, "popular", []string{"B"})
	second, _ := h.Popular(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("popular list changed after load: %v -> %v", first, second)
	}
}
