package recall

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rushteam/recserve/core"
)

var errBoom = errors.New("boom")

type fakeHistory struct {
	items core.InteractionHistory
	err   error
	delay time.Duration
}

func (f *fakeHistory) RecentItems(ctx context.Context, _ string) (core.InteractionHistory, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.items, f.err
}

// fakeSimilar 按物品返回固定列表；errs 中的物品返回错误，slow 中的物品阻塞到 ctx 结束。
type fakeSimilar struct {
	lists map[string]core.RankedList
	errs  map[string]error
	slow  map[string]bool
	calls atomic.Int32
}

func (f *fakeSimilar) Lookup(ctx context.Context, itemID string) (core.RankedList, error) {
	f.calls.Add(1)
	if f.slow[itemID] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.errs[itemID]; ok {
		return nil, err
	}
	list, ok := f.lists[itemID]
	if !ok {
		return nil, core.NotFound(core.ModuleSimilar, "no similar items for %q", itemID)
	}
	return list, nil
}

type fakePopular struct {
	list core.RankedList
	err  error
}

func (f *fakePopular) Popular(context.Context) (core.RankedList, error) { return f.list, f.err }

type fakePersonal struct {
	rows map[string]core.RankedList
	err  error
}

func (f *fakePersonal) Lookup(_ context.Context, userID string) (core.RankedList, error) {
	if f.err != nil {
		return nil, f.err
	}
	list, ok := f.rows[userID]
	if !ok {
		return nil, core.NotFound(core.ModulePersonal, "no list for %q", userID)
	}
	return list, nil
}
