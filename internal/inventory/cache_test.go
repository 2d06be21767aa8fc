package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

type fakeLister struct {
	mu    sync.Mutex
	calls int
	items map[string][]model.StockItem
	err   error
	// gate, when set, blocks a call until a value is received.
	gate chan []model.StockItem
}

func (f *fakeLister) ListItems(_ context.Context, associationID string, _ stockapi.ItemFilter) ([]model.StockItem, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		return <-gate, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items[associationID], nil
}

func TestItemsLoadsOnce(t *testing.T) {
	lister := &fakeLister{items: map[string][]model.StockItem{
		"a1": {{ID: "1", Quantity: 2}, {ID: "2", Quantity: 3}},
	}}
	c := New(lister)
	ctx := context.Background()

	for range 3 {
		items, err := c.Items(ctx, "a1")
		if err != nil {
			t.Fatalf("Items: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 items, got %d", len(items))
		}
	}
	if lister.calls != 1 {
		t.Errorf("expected 1 backend call, got %d", lister.calls)
	}

	snap, _ := c.Get("a1")
	if got := snap.Counts(); got != (Counts{Items: 2, Units: 5}) {
		t.Errorf("unexpected counts %+v", got)
	}

	c.Invalidate("a1")
	c.Items(ctx, "a1")
	if lister.calls != 2 {
		t.Errorf("expected reload after invalidate, got %d calls", lister.calls)
	}
}

func TestRefreshErrorKeepsPreviousList(t *testing.T) {
	lister := &fakeLister{items: map[string][]model.StockItem{"a1": {{ID: "1"}}}}
	c := New(lister)
	ctx := context.Background()

	if _, err := c.Refresh(ctx, "a1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	lister.err = stockapi.ErrServer
	if _, err := c.Refresh(ctx, "a1"); !errors.Is(err, stockapi.ErrServer) {
		t.Fatalf("expected ErrServer, got %v", err)
	}

	snap, ok := c.Get("a1")
	if !ok || len(snap.Items) != 1 {
		t.Errorf("expected previous list to survive, got %+v", snap)
	}
}

func TestReplaceDoesNotAliasInput(t *testing.T) {
	c := New(&fakeLister{})
	items := []model.StockItem{{ID: "1", Name: "Rice"}}
	c.Replace("a1", items)

	items[0].Name = "changed"
	snap, _ := c.Get("a1")
	if snap.Items[0].Name != "Rice" {
		t.Error("cache must copy the installed list")
	}
}

func TestLaterRefreshWins(t *testing.T) {
	gate := make(chan []model.StockItem)
	lister := &fakeLister{gate: gate}
	c := New(lister)
	ctx := context.Background()

	done := make(chan Snapshot)
	go func() {
		snap, _ := c.Refresh(ctx, "a1")
		done <- snap
	}()

	// Wait until the slow refresh is in flight, then install a newer list.
	for {
		lister.mu.Lock()
		n := lister.calls
		lister.mu.Unlock()
		if n == 1 {
			break
		}
	}
	c.Replace("a1", []model.StockItem{{ID: "new"}})

	gate <- []model.StockItem{{ID: "old"}}
	<-done

	snap, _ := c.Get("a1")
	if len(snap.Items) != 1 || snap.Items[0].ID != "new" {
		t.Errorf("stale refresh overwrote newer list: %+v", snap.Items)
	}
}

func TestSubscribe(t *testing.T) {
	c := New(&fakeLister{})

	var got []Counts
	unsubscribe := c.Subscribe(func(s Snapshot) { got = append(got, s.Counts()) })

	c.Replace("a1", []model.StockItem{{Quantity: 4}})
	unsubscribe()
	c.Replace("a1", nil)

	if len(got) != 1 || got[0].Units != 4 {
		t.Errorf("unexpected notifications %+v", got)
	}
}

func TestInvalidateDiscardsRefreshInFlight(t *testing.T) {
	gate := make(chan []model.StockItem)
	lister := &fakeLister{gate: gate}
	c := New(lister)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		c.Refresh(ctx, "a1")
		close(done)
	}()

	for {
		lister.mu.Lock()
		n := lister.calls
		lister.mu.Unlock()
		if n == 1 {
			break
		}
	}
	c.Invalidate("a1")

	gate <- []model.StockItem{{ID: "old"}}
	<-done

	if snap, ok := c.Get("a1"); ok {
		t.Fatalf("refresh issued before invalidate was installed: %+v", snap.Items)
	}

	lister.mu.Lock()
	lister.gate = nil
	lister.items = map[string][]model.StockItem{"a1": {{ID: "old"}, {ID: "added"}}}
	lister.mu.Unlock()

	items, err := c.Items(ctx, "a1")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 2 {
		t.Errorf("expected reloaded list of 2, got %+v", items)
	}
	if lister.calls != 2 {
		t.Errorf("expected a reload after invalidate, got %d calls", lister.calls)
	}
}
