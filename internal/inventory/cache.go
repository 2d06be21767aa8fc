// Package inventory keeps the transient per-association item lists of a
// console session. Lists are replaced whole, never mutated in place, so a
// reader always sees a complete list.
package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maraudr/console/internal/model"
	"github.com/maraudr/console/internal/stockapi"
)

// Lister fetches an association's items from the backend.
type Lister interface {
	ListItems(ctx context.Context, associationID string, filter stockapi.ItemFilter) ([]model.StockItem, error)
}

// Counts are the figures shown next to the stock link in the navbar.
type Counts struct {
	Items int `json:"items"`
	Units int `json:"units"`
}

// Snapshot is one association's list as last loaded.
type Snapshot struct {
	AssociationID string
	Items         []model.StockItem
	LoadedAt      time.Time
}

// Counts derives the navbar figures.
func (s Snapshot) Counts() Counts {
	c := Counts{Items: len(s.Items)}
	for _, it := range s.Items {
		c.Units += it.Quantity
	}
	return c
}

type entry struct {
	snap Snapshot
	seq  uint64 // sequence number of the fetch that produced snap
}

// Cache holds the lists of one session.
type Cache struct {
	lister Lister

	mu      sync.Mutex
	entries map[string]entry
	issued  map[string]uint64
	floor   map[string]uint64 // results of fetches issued before this are stale
	subs    map[int]func(Snapshot)
	nextSub int
	now     func() time.Time
}

// New creates an empty cache backed by lister.
func New(lister Lister) *Cache {
	return &Cache{
		lister:  lister,
		entries: make(map[string]entry),
		issued:  make(map[string]uint64),
		floor:   make(map[string]uint64),
		subs:    make(map[int]func(Snapshot)),
		now:     time.Now,
	}
}

// Get returns the cached snapshot of an association.
func (c *Cache) Get(associationID string) (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[associationID]
	return e.snap, ok
}

// Items returns the cached list, loading it first when absent.
func (c *Cache) Items(ctx context.Context, associationID string) ([]model.StockItem, error) {
	if snap, ok := c.Get(associationID); ok {
		return snap.Items, nil
	}
	snap, err := c.Refresh(ctx, associationID)
	if err != nil {
		return nil, err
	}
	return snap.Items, nil
}

// Refresh reloads an association's list from the backend. When two refreshes
// overlap, the result of the later one wins even if it completes first.
func (c *Cache) Refresh(ctx context.Context, associationID string) (Snapshot, error) {
	c.mu.Lock()
	c.issued[associationID]++
	seq := c.issued[associationID]
	c.mu.Unlock()

	items, err := c.lister.ListItems(ctx, associationID, stockapi.ItemFilter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("refreshing items of %s: %w", associationID, err)
	}

	snap, _ := c.store(associationID, items, seq)
	return snap, nil
}

// Replace installs items as the association's list, as when a caller already
// holds a fresh list.
func (c *Cache) Replace(associationID string, items []model.StockItem) Snapshot {
	c.mu.Lock()
	c.issued[associationID]++
	seq := c.issued[associationID]
	c.mu.Unlock()

	snap, _ := c.store(associationID, items, seq)
	return snap
}

func (c *Cache) store(associationID string, items []model.StockItem, seq uint64) (Snapshot, bool) {
	list := make([]model.StockItem, len(items))
	copy(list, items)

	c.mu.Lock()
	snap := Snapshot{AssociationID: associationID, Items: list, LoadedAt: c.now()}
	cur, ok := c.entries[associationID]
	if ok && cur.seq > seq {
		c.mu.Unlock()
		return cur.snap, false
	}
	if seq < c.floor[associationID] {
		// Invalidated while in flight: hand the list to the caller only.
		c.mu.Unlock()
		return snap, false
	}
	c.entries[associationID] = entry{snap: snap, seq: seq}

	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap, true
}

// Invalidate drops an association's list so the next read reloads it.
// Refreshes already in flight are discarded when they complete.
func (c *Cache) Invalidate(associationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, associationID)
	c.issued[associationID]++
	c.floor[associationID] = c.issued[associationID]
}

// Subscribe registers fn to receive every installed snapshot. It returns the
// function that removes the subscription.
func (c *Cache) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}
