// Package batcher collects per-tile updates in FIFO order with per-key
// deduplication and hands them out in bounded batches (spec §4.4
// "UpdateBatcher").
package batcher

import (
	"container/list"
	"sync"
	"time"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/cache"
)

// Kind distinguishes a full tile replacement from a delta or an
// empty-marker removal. The data model names Full/Delta (spec §3
// "PendingUpdate"); Empty is the marker §4.2's "Emptiness rule" and §4.4's
// enqueue text both require ("If kind is Empty... this tile is no longer
// renderable").
type Kind uint8

const (
	Full Kind = iota
	Delta
	Empty
)

// PendingUpdate is a queued outbound tile change (spec §3 "PendingUpdate").
type PendingUpdate struct {
	Key        world.Key
	Tile       *cache.Tile
	Kind       Kind
	EnqueuedAt time.Time
}

// Batcher holds at most one PendingUpdate per key, ordered by the most
// recent enqueue (spec §4.4 "At most one PendingUpdate per key at any
// time"). A container/list plus a key→element index gives O(1)
// enqueue/dedupe/drain — the same shape used by internal/tile/cache.
type Batcher struct {
	mu    sync.Mutex
	ll    *list.List
	items map[world.Key]*list.Element
}

// New returns an empty Batcher.
func New() *Batcher {
	return &Batcher{
		ll:    list.New(),
		items: make(map[world.Key]*list.Element),
	}
}

// Enqueue adds or replaces the pending update for key, moving it to the
// tail so the newest content wins but insertion order re-anchors to now
// (spec §4.4 "enqueue").
func (b *Batcher) Enqueue(key world.Key, tile *cache.Tile, kind Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()

	update := PendingUpdate{Key: key, Tile: tile, Kind: kind, EnqueuedAt: time.Now()}

	if el, ok := b.items[key]; ok {
		b.ll.Remove(el)
	}
	el := b.ll.PushBack(update)
	b.items[key] = el
}

// Drain returns up to maxN records in insertion order and removes them
// (spec §4.4 "drain").
func (b *Batcher) Drain(maxN int) []PendingUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []PendingUpdate
	for b.ll.Len() > 0 && len(out) < maxN {
		front := b.ll.Front()
		u := front.Value.(PendingUpdate)
		b.ll.Remove(front)
		delete(b.items, u.Key)
		out = append(out, u)
	}
	return out
}

// PeekAll returns every pending update in order without removing them.
func (b *Batcher) PeekAll() []PendingUpdate {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PendingUpdate, 0, b.ll.Len())
	for el := b.ll.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(PendingUpdate))
	}
	return out
}

// PendingCount reports how many distinct keys are currently queued.
func (b *Batcher) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ll.Len()
}

// Has reports whether key currently has a pending update.
func (b *Batcher) Has(key world.Key) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.items[key]
	return ok
}

// Remove drops key's pending update, if any, without returning it.
func (b *Batcher) Remove(key world.Key) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if el, ok := b.items[key]; ok {
		b.ll.Remove(el)
		delete(b.items, key)
	}
}

// Clear drops every pending update.
func (b *Batcher) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ll.Init()
	b.items = make(map[world.Key]*list.Element)
}
