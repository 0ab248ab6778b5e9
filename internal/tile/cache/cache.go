package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/voxelmap/pipeline/internal/ingest/world"
)

// entry is a CacheEntry (spec §3) plus the list element backing LRU order.
type entry struct {
	key         world.Key
	tile        *Tile
	lastAccess  time.Time
	accessCount uint64
	stale       bool
}

// Stats is a snapshot for observability (spec §4.3 "stats()").
type Stats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	Evicted uint64
}

// Cache is a bounded, strict-LRU store from ChunkKey to CacheEntry (spec
// §4.3 "TileCache"). front = most recently used, back = least recently
// used. A container/list doubly-linked list is the natural fit for O(1)
// move-to-front — no pack library models an LRU more directly than the
// stdlib list does, so this stays stdlib by design.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	ll      *list.List
	items   map[world.Key]*list.Element

	hits, misses, evicted uint64
}

// New returns an empty Cache bounded at maxSize entries.
func New(maxSize int) *Cache {
	if maxSize < 1 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		ll:      list.New(),
		items:   make(map[world.Key]*list.Element),
	}
}

// Get returns the tile even if stale, updating access_count/last_access
// (spec §4.3 "get").
func (c *Cache) Get(key world.Key) (*Tile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	e := el.Value.(*entry)
	e.lastAccess = time.Now()
	e.accessCount++
	c.ll.MoveToFront(el)
	return e.tile, true
}

// IsStale reports the stale flag without affecting recency (spec §4.3
// "is_stale does not [update recency]").
func (c *Cache) IsStale(key world.Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	return el.Value.(*entry).stale
}

// Put inserts or overwrites the tile at key, evicting the least-recently-used
// entry first if this is a new key and the cache is at capacity (spec §4.3
// "put"). Overwriting an existing key clears its stale flag.
func (c *Cache) Put(key world.Key, tile *Tile) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.tile = tile
		e.stale = false
		e.lastAccess = now
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.maxSize {
		c.evictOldest()
	}

	e := &entry{key: key, tile: tile, lastAccess: now}
	el := c.ll.PushFront(e)
	c.items[key] = el
}

// evictOldest removes the back of the list — the entry with the oldest
// last_access, ties broken by oldest insertion since insertion also pushes
// to front and ties can only occur for entries that were never touched
// again, which keeps them in original relative order at the back.
func (c *Cache) evictOldest() {
	back := c.ll.Back()
	if back == nil {
		return
	}
	e := back.Value.(*entry)
	delete(c.items, e.key)
	c.ll.Remove(back)
	c.evicted++
}

// Invalidate marks each present key stale without removing it (spec §4.3
// "invalidate"). Keys not present are silently ignored.
func (c *Cache) Invalidate(keys []world.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if el, ok := c.items[key]; ok {
			el.Value.(*entry).stale = true
		}
	}
}

// Remove hard-removes the given keys (spec §4.3 "remove": "used on
// world-reset and empty-marker"). Per §7's cache race rule, remove always
// wins over a pending invalidate for the same key.
func (c *Cache) Remove(keys []world.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if el, ok := c.items[key]; ok {
			c.ll.Remove(el)
			delete(c.items, key)
		}
	}
}

// Clear empties the cache entirely.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ll.Init()
	c.items = make(map[world.Key]*list.Element)
}

// Keys returns every key currently cached, in no particular order. Used by
// internal/tile/server to seed a newly connected viewer's initial snapshot
// (spec §4.6 "the server walks TileCache and queues one Full PendingUpdate
// per non-empty tile"); every present entry is non-empty since processor
// results that project to an empty tile are removed rather than cached.
func (c *Cache) Keys() []world.Key {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]world.Key, 0, len(c.items))
	for k := range c.items {
		out = append(out, k)
	}
	return out
}

// Stats returns a point-in-time snapshot for observability (spec §4.3).
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Size:    c.ll.Len(),
		MaxSize: c.maxSize,
		Hits:    c.hits,
		Misses:  c.misses,
		Evicted: c.evicted,
	}
}
