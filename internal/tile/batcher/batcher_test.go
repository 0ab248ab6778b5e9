package batcher

import (
	"testing"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/cache"
)

func key(cx int32) world.Key { return world.Key{CX: cx, CZ: 0, Dim: world.Overworld} }

func TestDrainReturnsAtMostNUniqueKeys(t *testing.T) {
	b := New()
	for i := int32(0); i < 5; i++ {
		b.Enqueue(key(i), &cache.Tile{Key: key(i)}, Full)
	}

	before := b.PendingCount()
	out := b.Drain(3)

	if len(out) != 3 {
		t.Fatalf("len(Drain(3)) = %d, want 3", len(out))
	}
	seen := make(map[world.Key]bool)
	for _, u := range out {
		if seen[u.Key] {
			t.Fatalf("Drain returned duplicate key %v", u.Key)
		}
		seen[u.Key] = true
	}
	if got := b.PendingCount(); got != before-len(out) {
		t.Errorf("PendingCount() = %d, want %d", got, before-len(out))
	}
}

// Testable property 6: enqueue(k,t1); enqueue(k,t2) with no drain between ⇒
// drain(inf) yields exactly one record for k with tile=t2.
func TestEnqueueDedupesToLatestTile(t *testing.T) {
	b := New()
	t1 := &cache.Tile{Key: key(0)}
	t2 := &cache.Tile{Key: key(0)}

	b.Enqueue(key(0), t1, Full)
	b.Enqueue(key(0), t2, Full)

	out := b.Drain(1000)
	if len(out) != 1 {
		t.Fatalf("len(Drain) = %d, want 1", len(out))
	}
	if out[0].Tile != t2 {
		t.Errorf("dedup kept stale tile, want t2")
	}
	if b.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0 after full drain", b.PendingCount())
	}
}

func TestEnqueueMovesKeyToTail(t *testing.T) {
	b := New()
	b.Enqueue(key(0), &cache.Tile{Key: key(0)}, Full)
	b.Enqueue(key(1), &cache.Tile{Key: key(1)}, Full)
	b.Enqueue(key(0), &cache.Tile{Key: key(0)}, Full) // re-enqueue 0, should move to tail

	out := b.PeekAll()
	if len(out) != 2 {
		t.Fatalf("len(PeekAll) = %d, want 2", len(out))
	}
	if out[0].Key != key(1) || out[1].Key != key(0) {
		t.Errorf("order = %v, %v; want key(1) then key(0)", out[0].Key, out[1].Key)
	}
}

func TestHasAndRemove(t *testing.T) {
	b := New()
	b.Enqueue(key(0), &cache.Tile{Key: key(0)}, Full)

	if !b.Has(key(0)) {
		t.Error("expected Has(key(0)) true")
	}
	b.Remove(key(0))
	if b.Has(key(0)) {
		t.Error("expected Has(key(0)) false after Remove")
	}
}

func TestClearEmptiesBatcher(t *testing.T) {
	b := New()
	b.Enqueue(key(0), &cache.Tile{Key: key(0)}, Full)
	b.Clear()

	if b.PendingCount() != 0 {
		t.Errorf("PendingCount() after Clear = %d, want 0", b.PendingCount())
	}
}
