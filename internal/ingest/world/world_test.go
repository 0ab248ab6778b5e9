package world

import "testing"

func TestOnLevelChunkSkeletonThenSubchunk(t *testing.T) {
	w := New()
	key := Key{CX: 0, CZ: 0, Dim: Overworld}

	if issue, err := w.OnLevelChunk(key, -1, nil); issue != nil || err != nil {
		t.Fatalf("OnLevelChunk skeleton: issue=%v err=%v", issue, err)
	}

	col, ok := w.GetColumn(key)
	if !ok {
		t.Fatal("expected column to exist after skeleton OnLevelChunk")
	}
	if len(col.Sections()) != 0 {
		t.Fatalf("skeleton column should have no sections yet, got %d", len(col.Sections()))
	}

	var indices [sectionVolume]uint16
	indices[sectionIndex(0, 0, 0)] = 1
	payload := encodeSubChunk([]BlockStateID{0, 5}, indices)

	issues := w.OnSubchunk(Origin{Key: key, Y: 4}, []SubchunkEntry{
		{DX: 0, DY: 0, DZ: 0, Result: Success, Payload: payload},
	})
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	col, _ = w.GetColumn(key)
	if got := col.BlockAt(0, 64, 0); got != 5 {
		t.Errorf("BlockAt(0,64,0) = %d, want 5", got)
	}
}

func TestOnSubchunkNonSuccessIsIsolated(t *testing.T) {
	w := New()
	key := Key{CX: 0, CZ: 0, Dim: Overworld}

	issues := w.OnSubchunk(Origin{Key: key, Y: 0}, []SubchunkEntry{
		{DX: 0, DY: 0, DZ: 0, Result: ChunkNotFound},
		{DX: 0, DY: 1, DZ: 0, Result: SuccessAllAir},
	})

	if len(issues) != 1 || issues[0].Result != ChunkNotFound {
		t.Fatalf("expected exactly one ChunkNotFound issue, got %v", issues)
	}

	col, ok := w.GetColumn(key)
	if !ok {
		t.Fatal("expected column to exist")
	}
	if _, ok := col.Section(1); !ok {
		t.Error("expected SuccessAllAir entry to install an empty section")
	}
	if _, ok := col.Section(0); ok {
		t.Error("ChunkNotFound entry must not materialize a section")
	}
}

func TestOnSubchunkBadPayloadIsolatesSection(t *testing.T) {
	w := New()
	key := Key{CX: 0, CZ: 0, Dim: Overworld}

	issues := w.OnSubchunk(Origin{Key: key, Y: 0}, []SubchunkEntry{
		{DX: 0, DY: 0, DZ: 0, Result: Success, Payload: []byte{1}},
	})
	if len(issues) != 1 || issues[0].Err == nil {
		t.Fatalf("expected one decode issue with an error, got %v", issues)
	}

	col, _ := w.GetColumn(key)
	sc, ok := col.Section(0)
	if !ok {
		t.Fatal("expected section to exist as the all-air fallback")
	}
	if got := sc.BlockAt(0, 0, 0); got != 0 {
		t.Errorf("fallback section should be air, got %d", got)
	}
}

func TestOnUpdateBlockRequiresLoadedColumn(t *testing.T) {
	w := New()
	key := Key{CX: 1, CZ: 1, Dim: Overworld}

	if ok := w.OnUpdateBlock(key, 0, 64, 0, 9); ok {
		t.Error("OnUpdateBlock on an unloaded column should return false")
	}

	if _, err := w.OnLevelChunk(key, -1, nil); err != nil {
		t.Fatalf("OnLevelChunk: %v", err)
	}
	if ok := w.OnUpdateBlock(key, 0, 64, 0, 9); !ok {
		t.Error("OnUpdateBlock on a loaded column should return true")
	}

	col, _ := w.GetColumn(key)
	if got := col.BlockAt(0, 64, 0); got != 9 {
		t.Errorf("BlockAt(0,64,0) = %d, want 9", got)
	}
}

func TestOnWorldResetClearsEverything(t *testing.T) {
	w := New()
	for i := int32(0); i < 5; i++ {
		if _, err := w.OnLevelChunk(Key{CX: i, CZ: 0, Dim: Overworld}, -1, nil); err != nil {
			t.Fatalf("OnLevelChunk: %v", err)
		}
	}
	if w.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", w.Len())
	}

	w.OnWorldReset()

	if w.Len() != 0 {
		t.Errorf("Len() after OnWorldReset = %d, want 0", w.Len())
	}
	if _, ok := w.GetColumn(Key{CX: 0, CZ: 0, Dim: Overworld}); ok {
		t.Error("expected no columns to be retrievable after OnWorldReset")
	}
}
