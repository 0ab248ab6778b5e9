package world

import "testing"

func TestChunkResponseRoundTrip(t *testing.T) {
	key := Key{CX: 3, CZ: -2, Dim: Nether}
	col := NewColumn(key)
	col.SetBlockAt(1, 64, 2, 7)
	col.SetBlockAt(0, -10, 0, 3)

	resp := NewChunkResponse(col)
	if !resp.Success {
		t.Fatal("expected Success=true")
	}
	if resp.Key != key {
		t.Fatalf("Key = %v, want %v", resp.Key, key)
	}

	decoded, issues, err := DecodeColumn(resp)
	if err != nil {
		t.Fatalf("DecodeColumn: %v", err)
	}
	if len(issues) != 0 {
		t.Fatalf("unexpected issues: %v", issues)
	}

	if got := decoded.BlockAt(1, 64, 2); got != 7 {
		t.Errorf("BlockAt(1,64,2) = %d, want 7", got)
	}
	if got := decoded.BlockAt(0, -10, 0); got != 3 {
		t.Errorf("BlockAt(0,-10,0) = %d, want 3", got)
	}
}

func TestDecodeColumnRejectsFailureResponse(t *testing.T) {
	resp := ChunkResponse{Key: Key{}, Success: false}
	if _, _, err := DecodeColumn(resp); err == nil {
		t.Fatal("expected error decoding a Success=false response")
	}
}
