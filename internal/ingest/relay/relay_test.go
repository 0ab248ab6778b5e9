package relay

import (
	"encoding/json"
	"testing"

	"github.com/voxelmap/pipeline/internal/ingest/session"
	"github.com/voxelmap/pipeline/internal/ingest/world"
)

func TestDecodePayloadLevelChunk(t *testing.T) {
	key := world.Key{CX: 3, CZ: 4, Dim: world.Overworld}
	payload, err := json.Marshal(session.LevelChunkPacket{Key: key, SubChunkCount: -1})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	pkt, err := decodePayload(frame{Type: TypeLevelChunk, Payload: payload})
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}

	lc, ok := pkt.(session.LevelChunkPacket)
	if !ok {
		t.Fatalf("decoded type = %T, want session.LevelChunkPacket", pkt)
	}
	if lc.Key != key {
		t.Errorf("Key = %v, want %v", lc.Key, key)
	}
}

func TestDecodePayloadPlayerAuthInput(t *testing.T) {
	pose := world.Pose{X: 1, Y: 64, Z: 2}
	payload, err := json.Marshal(session.PlayerAuthInputPacket{Pose: pose})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}

	pkt, err := decodePayload(frame{Type: TypePlayerAuthInput, Payload: payload})
	if err != nil {
		t.Fatalf("decodePayload: %v", err)
	}

	p, ok := pkt.(session.PlayerAuthInputPacket)
	if !ok {
		t.Fatalf("decoded type = %T, want session.PlayerAuthInputPacket", pkt)
	}
	if p.Pose != pose {
		t.Errorf("Pose = %v, want %v", p.Pose, pose)
	}
}

func TestDecodePayloadUnknownTypeErrors(t *testing.T) {
	if _, err := decodePayload(frame{Type: "bogus"}); err == nil {
		t.Fatal("expected an error for an unrecognized packet type")
	}
}

func TestCloseWithoutConnectIsNoop(t *testing.T) {
	c := New("ws://127.0.0.1:1/relay")
	if err := c.Close(); err != nil {
		t.Errorf("Close before Connect: %v, want nil", err)
	}
}
