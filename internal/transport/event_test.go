package transport

import (
	"encoding/json"
	"testing"

	"github.com/voxelmap/pipeline/internal/ingest/world"
)

func TestEncodeRoundTrip(t *testing.T) {
	payload := ConnectionStatusPayload{Connected: true, PlayerID: "p1"}

	env, err := Encode(EventConnectionStatus, payload)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if env.Type != EventConnectionStatus {
		t.Errorf("Type = %v, want %v", env.Type, EventConnectionStatus)
	}

	var got ConnectionStatusPayload
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if got != payload {
		t.Errorf("payload round trip = %+v, want %+v", got, payload)
	}
}

func TestEncodeChunkDataPayload(t *testing.T) {
	resp := world.ChunkResponse{Key: world.Key{CX: 1, CZ: 2, Dim: world.Overworld}, Success: true}

	env, err := Encode(EventChunkData, ChunkDataPayload{Responses: []world.ChunkResponse{resp}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got ChunkDataPayload
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(got.Responses) != 1 || got.Responses[0].Key != resp.Key {
		t.Errorf("Responses = %+v, want one response with key %v", got.Responses, resp.Key)
	}
}

func TestEnvelopeMarshalOmitsEmptyPayload(t *testing.T) {
	env := Envelope{Type: EventWorldReset}

	raw, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := m["payload"]; ok {
		t.Errorf("expected no payload field for empty payload, got %s", raw)
	}
}
