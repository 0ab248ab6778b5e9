// Package transport frames the two event channels named in spec §4.7/§6.2
// (Ingest→Tile) and §6.3 (Tile→Viewer) as JSON values over a
// gorilla/websocket connection. One JSON value per websocket message is
// itself length-framed by the websocket layer, satisfying §6.2's framing
// requirement without an extra length prefix.
package transport

import (
	"encoding/json"
	"fmt"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/batcher"
)

// EventType names one of the fixed event kinds carried by either channel.
type EventType string

const (
	// Ingest -> Tile (spec §4.7).
	EventPlayerPosition   EventType = "player-position"
	EventChunkData        EventType = "chunk-data"
	EventConnectionStatus EventType = "connection-status"
	EventWorldReset       EventType = "world-reset"

	// Tile -> Viewer (spec §6.3, server-to-client).
	EventBatchUpdate EventType = "batch-update"
	EventPlayerMove  EventType = "player-move"

	// Viewer -> Tile (spec §6.3, client-to-server).
	EventRequestInitialChunks EventType = "request-initial-chunks"
	EventMinimapClick         EventType = "minimap-click"
	EventUpdateSettings       EventType = "update-settings"
)

// Envelope is the single wire shape every event is wrapped in, so a reader
// can dispatch on Type before unmarshaling Payload into the concrete struct
// (spec §9 "Dynamic typing of chunk response": "implementations are free to
// choose any codec as long as the event semantics ... are preserved").
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode wraps a typed payload into an Envelope ready to write.
func Encode(t EventType, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// ChunkDataPayload carries one or more ChunkResponse records in a single
// event (spec §4.7: "chunk-data(list of ChunkResponse) — may batch many").
type ChunkDataPayload struct {
	Responses []world.ChunkResponse `json:"responses"`
}

// ConnectionStatusPayload mirrors spec §4.7/§6.3's connection-status event.
type ConnectionStatusPayload struct {
	Connected bool   `json:"connected"`
	PlayerID  string `json:"playerId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// BatchUpdatePayload carries one Batch to a single viewer (spec §6.3
// "batch-update(Batch) — primary payload").
type BatchUpdatePayload struct {
	Batch batcher.Batch `json:"batch"`
}

// PlayerMovePayload is the simplified position used purely for UI (spec
// §6.3: "player-move(x: f64, z: f64, dim)").
type PlayerMovePayload struct {
	X   float64      `json:"x"`
	Z   float64      `json:"z"`
	Dim world.Dimension `json:"dim"`
}

// RequestInitialChunksPayload is an optional viewport hint the server may
// ignore entirely (spec §6.3).
type RequestInitialChunksPayload struct {
	Viewport  *Viewport       `json:"viewport,omitempty"`
	Dimension *world.Dimension `json:"dimension,omitempty"`
}

// Viewport is a simple axis-aligned chunk-coordinate rectangle.
type Viewport struct {
	MinCX, MinCZ, MaxCX, MaxCZ int32
}

// MinimapClickPayload is passed through with no required server effect
// (spec §6.3).
type MinimapClickPayload struct {
	X, Z      float64
	Dim       world.Dimension
	Modifiers []string
}

// UpdateSettingsPayload carries per-client processing knobs, e.g. ore scan
// Y offsets (spec §6.3, §9 open question 4: "viewers filter").
type UpdateSettingsPayload struct {
	OreMinY *int16 `json:"oreMinY,omitempty"`
	OreMaxY *int16 `json:"oreMaxY,omitempty"`
}
