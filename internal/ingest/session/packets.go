// Package session drives the Ingest Service's connection to the upstream
// game relay: it applies decoded packets to a World and republishes
// ChunkResponse/PlayerPose events downstream to the Tile Service (spec
// §4.7, §6.1).
package session

import "github.com/voxelmap/pipeline/internal/ingest/world"

// The structs below are the "structured records" spec §6.1 says the core
// treats upstream packets as — the exact byte layout is owned by the relay
// library, out of scope per spec §1.

// JoinPacket announces the local player has joined the session.
type JoinPacket struct {
	PlayerID string
}

// StartGamePacket carries the initial world parameters.
type StartGamePacket struct {
	Dimension world.Dimension
}

// ClientCacheMissResponsePacket answers a cache-miss query with a concrete
// payload to decode, re-using the same section wire shape as LevelChunk.
type ClientCacheMissResponsePacket struct {
	Key           world.Key
	SubChunkCount int32
	Payloads      [][]byte
}

// LevelChunkPacket is a full or skeleton column delivery (spec §4.1
// on_level_chunk).
type LevelChunkPacket struct {
	Key           world.Key
	SubChunkCount int32
	Payloads      [][]byte
}

// SubchunkPacket is a batch of section deliveries relative to an origin
// (spec §4.1 on_subchunk).
type SubchunkPacket struct {
	Origin  world.Origin
	Entries []world.SubchunkEntry
}

// UpdateBlockPacket is a single targeted block change (spec §4.1
// on_update_block).
type UpdateBlockPacket struct {
	Key    world.Key
	LocalX int
	AbsY   int32
	LocalZ int
	State  world.BlockStateID
}

// PlayerAuthInputPacket is the serverbound position/orientation update spec
// §6.1 lists as the one event flowing the other direction.
type PlayerAuthInputPacket struct {
	Pose world.Pose
}
