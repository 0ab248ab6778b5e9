// Package world maintains the in-memory view of recently seen chunk columns
// for the active game session (spec §4.1, §3 "World").
package world

import (
	"fmt"
	"sync"
)

// SubchunkResult is the per-entry outcome of a subchunk delivery (spec §4.1
// on_subchunk). Only Success and SuccessAllAir materialize a section; the
// rest are logged upstream and otherwise ignored.
type SubchunkResult uint8

const (
	Success SubchunkResult = iota
	SuccessAllAir
	ChunkNotFound
	InvalidDimension
	PlayerNotFound
	YOutOfBounds
)

func (r SubchunkResult) String() string {
	switch r {
	case Success:
		return "success"
	case SuccessAllAir:
		return "success_all_air"
	case ChunkNotFound:
		return "chunk_not_found"
	case InvalidDimension:
		return "invalid_dimension"
	case PlayerNotFound:
		return "player_not_found"
	case YOutOfBounds:
		return "y_out_of_bounds"
	default:
		return fmt.Sprintf("result(%d)", uint8(r))
	}
}

// Origin is the 3D point a batch of subchunk entries is relative to: the
// requesting column plus the absolute section-Y the request was centered on.
type Origin struct {
	Key Key
	Y   int32
}

// SubchunkEntry is one delivery within an on_subchunk call, expressed as an
// offset from Origin (spec §4.1: "materialize/overwrite the section at
// (origin.cx+dx, origin.cz+dz, origin.y+dy)").
type SubchunkEntry struct {
	DX, DY, DZ int32
	Result     SubchunkResult
	Payload    []byte
}

// DecodeIssue reports a single non-fatal problem encountered while applying
// a batch of subchunk entries — either a non-success result code or a
// decode failure for a Success/SuccessAllAir entry. The owning section is
// always left as absent (all-air) rather than poisoning the column (spec
// §4.1 "Failure semantics").
type DecodeIssue struct {
	Key    Key
	Y      int32
	Result SubchunkResult
	Err    error
}

func (i DecodeIssue) String() string {
	if i.Err != nil {
		return fmt.Sprintf("%s y=%d: %s: %v", i.Key, i.Y, i.Result, i.Err)
	}
	return fmt.Sprintf("%s y=%d: %s", i.Key, i.Y, i.Result)
}

// World is the single-writer, many-reader map of ChunkKey to ChunkColumn
// (spec §3 "World", §5 "single-writer (ingest packet handler)"). All
// mutation happens through the on_* operations below; reads go through
// GetColumn and are safe to call from any goroutine.
type World struct {
	mu      sync.RWMutex
	columns map[Key]*ChunkColumn
}

// New returns an empty World.
func New() *World {
	return &World{columns: make(map[Key]*ChunkColumn)}
}

// OnLevelChunk creates or replaces the ChunkColumn for key (spec §4.1
// on_level_chunk). A negative subChunkCount means the column arrives
// skeleton-only and will be completed by later OnSubchunk calls; otherwise
// payloads holds exactly subChunkCount contiguous sections starting at
// Y = MinSectionY.
func (w *World) OnLevelChunk(key Key, subChunkCount int32, payloads [][]byte) (*DecodeIssue, error) {
	col := NewColumn(key)
	var firstIssue *DecodeIssue

	if subChunkCount >= 0 {
		for i, payload := range payloads {
			if int32(i) >= subChunkCount {
				break
			}
			sectionY := MinSectionY + int32(i)
			sc, err := DecodeSubChunk(sectionY, payload)
			if err != nil {
				col.SetSection(sectionY, NewEmptySection(sectionY))
				if firstIssue == nil {
					firstIssue = &DecodeIssue{Key: key, Y: sectionY, Result: Success, Err: err}
				}
				continue
			}
			col.SetSection(sectionY, sc)
		}
	}

	w.mu.Lock()
	w.columns[key] = col
	w.mu.Unlock()
	return firstIssue, nil
}

// OnSubchunk applies a batch of subchunk deliveries relative to origin (spec
// §4.1 on_subchunk). Success/SuccessAllAir entries materialize a section;
// every other result code is isolated into the returned issue list and
// otherwise skipped — it never poisons the rest of the column.
func (w *World) OnSubchunk(origin Origin, entries []SubchunkEntry) []DecodeIssue {
	var issues []DecodeIssue

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, e := range entries {
		key := Key{CX: origin.Key.CX + e.DX, CZ: origin.Key.CZ + e.DZ, Dim: origin.Key.Dim}
		sectionY := origin.Y + e.DY

		col, ok := w.columns[key]
		if !ok {
			col = NewColumn(key)
			w.columns[key] = col
		}

		switch e.Result {
		case Success:
			sc, err := DecodeSubChunk(sectionY, e.Payload)
			if err != nil {
				col.SetSection(sectionY, NewEmptySection(sectionY))
				issues = append(issues, DecodeIssue{Key: key, Y: sectionY, Result: e.Result, Err: err})
				continue
			}
			col.SetSection(sectionY, sc)
		case SuccessAllAir:
			col.SetSection(sectionY, NewEmptySection(sectionY))
		default:
			issues = append(issues, DecodeIssue{Key: key, Y: sectionY, Result: e.Result})
		}
	}

	return issues
}

// OnUpdateBlock replaces a single block in its owning column (spec §4.1
// on_update_block). The boolean return reports whether the write landed on
// a loaded column at all — callers use it to decide whether the tile at key
// needs invalidating.
func (w *World) OnUpdateBlock(key Key, localX int, absY int32, localZ int, state BlockStateID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	col, ok := w.columns[key]
	if !ok {
		return false
	}
	col.SetBlockAt(localX, absY, localZ, state)
	return true
}

// OnWorldReset atomically drops every tracked column (spec §4.1
// on_world_reset).
func (w *World) OnWorldReset() {
	w.mu.Lock()
	w.columns = make(map[Key]*ChunkColumn)
	w.mu.Unlock()
}

// GetColumn returns the column for key, if loaded.
func (w *World) GetColumn(key Key) (*ChunkColumn, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	col, ok := w.columns[key]
	return col, ok
}

// Len reports how many columns are currently tracked, for observability.
func (w *World) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.columns)
}
