// Package cache owns the processed 2D tile representation and the bounded
// LRU store that fronts it (spec §4.3 "TileCache").
package cache

import (
	"time"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/blocks"
)

// TileSize is the fixed width/height of a Tile in blocks (spec §3 "Tile:
// 16x16 of RGB24").
const TileSize = 16

// MinY is the sentinel height for a void cell (spec §4.2 step 4).
const MinY = -64

// OreHit is a single detected ore block within a Tile (spec §3 "OreHit").
type OreHit struct {
	LocalX  int
	LocalZ  int
	WorldY  int16
	OreType blocks.OreType
}

// Tile is the 2D top-down projection of a chunk column (spec §3 "Tile").
type Tile struct {
	Key       world.Key
	Colors    [TileSize][TileSize]blocks.RGB24
	Heights   [TileSize][TileSize]int16
	Ores      []OreHit
	Timestamp time.Time
}

// IsEmpty reports whether every cell is void (spec §4.2 "Emptiness rule").
func (t *Tile) IsEmpty() bool {
	for x := 0; x < TileSize; x++ {
		for z := 0; z < TileSize; z++ {
			if t.Heights[x][z] != MinY {
				return false
			}
			if t.Colors[x][z] != (blocks.RGB24{}) {
				return false
			}
		}
	}
	return true
}
