package batcher

import (
	"time"

	"github.com/voxelmap/pipeline/internal/ingest/world"
)

// Batch is a unit emitted to one viewer (spec §3 "Batch"). At least one of
// "len(Updates) > 0" or "PlayerPosition != nil" must hold, matching the
// invariant "1 <= |updates| <= max_batch_size OR player_position set".
type Batch struct {
	BatchID        string
	Updates        []PendingUpdate
	PlayerPosition *world.Pose
	Timestamp      time.Time
}

// EstimatedBytes gives a rough wire-size estimate for observability (spec
// §4.6 point 3: "estimated bytes"). Each update is costed as its tile's
// fixed grid plus a small per-ore and per-record overhead; this is an
// estimate, not an exact serialized size.
func (b Batch) EstimatedBytes() int {
	const perUpdateOverhead = 64
	const perOreBytes = 12
	const tileGridBytes = 16 * 16 * (3 + 2) // RGB24 + int16 height per cell

	total := perUpdateOverhead
	for _, u := range b.Updates {
		total += perUpdateOverhead
		if u.Kind == Empty || u.Tile == nil {
			continue
		}
		total += tileGridBytes + len(u.Tile.Ores)*perOreBytes
	}
	return total
}
