// Package world maintains the in-memory view of recently seen chunk columns
// for the active game session (spec §4.1, §3 "World").
package world

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Dimension identifies which of the three fixed dimensions a ChunkKey
// belongs to.
type Dimension uint8

const (
	Overworld Dimension = iota
	Nether
	End
)

func (d Dimension) String() string {
	switch d {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	default:
		return fmt.Sprintf("dimension(%d)", uint8(d))
	}
}

// Key identifies a 16x16 world column within a dimension (spec §3 "ChunkKey").
// The zero value is a valid key (Overworld, 0, 0).
type Key struct {
	CX  int32
	CZ  int32
	Dim Dimension
}

// Less gives the total order by (dim, cx, cz) required by spec §3.
func (k Key) Less(other Key) bool {
	if k.Dim != other.Dim {
		return k.Dim < other.Dim
	}
	if k.CX != other.CX {
		return k.CX < other.CX
	}
	return k.CZ < other.CZ
}

// Hash returns a stable 64-bit digest suitable for map sharding and
// cross-process correlation. Stability (spec §3) rules out fnv/maphash with
// per-process seeds; xxhash has none.
func (k Key) Hash() uint64 {
	var buf [9]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(k.CX))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(k.CZ))
	buf[8] = byte(k.Dim)
	return xxhash.Sum64(buf[:])
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%d,%d)", k.Dim, k.CX, k.CZ)
}
