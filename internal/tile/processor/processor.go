// Package processor projects a ChunkColumn into a 2D Tile (spec §4.2
// "ChunkProcessor").
package processor

import (
	"sort"
	"time"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/blocks"
	"github.com/voxelmap/pipeline/internal/tile/cache"
)

// Processor decodes ChunkColumns into Tiles using a block-id→name registry
// plus the static color/ore tables (spec §4.2).
type Processor struct {
	registry *blocks.Registry
}

// New returns a Processor backed by registry.
func New(registry *blocks.Registry) *Processor {
	return &Processor{registry: registry}
}

// Process projects column into a Tile, returning nil iff every (x,z) column
// is entirely air across all sections (spec §4.2 "Contract").
//
// Sections are sorted high-to-low once per call; the outer loops walk the
// (x,z) cells and, for each cell, the sections top-down. The per-cell
// early-exit only stops recording a *new* surface, never the ore scan, so
// every block below the surface is still inspected in the same pass.
func (p *Processor) Process(column *world.ChunkColumn) *cache.Tile {
	sections := column.Sections()
	sort.Slice(sections, func(i, j int) bool { return sections[i].SectionY > sections[j].SectionY })

	tile := &cache.Tile{Key: column.Key, Timestamp: time.Now()}
	for x := 0; x < cache.TileSize; x++ {
		for z := 0; z < cache.TileSize; z++ {
			tile.Heights[x][z] = cache.MinY
		}
	}

	for x := 0; x < cache.TileSize; x++ {
		for z := 0; z < cache.TileSize; z++ {
			foundSurface := false

			for _, sc := range sections {
				for localY := 15; localY >= 0; localY-- {
					state := sc.BlockAt(x, localY, z)
					name := p.registry.Name(state)

					if !foundSurface {
						if blocks.IsAirLike(name) {
							continue
						}
						foundSurface = true
						absY := sc.SectionY*16 + int32(localY)
						tile.Heights[x][z] = int16(absY)
						tile.Colors[x][z] = shade(blocks.BaseColor(name), absY)
					}

					if oreType, ok := blocks.OreFor(name); ok {
						absY := sc.SectionY*16 + int32(localY)
						tile.Ores = append(tile.Ores, cache.OreHit{
							LocalX:  x,
							LocalZ:  z,
							WorldY:  int16(absY),
							OreType: oreType,
						})
					}
				}
			}
		}
	}

	if tile.IsEmpty() {
		return nil
	}
	return tile
}

// shade applies the height brightness factor from spec §4.2: "f = 0.7 +
// ((abs_y + 64) / 384) x 0.6", identical across channels, clamped to 0..255.
func shade(base blocks.RGB24, absY int32) blocks.RGB24 {
	f := 0.7 + (float64(absY+64)/384.0)*0.6
	return blocks.RGB24{
		R: clampChannel(float64(base.R) * f),
		G: clampChannel(float64(base.G) * f),
		B: clampChannel(float64(base.B) * f),
	}
}

func clampChannel(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
