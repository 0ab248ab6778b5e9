package world

import "sort"

// ChunkColumn is the vertical stack of subchunks for one Key (spec §3
// "ChunkColumn"). A column with no section loaded for a given Y is treated
// as all-air at that Y, never as an error.
type ChunkColumn struct {
	Key Key

	// sections is keyed by the absolute section-Y index. Missing entries
	// are all-air (spec §4.1 on_subchunk / §3 invariant "missing sections
	// = all-air").
	sections map[int32]*SubChunk
}

// NewColumn returns an empty column for key, with no sections loaded.
func NewColumn(key Key) *ChunkColumn {
	return &ChunkColumn{Key: key, sections: make(map[int32]*SubChunk)}
}

// SetSection installs or overwrites the section at sectionY, replacing
// whatever was there. Used by on_level_chunk and on_subchunk (spec §4.1).
func (c *ChunkColumn) SetSection(sectionY int32, sc *SubChunk) {
	c.sections[sectionY] = sc
}

// Section returns the section at sectionY and whether one is loaded there.
// A missing section is not an error — callers should treat it as all-air.
func (c *ChunkColumn) Section(sectionY int32) (*SubChunk, bool) {
	sc, ok := c.sections[sectionY]
	return sc, ok
}

// Sections returns the loaded sections ordered by ascending Y, matching the
// "Section Y values unique" invariant from spec §3 — the map already
// enforces uniqueness, this just gives processors a stable iteration order.
func (c *ChunkColumn) Sections() []*SubChunk {
	out := make([]*SubChunk, 0, len(c.sections))
	for _, sc := range c.sections {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SectionY < out[j].SectionY })
	return out
}

// sectionYFor returns the absolute section index containing absY.
func sectionYFor(absY int32) int32 {
	if absY >= 0 {
		return absY / 16
	}
	// floor division for negatives: -64..-49 must map to section -4.
	return (absY+1)/16 - 1
}

// localYFor returns the local (0..15) Y within its section for absY.
func localYFor(absY int32) int {
	return int(absY - sectionYFor(absY)*16)
}

// BlockAt resolves the block state at (localX, absY, localZ) within the
// column, returning air (BlockStateID 0) for any section not loaded.
func (c *ChunkColumn) BlockAt(localX int, absY int32, localZ int) BlockStateID {
	sc, ok := c.sections[sectionYFor(absY)]
	if !ok {
		return 0
	}
	return sc.BlockAt(localX, localYFor(absY), localZ)
}

// SetBlockAt applies a single block update (spec §4.1 on_update_block),
// creating the owning section on demand if it didn't exist yet.
func (c *ChunkColumn) SetBlockAt(localX int, absY int32, localZ int, state BlockStateID) {
	sy := sectionYFor(absY)
	sc, ok := c.sections[sy]
	if !ok {
		sc = NewEmptySection(sy)
		c.sections[sy] = sc
	}
	sc.SetBlockAt(localX, localYFor(absY), localZ, state)
}
