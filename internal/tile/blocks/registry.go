package blocks

import (
	"sort"

	"github.com/voxelmap/pipeline/internal/ingest/world"
)

// Registry resolves a version-specific BlockStateID to its symbolic block
// name (spec §4.1: "Version-specific block registries determine which ids
// exist"). Which ids map to which names depends on the Minecraft version
// the Ingest Service is configured against, so the registry is built once
// at startup from a version-specific table rather than hardcoded here.
type Registry struct {
	names map[world.BlockStateID]string
}

// NewRegistry builds a Registry from an id→name table, typically loaded
// from a version-specific manifest at startup.
func NewRegistry(names map[world.BlockStateID]string) *Registry {
	if names == nil {
		names = make(map[world.BlockStateID]string)
	}
	return &Registry{names: names}
}

// Name resolves id to its block name. An unknown id resolves to "air" —
// an unrecognized state is treated as if it weren't there rather than as a
// fatal condition (spec §7 "Decode": "unknown block state id" recovers
// locally).
func (r *Registry) Name(id world.BlockStateID) string {
	if id == 0 {
		return "air"
	}
	if name, ok := r.names[id]; ok {
		return name
	}
	return "air"
}

// DefaultRegistry builds a Registry covering every block name this package
// already knows a color or ore classification for (colorTable/oreTable),
// assigning each a stable sequential BlockStateID in sorted name order.
// Real deployments replace this with a registry decoded from the relay's
// version-specific block palette (spec §4.1); cmd/tiled always wires this
// registry and has no option to supply another table.
func DefaultRegistry() *Registry {
	names := make(map[string]struct{}, len(colorTable))
	for name := range colorTable {
		names[name] = struct{}{}
	}
	for name := range oreTable {
		names[name] = struct{}{}
	}
	delete(names, AirName)

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	table := make(map[world.BlockStateID]string, len(sorted))
	for i, name := range sorted {
		table[world.BlockStateID(i+1)] = name
	}
	return NewRegistry(table)
}
