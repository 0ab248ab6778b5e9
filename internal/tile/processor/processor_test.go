package processor

import (
	"testing"

	"github.com/voxelmap/pipeline/internal/ingest/world"
	"github.com/voxelmap/pipeline/internal/tile/blocks"
	"github.com/voxelmap/pipeline/internal/tile/cache"
)

const (
	idStone world.BlockStateID = 1
	idGrass world.BlockStateID = 2
	idDiamondOre world.BlockStateID = 3
	idCoalOre world.BlockStateID = 4
)

func testRegistry() *blocks.Registry {
	return blocks.NewRegistry(map[world.BlockStateID]string{
		idStone:      "stone",
		idGrass:      "grass_block",
		idDiamondOre: "diamond_ore",
		idCoalOre:    "coal_ore",
	})
}

func TestProcessAllAirReturnsNil(t *testing.T) {
	p := New(testRegistry())
	col := world.NewColumn(world.Key{})
	col.SetSection(0, world.NewEmptySection(0))

	if got := p.Process(col); got != nil {
		t.Fatalf("Process(all-air) = %+v, want nil", got)
	}
}

func TestProcessScenarioASurfaceWithShading(t *testing.T) {
	p := New(testRegistry())
	col := world.NewColumn(world.Key{})
	col.SetBlockAt(0, 64, 0, idStone)
	col.SetBlockAt(0, 63, 0, idStone)

	tile := p.Process(col)
	if tile == nil {
		t.Fatal("expected non-empty tile")
	}

	if tile.Heights[0][0] != 64 {
		t.Errorf("Heights[0][0] = %d, want 64", tile.Heights[0][0])
	}
	want := shade(blocks.BaseColor("stone"), 64)
	if tile.Colors[0][0] != want {
		t.Errorf("Colors[0][0] = %v, want %v", tile.Colors[0][0], want)
	}
	if len(tile.Ores) != 0 {
		t.Errorf("expected no ores, got %v", tile.Ores)
	}
	for x := 0; x < cache.TileSize; x++ {
		for z := 0; z < cache.TileSize; z++ {
			if x == 0 && z == 0 {
				continue
			}
			if tile.Heights[x][z] != cache.MinY {
				t.Fatalf("Heights[%d][%d] = %d, want MinY", x, z, tile.Heights[x][z])
			}
		}
	}
}

func TestProcessScenarioBOreUnderSurface(t *testing.T) {
	p := New(testRegistry())
	col := world.NewColumn(world.Key{})
	col.SetBlockAt(5, 70, 5, idGrass)
	col.SetBlockAt(5, 10, 5, idDiamondOre)
	col.SetBlockAt(3, 40, 3, idCoalOre)

	tile := p.Process(col)
	if tile == nil {
		t.Fatal("expected non-empty tile")
	}

	if tile.Heights[5][5] != 70 {
		t.Errorf("Heights[5][5] = %d, want 70", tile.Heights[5][5])
	}
	if tile.Heights[3][3] != 40 {
		t.Errorf("Heights[3][3] = %d, want 40 (coal_ore is its own surface)", tile.Heights[3][3])
	}

	foundDiamond, foundCoal := false, false
	for _, o := range tile.Ores {
		if o.LocalX == 5 && o.LocalZ == 5 && o.WorldY == 10 && o.OreType == blocks.Diamond {
			foundDiamond = true
		}
		if o.LocalX == 3 && o.LocalZ == 3 && o.WorldY == 40 && o.OreType == blocks.Coal {
			foundCoal = true
		}
	}
	if !foundDiamond {
		t.Error("expected a Diamond OreHit at (5,5,10)")
	}
	if !foundCoal {
		t.Error("expected a Coal OreHit at (3,3,40)")
	}
	if len(tile.Ores) != 2 {
		t.Errorf("len(Ores) = %d, want 2", len(tile.Ores))
	}
}

func TestProcessOreIsItsOwnSurfaceWhenExposed(t *testing.T) {
	p := New(testRegistry())
	col := world.NewColumn(world.Key{})
	col.SetBlockAt(7, 12, 9, idDiamondOre)

	tile := p.Process(col)
	if tile == nil {
		t.Fatal("expected non-empty tile (the exposed ore is a surface block)")
	}
	if tile.Heights[7][9] != 12 {
		t.Errorf("Heights[7][9] = %d, want 12", tile.Heights[7][9])
	}
	want := shade(blocks.BaseColor("diamond_ore"), 12)
	if tile.Colors[7][9] != want {
		t.Errorf("Colors[7][9] = %v, want %v", tile.Colors[7][9], want)
	}
	if len(tile.Ores) != 1 || tile.Ores[0].LocalX != 7 || tile.Ores[0].LocalZ != 9 {
		t.Fatalf("Ores = %v, want single hit at (7,9)", tile.Ores)
	}
}

func TestProcessUpdateBlockExposesNewSurface(t *testing.T) {
	p := New(testRegistry())
	col := world.NewColumn(world.Key{})
	col.SetBlockAt(0, 64, 0, idStone)
	col.SetBlockAt(0, 63, 0, idStone)

	tile := p.Process(col)
	if tile.Heights[0][0] != 64 {
		t.Fatalf("precondition failed: Heights[0][0] = %d", tile.Heights[0][0])
	}

	col.SetBlockAt(0, 64, 0, 0) // replace the topmost block with air

	tile = p.Process(col)
	if tile.Heights[0][0] != 63 {
		t.Errorf("after clearing the top block, Heights[0][0] = %d, want 63", tile.Heights[0][0])
	}
}

func TestShadeClampsToByteRange(t *testing.T) {
	c := shade(blocks.RGB24{R: 255, G: 255, B: 255}, 319)
	if c.R > 255 || c.G > 255 || c.B > 255 {
		t.Fatalf("shade overflowed a byte: %v", c)
	}
}
