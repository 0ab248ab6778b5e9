// Package blocks holds the static block-name lookup tables ChunkProcessor
// needs: a base RGB24 color per block name and a closed ore taxonomy (spec
// §9 "Polymorphism over block names"). Both tables are loaded once and never
// mutated.
package blocks

// OreType is a closed tagged variant over the resources a viewer can care
// about on the minimap (spec §9).
type OreType uint8

const (
	Coal OreType = iota
	Iron
	Copper
	Gold
	Redstone
	Lapis
	Diamond
	Emerald
	Quartz
	NetherGold
	AncientDebris
)

func (o OreType) String() string {
	switch o {
	case Coal:
		return "coal"
	case Iron:
		return "iron"
	case Copper:
		return "copper"
	case Gold:
		return "gold"
	case Redstone:
		return "redstone"
	case Lapis:
		return "lapis"
	case Diamond:
		return "diamond"
	case Emerald:
		return "emerald"
	case Quartz:
		return "quartz"
	case NetherGold:
		return "nether_gold"
	case AncientDebris:
		return "ancient_debris"
	default:
		return "unknown_ore"
	}
}

// RGB24 is a 24-bit color, one byte per channel.
type RGB24 struct {
	R, G, B uint8
}

// defaultColor is used for any block name absent from the color table
// (spec §4.2 "a default fallback color for unknown names").
var defaultColor = RGB24{R: 160, G: 32, B: 240} // loud magenta so gaps are visible, not hidden

// AirName is the exact surface-scan skip name (spec §4.2 step 2: "not \"air\"
// and does not contain \"void_air\""). IsAirLike also skips any name
// containing "void_air"; "cave_air" is not skipped and counts as a surface
// block.
const AirName = "air"

// IsAirLike reports whether name should be skipped during the surface scan.
func IsAirLike(name string) bool {
	if name == AirName {
		return true
	}
	for i := 0; i+8 <= len(name); i++ {
		if name[i:i+8] == "void_air" {
			return true
		}
	}
	return false
}

var colorTable = map[string]RGB24{
	"air":               {R: 0, G: 0, B: 0},
	"stone":             {R: 125, G: 125, B: 125},
	"granite":           {R: 149, G: 108, B: 76},
	"diorite":           {R: 188, G: 188, B: 188},
	"andesite":          {R: 132, G: 132, B: 132},
	"deepslate":         {R: 79, G: 79, B: 83},
	"grass_block":       {R: 95, G: 159, B: 53},
	"dirt":              {R: 134, G: 96, B: 67},
	"coarse_dirt":       {R: 121, G: 85, B: 58},
	"podzol":            {R: 94, G: 68, B: 40},
	"sand":              {R: 219, G: 211, B: 160},
	"red_sand":          {R: 190, G: 102, B: 37},
	"gravel":            {R: 132, G: 127, B: 122},
	"sandstone":         {R: 216, G: 203, B: 155},
	"clay":              {R: 159, G: 164, B: 177},
	"water":             {R: 63, G: 118, B: 228},
	"lava":              {R: 216, G: 94, B: 19},
	"snow":              {R: 248, G: 248, B: 248},
	"snow_block":        {R: 248, G: 248, B: 248},
	"ice":               {R: 160, G: 188, B: 255},
	"packed_ice":        {R: 144, G: 172, B: 246},
	"obsidian":          {R: 20, G: 18, B: 29},
	"bedrock":           {R: 60, G: 60, B: 60},
	"netherrack":        {R: 113, G: 53, B: 53},
	"nether_bricks":     {R: 44, G: 22, B: 26},
	"soul_sand":         {R: 84, G: 64, B: 51},
	"soul_soil":         {R: 77, G: 59, B: 46},
	"basalt":            {R: 80, G: 79, B: 85},
	"end_stone":         {R: 219, G: 222, B: 158},
	"oak_log":           {R: 109, G: 85, B: 51},
	"oak_leaves":        {R: 72, G: 115, B: 49},
	"coal_ore":          {R: 60, G: 60, B: 60},
	"deepslate_coal_ore": {R: 56, G: 56, B: 58},
	"iron_ore":          {R: 216, G: 175, B: 147},
	"deepslate_iron_ore": {R: 150, G: 138, B: 131},
	"copper_ore":        {R: 183, G: 117, B: 82},
	"gold_ore":          {R: 249, G: 236, B: 79},
	"deepslate_gold_ore": {R: 178, G: 165, B: 98},
	"redstone_ore":      {R: 173, G: 33, B: 27},
	"deepslate_redstone_ore": {R: 134, G: 48, B: 44},
	"lapis_ore":         {R: 55, G: 104, B: 176},
	"deepslate_lapis_ore": {R: 77, G: 98, B: 130},
	"diamond_ore":       {R: 94, G: 228, B: 216},
	"deepslate_diamond_ore": {R: 101, G: 171, B: 165},
	"emerald_ore":       {R: 57, G: 201, B: 105},
	"deepslate_emerald_ore": {R: 87, G: 144, B: 105},
	"nether_quartz_ore": {R: 211, G: 200, B: 188},
	"nether_gold_ore":   {R: 173, G: 96, B: 44},
	"ancient_debris":    {R: 99, G: 79, B: 68},
}

// BaseColor resolves a block name to its base RGB24, falling back to
// defaultColor for anything not in the table.
func BaseColor(name string) RGB24 {
	if c, ok := colorTable[name]; ok {
		return c
	}
	return defaultColor
}

var oreTable = map[string]OreType{
	"coal_ore":               Coal,
	"deepslate_coal_ore":     Coal,
	"iron_ore":               Iron,
	"deepslate_iron_ore":     Iron,
	"copper_ore":             Copper,
	"deepslate_copper_ore":   Copper,
	"gold_ore":               Gold,
	"deepslate_gold_ore":     Gold,
	"nether_gold_ore":        NetherGold,
	"redstone_ore":           Redstone,
	"deepslate_redstone_ore": Redstone,
	"lapis_ore":              Lapis,
	"deepslate_lapis_ore":    Lapis,
	"diamond_ore":            Diamond,
	"deepslate_diamond_ore":  Diamond,
	"emerald_ore":            Emerald,
	"deepslate_emerald_ore":  Emerald,
	"nether_quartz_ore":      Quartz,
	"ancient_debris":         AncientDebris,
}

// OreFor reports whether name is an ore block and, if so, its OreType.
func OreFor(name string) (OreType, bool) {
	t, ok := oreTable[name]
	return t, ok
}
