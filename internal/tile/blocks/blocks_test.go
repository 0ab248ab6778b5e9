package blocks

import "testing"

func TestIsAirLike(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"air", true},
		{"cave_air", false},
		{"void_air", true},
		{"stone", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsAirLike(tt.name); got != tt.want {
			t.Errorf("IsAirLike(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestBaseColorFallsBackForUnknownNames(t *testing.T) {
	if got := BaseColor("stone"); got != (RGB24{R: 125, G: 125, B: 125}) {
		t.Errorf("BaseColor(stone) = %v, want known color", got)
	}
	if got := BaseColor("totally_unknown_block"); got != defaultColor {
		t.Errorf("BaseColor(unknown) = %v, want defaultColor %v", got, defaultColor)
	}
}

func TestOreForClosedSet(t *testing.T) {
	ty, ok := OreFor("diamond_ore")
	if !ok || ty != Diamond {
		t.Errorf("OreFor(diamond_ore) = (%v, %v), want (Diamond, true)", ty, ok)
	}

	if _, ok := OreFor("stone"); ok {
		t.Error("OreFor(stone) should not be an ore")
	}
}
