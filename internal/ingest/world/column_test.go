package world

import "testing"

func TestSectionYFor(t *testing.T) {
	tests := []struct {
		absY int32
		want int32
	}{
		{0, 0},
		{15, 0},
		{16, 1},
		{-1, -1},
		{-16, -1},
		{-17, -2},
		{-64, -4},
		{319, 19},
		{304, 19},
	}
	for _, tt := range tests {
		if got := sectionYFor(tt.absY); got != tt.want {
			t.Errorf("sectionYFor(%d) = %d, want %d", tt.absY, got, tt.want)
		}
	}
}

func TestColumnMissingSectionIsAir(t *testing.T) {
	col := NewColumn(Key{})
	if got := col.BlockAt(0, 64, 0); got != 0 {
		t.Errorf("BlockAt on missing section = %d, want 0 (air)", got)
	}
}

func TestColumnSetSectionAndRead(t *testing.T) {
	col := NewColumn(Key{})
	sc := NewEmptySection(4)
	sc.SetBlockAt(0, 0, 0, 3)
	col.SetSection(4, sc)

	// section 4 covers abs Y 64..79.
	if got := col.BlockAt(0, 64, 0); got != 3 {
		t.Errorf("BlockAt(0,64,0) = %d, want 3", got)
	}
}

func TestColumnSetBlockAtCreatesSection(t *testing.T) {
	col := NewColumn(Key{})
	col.SetBlockAt(8, 100, 8, 42)

	if got := col.BlockAt(8, 100, 8); got != 42 {
		t.Errorf("BlockAt(8,100,8) = %d, want 42", got)
	}
	if _, ok := col.Section(6); !ok {
		t.Error("expected section 6 (abs Y 96..111) to have been created")
	}
}

func TestColumnSectionsOrdered(t *testing.T) {
	col := NewColumn(Key{})
	col.SetSection(3, NewEmptySection(3))
	col.SetSection(-2, NewEmptySection(-2))
	col.SetSection(10, NewEmptySection(10))

	secs := col.Sections()
	if len(secs) != 3 {
		t.Fatalf("len(Sections()) = %d, want 3", len(secs))
	}
	for i := 1; i < len(secs); i++ {
		if secs[i-1].SectionY >= secs[i].SectionY {
			t.Fatalf("Sections() not ascending: %d before %d", secs[i-1].SectionY, secs[i].SectionY)
		}
	}
}
