package tile

import (
	"testing"
)

func TestCoordsString(t *testing.T) {
	tests := []struct {
		coords   Coords
		expected string
	}{
		{Coords{Z: 13, X: 4297, Y: 2754}, "z13_x4297_y2754"},
		{Coords{Z: 0, X: 0, Y: 0}, "z0_x0_y0"},
		{Coords{Z: 0, X: 0, Y: -1}, "z0_x0_y-1"},
		{Coords{Z: 18, X: 12345, Y: 67890}, "z18_x12345_y67890"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			result := tt.coords.String()
			if result != tt.expected {
				t.Errorf("String() = %s, want %s", result, tt.expected)
			}
		})
	}
}

func TestParseCoords(t *testing.T) {
	c, err := ParseCoords("z17_x67120_y43966")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != NewCoords(17, 67120, 43966) {
		t.Fatalf("unexpected coords: %+v", c)
	}

	if _, err := ParseCoords("17/67120/43966"); err == nil {
		t.Fatalf("expected error for malformed input")
	}
}

func TestCoordsValid(t *testing.T) {
	tests := []struct {
		coords Coords
		valid  bool
	}{
		{NewCoords(0, 0, 0), true},
		{NewCoords(0, 0, -1), false},
		{NewCoords(1, 1, 1), true},
		{NewCoords(1, 2, 0), false},
		{NewCoords(-1, 0, 0), false},
		{NewCoords(23, 0, 0), false},
	}

	for _, tt := range tests {
		if got := tt.coords.Valid(); got != tt.valid {
			t.Errorf("%s.Valid() = %v, want %v", tt.coords, got, tt.valid)
		}
	}
}

func TestTileRangeForEach(t *testing.T) {
	r := TileRange{Z: 17, MinX: 67119, MaxX: 67121, MinY: 43965, MaxY: 43966}

	if r.Count() != 6 {
		t.Fatalf("Count() = %d, want 6", r.Count())
	}

	got := r.Coords()
	if len(got) != 6 {
		t.Fatalf("expected 6 coords, got %d", len(got))
	}

	// Row-major: top row first, west to east.
	want := []Coords{
		{17, 67119, 43965}, {17, 67120, 43965}, {17, 67121, 43965},
		{17, 67119, 43966}, {17, 67120, 43966}, {17, 67121, 43966},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("coords[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestTileRangeEmpty(t *testing.T) {
	r := TileRange{Z: 3, MinX: 2, MaxX: 1, MinY: 0, MaxY: 0}
	if r.Count() != 0 {
		t.Fatalf("Count() = %d, want 0", r.Count())
	}
	if len(r.Coords()) != 0 {
		t.Fatalf("expected no coords")
	}
}
