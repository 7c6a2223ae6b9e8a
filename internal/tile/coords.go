package tile

import (
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Coords identifies one tile in the slippy-map tile system (z/x/y).
// X and Y are signed: a viewport close to the poles or the antimeridian
// produces tiles outside [0, 2^z) and those are addressed as-is.
type Coords struct {
	Z int // Zoom level
	X int // Column, west to east
	Y int // Row, north to south
}

// NewCoords creates a new Coords from zoom, x, y values
func NewCoords(z, x, y int) Coords {
	return Coords{Z: z, X: x, Y: y}
}

// String returns the tile coordinate as a string in format "z{zoom}_x{x}_y{y}"
func (c Coords) String() string {
	return fmt.Sprintf("z%d_x%d_y%d", c.Z, c.X, c.Y)
}

// Valid reports whether the tile exists in the tile grid of its zoom level.
func (c Coords) Valid() bool {
	if c.Z < 0 || c.Z > MaxZoom {
		return false
	}
	n := 1 << c.Z
	return c.X >= 0 && c.X < n && c.Y >= 0 && c.Y < n
}

// Tile returns the maptile.Tile for this coordinate. Only meaningful when Valid.
func (c Coords) Tile() maptile.Tile {
	return maptile.New(uint32(c.X), uint32(c.Y), maptile.Zoom(c.Z))
}

// ParseCoords parses a tile string like "z13_x4297_y2754" into Coords
func ParseCoords(s string) (Coords, error) {
	var c Coords
	_, err := fmt.Sscanf(s, "z%d_x%d_y%d", &c.Z, &c.X, &c.Y)
	if err != nil {
		return c, fmt.Errorf("invalid tile coordinate format: %s", s)
	}
	return c, nil
}

// TileRange is an inclusive rectangle of tiles at a single zoom level.
type TileRange struct {
	Z          int
	MinX, MaxX int
	MinY, MaxY int
}

// Width returns the number of tile columns in the range.
func (r TileRange) Width() int {
	return r.MaxX - r.MinX + 1
}

// Height returns the number of tile rows in the range.
func (r TileRange) Height() int {
	return r.MaxY - r.MinY + 1
}

// Count returns the total number of tiles in this range
func (r TileRange) Count() int {
	if r.Width() <= 0 || r.Height() <= 0 {
		return 0
	}
	return r.Width() * r.Height()
}

// ForEach calls fn for each tile in row-major order (top row first, west to east).
func (r TileRange) ForEach(fn func(Coords)) {
	for y := r.MinY; y <= r.MaxY; y++ {
		for x := r.MinX; x <= r.MaxX; x++ {
			fn(NewCoords(r.Z, x, y))
		}
	}
}

// Coords returns every tile of the range in row-major order.
func (r TileRange) Coords() []Coords {
	out := make([]Coords, 0, r.Count())
	r.ForEach(func(c Coords) {
		out = append(out, c)
	})
	return out
}
