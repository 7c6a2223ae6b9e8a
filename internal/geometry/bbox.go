// Package geometry derives the tile-grid layout of a static map viewport.
package geometry

import (
	"fmt"
	"image"
	"math"

	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
	"github.com/paulmach/orb"
)

// BoundingBox describes the requested viewport both geographically and as a
// slice of the tile grid at Zoom. It is computed once per render and never mutated.
type BoundingBox struct {
	Center types.GeoPoint `json:"center"`
	Zoom   int            `json:"zoom"`
	Width  int            `json:"width"`
	Height int            `json:"height"`

	// Geographic extent of the cropped viewport, in degrees.
	Left   float64 `json:"left"`
	Bottom float64 `json:"bottom"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`

	// Fractional tile coordinates of the same extent.
	LeftTileIndex   float64 `json:"leftTileIndex"`
	TopTileIndex    float64 `json:"topTileIndex"`
	RightTileIndex  float64 `json:"rightTileIndex"`
	BottomTileIndex float64 `json:"bottomTileIndex"`

	XTileCount      int `json:"xTileCount"`
	YTileCount      int `json:"yTileCount"`
	UncroppedWidth  int `json:"uncroppedWidth"`
	UncroppedHeight int `json:"uncroppedHeight"`

	// Pixel position of the viewport's top-left corner in the uncropped canvas.
	LeftOffset int `json:"leftOffset"`
	TopOffset  int `json:"topOffset"`
}

// Compute returns the bounding box of a width x height pixel viewport centered on
// center at the given zoom.
//
// The edges are converted to degrees and then back to tile indices, so the stored
// indices always agree with the stored degree values. Tile indices are not clamped:
// viewports near the poles or the antimeridian yield tiles outside [0, 2^zoom).
func Compute(center types.GeoPoint, zoom, width, height int) BoundingBox {
	cx := tile.LongitudeToTileX(center.Lon, zoom)
	cy := tile.LatitudeToTileY(center.Lat, zoom)

	halfW := float64(width) / tile.TileSize / 2
	halfH := float64(height) / tile.TileSize / 2

	b := BoundingBox{
		Center: center,
		Zoom:   zoom,
		Width:  width,
		Height: height,
		Left:   tile.TileXToLongitude(cx-halfW, zoom),
		Right:  tile.TileXToLongitude(cx+halfW, zoom),
		Top:    tile.TileYToLatitude(cy-halfH, zoom),
		Bottom: tile.TileYToLatitude(cy+halfH, zoom),
	}

	b.LeftTileIndex = tile.LongitudeToTileX(b.Left, zoom)
	b.RightTileIndex = tile.LongitudeToTileX(b.Right, zoom)
	b.TopTileIndex = tile.LatitudeToTileY(b.Top, zoom)
	b.BottomTileIndex = tile.LatitudeToTileY(b.Bottom, zoom)

	b.LeftOffset = pixelOffset(b.LeftTileIndex)
	b.TopOffset = pixelOffset(b.TopTileIndex)

	b.XTileCount = int(math.Floor(b.RightTileIndex)-math.Floor(b.LeftTileIndex)) + 1
	b.YTileCount = int(math.Floor(b.BottomTileIndex)-math.Floor(b.TopTileIndex)) + 1
	b.UncroppedWidth = b.XTileCount * tile.TileSize
	b.UncroppedHeight = b.YTileCount * tile.TileSize

	return b
}

// pixelOffset truncates the fractional part of a tile index to whole pixels.
func pixelOffset(index float64) int {
	return int((index - math.Floor(index)) * tile.TileSize)
}

// TileRange returns the integer tiles covering the box, in grid coordinates.
func (b BoundingBox) TileRange() tile.TileRange {
	return tile.TileRange{
		Z:    b.Zoom,
		MinX: int(math.Floor(b.LeftTileIndex)),
		MaxX: int(math.Floor(b.RightTileIndex)),
		MinY: int(math.Floor(b.TopTileIndex)),
		MaxY: int(math.Floor(b.BottomTileIndex)),
	}
}

// TilePosition returns the pixel origin of tile c in the uncropped canvas.
func (b BoundingBox) TilePosition(c tile.Coords) image.Point {
	r := b.TileRange()
	return image.Pt((c.X-r.MinX)*tile.TileSize, (c.Y-r.MinY)*tile.TileSize)
}

// TileRect returns the canvas rectangle covered by tile c.
func (b BoundingBox) TileRect(c tile.Coords) image.Rectangle {
	p := b.TilePosition(c)
	return image.Rect(p.X, p.Y, p.X+tile.TileSize, p.Y+tile.TileSize)
}

// CanvasRect is the full uncropped canvas.
func (b BoundingBox) CanvasRect() image.Rectangle {
	return image.Rect(0, 0, b.UncroppedWidth, b.UncroppedHeight)
}

// CropRect is the requested viewport inside the uncropped canvas.
func (b BoundingBox) CropRect() image.Rectangle {
	return image.Rect(b.LeftOffset, b.TopOffset, b.LeftOffset+b.Width, b.TopOffset+b.Height)
}

// Bound returns the geographic extent as an orb.Bound.
func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.Left, b.Bottom},
		Max: orb.Point{b.Right, b.Top},
	}
}

// Validate checks the layout invariants: whole-tile canvas sizes, offsets inside
// one tile and a crop rectangle that fits the canvas.
func (b BoundingBox) Validate() error {
	if b.Width <= 0 || b.Height <= 0 {
		return fmt.Errorf("viewport %dx%d is empty", b.Width, b.Height)
	}
	if world := tile.TileSize << b.Zoom; b.Zoom >= 0 && b.Zoom <= tile.MaxZoom && b.Height > world {
		return fmt.Errorf("viewport height %d exceeds the %d px world at zoom %d", b.Height, world, b.Zoom)
	}
	for _, v := range []float64{b.LeftTileIndex, b.RightTileIndex, b.TopTileIndex, b.BottomTileIndex} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return fmt.Errorf("tile indices of %s are not finite", b)
		}
	}
	if b.XTileCount < 1 || b.YTileCount < 1 {
		return fmt.Errorf("tile counts %dx%d must be positive", b.XTileCount, b.YTileCount)
	}
	if b.UncroppedWidth != b.XTileCount*tile.TileSize || b.UncroppedHeight != b.YTileCount*tile.TileSize {
		return fmt.Errorf("canvas %dx%d is not a whole number of tiles", b.UncroppedWidth, b.UncroppedHeight)
	}
	if b.LeftOffset < 0 || b.LeftOffset >= tile.TileSize || b.TopOffset < 0 || b.TopOffset >= tile.TileSize {
		return fmt.Errorf("offsets (%d,%d) outside [0,%d)", b.LeftOffset, b.TopOffset, tile.TileSize)
	}
	if !b.CropRect().In(b.CanvasRect()) {
		return fmt.Errorf("crop %v exceeds canvas %v", b.CropRect(), b.CanvasRect())
	}
	if b.Left >= b.Right || b.Bottom >= b.Top {
		return fmt.Errorf("degenerate extent %s", b)
	}
	return nil
}

// String returns a human-readable representation of the bounding box
func (b BoundingBox) String() string {
	return fmt.Sprintf("bbox(%.6f,%.6f,%.6f,%.6f)", b.Bottom, b.Left, b.Top, b.Right)
}
