package geometry

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Feature returns the map extent as a GeoJSON polygon. The properties carry
// the layout numbers a client needs to place tiles itself.
func (b BoundingBox) Feature() *geojson.Feature {
	f := geojson.NewFeature(b.Bound().ToPolygon())
	f.Properties["kind"] = "viewport"
	f.Properties["zoom"] = b.Zoom
	f.Properties["width"] = b.Width
	f.Properties["height"] = b.Height
	f.Properties["center"] = []float64{b.Center.Lon, b.Center.Lat}
	f.Properties["xTileCount"] = b.XTileCount
	f.Properties["yTileCount"] = b.YTileCount
	f.Properties["leftOffset"] = b.LeftOffset
	f.Properties["topOffset"] = b.TopOffset
	return f
}

// FeatureCollection returns the viewport followed by the footprint of every
// tile of the box in row-major order.
func (b BoundingBox) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(b.Feature())

	b.TileRange().ForEach(func(c tile.Coords) {
		f := geojson.NewFeature(tileBound(c).ToPolygon())
		f.Properties["kind"] = "tile"
		f.Properties["key"] = c.String()
		f.Properties["z"] = c.Z
		f.Properties["x"] = c.X
		f.Properties["y"] = c.Y
		p := b.TilePosition(c)
		f.Properties["pixel"] = []int{p.X, p.Y}
		fc.Append(f)
	})
	return fc
}

// tileBound works for tiles outside the grid too, unlike maptile.Tile.Bound.
func tileBound(c tile.Coords) orb.Bound {
	return orb.Bound{
		Min: orb.Point{tile.TileXToLongitude(float64(c.X), c.Z), tile.TileYToLatitude(float64(c.Y+1), c.Z)},
		Max: orb.Point{tile.TileXToLongitude(float64(c.X+1), c.Z), tile.TileYToLatitude(float64(c.Y), c.Z)},
	}
}
