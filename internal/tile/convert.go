package tile

import "math"

const (
	// TileSize is the edge length of one square tile in pixels.
	TileSize = 256

	// MaxZoom is the deepest zoom level the converter is meant for.
	MaxZoom = 22

	// MaxLatitude is the northern limit of the Web Mercator projection.
	// Latitudes at or beyond ±MaxLatitude still convert, but the tile
	// coordinates they produce do not correspond to any real tile.
	MaxLatitude = 85.0511287798066
)

// The four functions below work on "fractional tile numbers": the integer part
// selects a tile, the fractional part is the position inside it. Round them
// down with math.Floor to get the tile to download.
//
// None of them validate their input. Zoom is expected in [0, MaxZoom] and
// latitude in (-MaxLatitude, MaxLatitude); other values return numbers that
// are mathematically consistent but geographically meaningless.

// LongitudeToTileX converts a longitude in decimal degrees to a fractional tile X.
func LongitudeToTileX(lon float64, zoom int) float64 {
	n := math.Exp2(float64(zoom))
	return ((lon + 180) / 360) * n
}

// TileXToLongitude converts a fractional tile X back to a longitude in decimal degrees.
func TileXToLongitude(x float64, zoom int) float64 {
	n := math.Exp2(float64(zoom))
	return x/n*360.0 - 180.0
}

// LatitudeToTileY converts a latitude in decimal degrees to a fractional tile Y.
// Y grows southwards.
func LatitudeToTileY(lat float64, zoom int) float64 {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0
	return (1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n
}

// TileYToLatitude converts a fractional tile Y back to a latitude in decimal degrees.
func TileYToLatitude(y float64, zoom int) float64 {
	n := math.Exp2(float64(zoom))
	latRad := math.Atan(math.Sinh(math.Pi * (1 - 2*y/n)))
	return latRad * 180.0 / math.Pi
}
