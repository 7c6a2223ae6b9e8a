package tile

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

func almostEqual(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

func TestLongitudeRoundTrip(t *testing.T) {
	const eps = 1e-9

	for zoom := 0; zoom <= 20; zoom++ {
		for lon := -180.0; lon < 180.0; lon += 7.3 {
			got := TileXToLongitude(LongitudeToTileX(lon, zoom), zoom)
			if !almostEqual(got, lon, eps) {
				t.Fatalf("zoom %d: round trip of lon %.12f gave %.12f", zoom, lon, got)
			}
		}
	}
}

func TestLatitudeRoundTrip(t *testing.T) {
	const eps = 1e-9

	lats := []float64{-84.999, -66.5, -45.25, -12.3456, -1e-7, 0, 1e-7, 23.5, 50.8503, 71.1, 84.999}
	for zoom := 0; zoom <= 20; zoom++ {
		for _, lat := range lats {
			got := TileYToLatitude(LatitudeToTileY(lat, zoom), zoom)
			if !almostEqual(got, lat, eps) {
				t.Fatalf("zoom %d: round trip of lat %.12f gave %.12f", zoom, lat, got)
			}
		}
	}
}

func TestConverterKnownValues(t *testing.T) {
	tests := []struct {
		name  string
		got   float64
		want  float64
		delta float64
	}{
		{"lon -180 is the west edge", LongitudeToTileX(-180, 5), 0, 0},
		{"lon 0 is the middle", LongitudeToTileX(0, 1), 1, 0},
		{"lat 0 is the middle", LatitudeToTileY(0, 1), 1, 1e-12},
		{"north edge of the grid", LatitudeToTileY(MaxLatitude, 0), 0, 1e-9},
		{"south edge of the grid", LatitudeToTileY(-MaxLatitude, 0), 1, 1e-9},
		{"tile x 0 is -180", TileXToLongitude(0, 12), -180, 0},
		{"tile y 0 is the north limit", TileYToLatitude(0, 3), MaxLatitude, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !almostEqual(tt.got, tt.want, tt.delta) {
				t.Errorf("got %.15f, want %.15f", tt.got, tt.want)
			}
		})
	}
}

func TestConverterConsistentWithMaptile(t *testing.T) {
	points := []orb.Point{
		{4.3517, 50.8503},
		{9.7320, 52.3759},
		{-122.4194, 37.7749},
		{151.2093, -33.8688},
		{-0.1276, 51.5072},
	}

	for zoom := 0; zoom <= 18; zoom++ {
		for _, p := range points {
			want := maptile.At(p, maptile.Zoom(zoom))

			x := int(math.Floor(LongitudeToTileX(p.Lon(), zoom)))
			y := int(math.Floor(LatitudeToTileY(p.Lat(), zoom)))

			if uint32(x) != want.X || uint32(y) != want.Y {
				t.Fatalf("zoom %d point %v: got tile %d/%d, maptile says %d/%d", zoom, p, x, y, want.X, want.Y)
			}
		}
	}
}

func TestTileEdgesMatchMaptileBound(t *testing.T) {
	tests := []Coords{
		{Z: 0, X: 0, Y: 0},
		{Z: 13, X: 4317, Y: 2692},
		{Z: 17, X: 67120, Y: 43966},
		{Z: 8, X: 134, Y: 84},
	}

	const eps = 1e-6

	for _, c := range tests {
		t.Run(c.String(), func(t *testing.T) {
			b := c.Tile().Bound()

			minLon := TileXToLongitude(float64(c.X), c.Z)
			maxLon := TileXToLongitude(float64(c.X+1), c.Z)
			maxLat := TileYToLatitude(float64(c.Y), c.Z)
			minLat := TileYToLatitude(float64(c.Y+1), c.Z)

			if !almostEqual(minLon, b.Min.Lon(), eps) ||
				!almostEqual(maxLon, b.Max.Lon(), eps) ||
				!almostEqual(minLat, b.Min.Lat(), eps) ||
				!almostEqual(maxLat, b.Max.Lat(), eps) {
				t.Fatalf("edges mismatch.\nGot:  %.9f %.9f %.9f %.9f\nWant: %.9f %.9f %.9f %.9f",
					minLon, minLat, maxLon, maxLat,
					b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
			}
		})
	}
}
