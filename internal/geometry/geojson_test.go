package geometry

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

func TestFeature(t *testing.T) {
	b := Compute(brussels, 17, 486, 300)
	f := b.Feature()

	poly, ok := f.Geometry.(orb.Polygon)
	require.True(t, ok, "geometry is %T", f.Geometry)
	assert.Equal(t, b.Bound(), poly.Bound())
	assert.Equal(t, "viewport", f.Properties["kind"])
	assert.Equal(t, 17, f.Properties["zoom"])
	assert.Equal(t, 116, f.Properties["leftOffset"])
}

func TestFeatureCollectionTiles(t *testing.T) {
	b := Compute(brussels, 17, 486, 300)
	fc := b.FeatureCollection()

	require.Len(t, fc.Features, 1+b.XTileCount*b.YTileCount)
	assert.Equal(t, "viewport", fc.Features[0].Properties["kind"])

	first := fc.Features[1]
	assert.Equal(t, "tile", first.Properties["kind"])
	assert.Equal(t, "z17_x67119_y43965", first.Properties["key"])
	assert.Equal(t, []int{0, 0}, first.Properties["pixel"])

	// The tiles cover the viewport.
	covered := first.Geometry.Bound()
	for _, f := range fc.Features[2:] {
		covered = covered.Union(f.Geometry.Bound())
	}
	assert.True(t, covered.Contains(b.Bound().Min))
	assert.True(t, covered.Contains(b.Bound().Max))

	// Footprints agree with maptile for tiles inside the grid.
	for _, f := range fc.Features[1:] {
		c := tile.NewCoords(f.Properties["z"].(int), f.Properties["x"].(int), f.Properties["y"].(int))
		want := c.Tile().Bound()
		got := f.Geometry.Bound()
		assert.InDelta(t, want.Min.Lon(), got.Min.Lon(), 1e-6)
		assert.InDelta(t, want.Max.Lat(), got.Max.Lat(), 1e-6)
	}
}

func TestFeatureCollectionJSON(t *testing.T) {
	b := Compute(brussels, 17, 486, 300)

	data, err := json.Marshal(b.FeatureCollection())
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 10)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.GeoJSONType())
}

func TestTileBoundOutsideGrid(t *testing.T) {
	// Row -1 at zoom 0 sits north of the projection limit.
	got := tileBound(tile.NewCoords(0, 0, -1))
	assert.InDelta(t, -180, got.Min.Lon(), 1e-9)
	assert.InDelta(t, tile.MaxLatitude, got.Min.Lat(), 1e-9)
	assert.Greater(t, got.Max.Lat(), got.Min.Lat())
}
