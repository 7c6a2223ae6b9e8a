package datasource

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticmap/internal/mbtiles"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
)

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "3", "4")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.png"), pngTile(t, color.Black), 0o644))

	abs := filepath.ToSlash(filepath.Join(dir, "2.png"))

	tests := []struct {
		name string
		src  FileSource
		url  string
	}{
		{"absolute path", FileSource{}, abs},
		{"file url", FileSource{}, "file://" + abs},
		{"relative to root", FileSource{Root: root}, "3/4/2.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := tt.src.FetchTile(context.Background(), tt.url)
			require.NoError(t, err)
			assert.Equal(t, 256, img.Bounds().Dx())
		})
	}

	_, err := FileSource{Root: root}.FetchTile(context.Background(), "3/4/9.png")
	assert.ErrorIs(t, err, types.ErrFetch)
}

func TestParseMBTilesURL(t *testing.T) {
	dbPath, c, err := ParseMBTilesURL("mbtiles:///data/tiles/world.mbtiles/13/4317/2692.png")
	require.NoError(t, err)
	assert.Equal(t, "/data/tiles/world.mbtiles", dbPath)
	assert.Equal(t, tile.NewCoords(13, 4317, 2692), c)

	for _, bad := range []string{
		"http://example.com/world.mbtiles/1/2/3.png",
		"mbtiles:///data/world.sqlite/1/2/3.png",
		"mbtiles:///data/world.mbtiles/1/2.png",
	} {
		_, _, err := ParseMBTilesURL(bad)
		assert.Error(t, err, bad)
	}
}

func TestMBTilesSource(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "fixture.mbtiles")
	w, err := mbtiles.Create(dbPath, mbtiles.Metadata{Name: "fixture", Format: "png"}, true)
	require.NoError(t, err)
	require.NoError(t, w.WriteTile(context.Background(), tile.NewCoords(2, 1, 1), pngTile(t, color.White)))
	require.NoError(t, w.Close())

	src := NewMBTilesSource()
	defer src.Close()

	tmpl := tile.Template{Pattern: "mbtiles://" + filepath.ToSlash(dbPath) + "/{z}/{x}/{y}.png"}

	img, err := src.FetchTile(context.Background(), tmpl.URL(tile.NewCoords(2, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dy())

	_, err = src.FetchTile(context.Background(), tmpl.URL(tile.NewCoords(2, 0, 0)))
	assert.ErrorIs(t, err, types.ErrFetch)
	assert.ErrorIs(t, err, mbtiles.ErrTileNotFound)
}
