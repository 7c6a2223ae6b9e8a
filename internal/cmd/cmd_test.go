package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticmap/internal/mbtiles"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
)

func init() {
	logger = newLogger(io.Discard, "text", false)
}

func TestParseBBox(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [4]float64
		wantErr bool
	}{
		{
			name:  "valid bbox",
			input: "9.7,52.3,9.9,52.4",
			want:  [4]float64{9.7, 52.3, 9.9, 52.4},
		},
		{
			name:  "valid bbox with spaces",
			input: "9.7, 52.3, 9.9, 52.4",
			want:  [4]float64{9.7, 52.3, 9.9, 52.4},
		},
		{
			name:  "negative coordinates",
			input: "-122.5,37.7,-122.3,37.9",
			want:  [4]float64{-122.5, 37.7, -122.3, 37.9},
		},
		{name: "too few values", input: "9.7,52.3,9.9", wantErr: true},
		{name: "too many values", input: "9.7,52.3,9.9,52.4,10.0", wantErr: true},
		{name: "invalid number", input: "abc,52.3,9.9,52.4", wantErr: true},
		{name: "minLon >= maxLon", input: "10.0,52.3,9.9,52.4", wantErr: true},
		{name: "minLat >= maxLat", input: "9.7,52.5,9.9,52.4", wantErr: true},
		{name: "empty string", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBBox(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseBBox() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseBBox() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer

	newLogger(&buf, "json", false).Info("hello", "zoom", 17)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.EqualValues(t, 17, rec["zoom"])

	buf.Reset()
	l := newLogger(&buf, "text", false)
	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l = newLogger(&buf, "text", true)
	l.Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestRequestFromConfig(t *testing.T) {
	viper.Set("reqtest.lat", 52.3759)
	viper.Set("reqtest.lon", 9.7320)
	viper.Set("reqtest.zoom", 13)
	viper.Set("reqtest.width", 800)
	viper.Set("reqtest.height", 600)
	viper.Set("reqtest.debug", true)

	req, err := requestFromConfig("reqtest")
	require.NoError(t, err)
	assert.Equal(t, 13, req.Zoom())
	assert.Equal(t, 800, req.Width())
	assert.Equal(t, 600, req.Height())
	assert.True(t, req.IsDebug())
	assert.InDelta(t, 52.3759, req.Center().Lat, 1e-12)
	assert.Equal(t, viper.GetString("tile-url"), req.Template().Pattern)

	box := req.BoundingBox()
	assert.Equal(t, 5, box.XTileCount)
	assert.Equal(t, 4, box.YTileCount)
}

func TestRequestFromConfigErrors(t *testing.T) {
	viper.Set("nolat.lon", 4.35)

	_, err := requestFromConfig("nolat")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	assert.Contains(t, err.Error(), "lat")

	viper.Set("badzoom.lat", 50.0)
	viper.Set("badzoom.lon", 4.0)
	viper.Set("badzoom.zoom", tile.MaxZoom+1)
	viper.Set("badzoom.width", 100)
	viper.Set("badzoom.height", 100)
	_, err = requestFromConfig("badzoom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zoom")

	viper.Set("badsize.lat", 50.0)
	viper.Set("badsize.lon", 4.0)
	viper.Set("badsize.zoom", 10)
	viper.Set("badsize.width", 0)
	viper.Set("badsize.height", 100)
	_, err = requestFromConfig("badsize")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))

	viper.Set("polar.lat", 89.5)
	viper.Set("polar.lon", 0.0)
	viper.Set("polar.zoom", 10)
	viper.Set("polar.width", 100)
	viper.Set("polar.height", 100)
	_, err = requestFromConfig("polar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	assert.Contains(t, err.Error(), "lat")
}

func TestBBoxLayoutTallerThanTheWorld(t *testing.T) {
	viper.Set("tall.lat", 0.0)
	viper.Set("tall.lon", 0.0)
	viper.Set("tall.zoom", 0)
	viper.Set("tall.width", 256)
	viper.Set("tall.height", 2048)

	req, err := requestFromConfig("tall")
	require.NoError(t, err)

	_, err = req.Layout()
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrConfiguration))
	assert.Contains(t, err.Error(), "viewport")
}

func TestWriteBBox(t *testing.T) {
	viper.Set("bboxtest.lat", 50.8503)
	viper.Set("bboxtest.lon", 4.3517)
	viper.Set("bboxtest.zoom", 17)
	viper.Set("bboxtest.width", 486)
	viper.Set("bboxtest.height", 300)

	req, err := requestFromConfig("bboxtest")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, writeBBox(&buf, req.BoundingBox(), false))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.EqualValues(t, 116, got["leftOffset"])
	assert.EqualValues(t, 215, got["topOffset"])
	assert.EqualValues(t, 768, got["uncroppedWidth"])
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  "))

	buf.Reset()
	require.NoError(t, writeBBox(&buf, req.BoundingBox(), true))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "FeatureCollection", got["type"])
	assert.Len(t, got["features"], 10)
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestScanTilesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "13", "4317", "2692.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "flat", "z12_x2158_y1346.png"), []byte("b"))
	writeFile(t, filepath.Join(dir, "2", "9", "0.png"), []byte("outside the grid"))
	writeFile(t, filepath.Join(dir, "README.md"), []byte("ignored"))

	tiles, err := scanTilesDirectory(dir)
	require.NoError(t, err)
	require.Len(t, tiles, 2)

	got := map[tile.Coords]string{}
	for _, tf := range tiles {
		got[tf.coords] = tf.format
	}
	assert.Equal(t, "png", got[tile.NewCoords(13, 4317, 2692)])
	assert.Equal(t, "png", got[tile.NewCoords(12, 2158, 1346)])
}

func TestPack(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tiles")
	writeFile(t, filepath.Join(in, "13", "4317", "2692.jpg"), []byte("tile-13"))
	writeFile(t, filepath.Join(in, "14", "8634", "5384.jpg"), []byte("tile-14"))

	out := filepath.Join(dir, "set.mbtiles")
	err := pack(context.Background(), packOptions{inputDir: in, output: out, name: "test", gzip: true})
	require.NoError(t, err)

	r, err := mbtiles.OpenReader(out)
	require.NoError(t, err)
	defer r.Close()

	data, err := r.ReadTile(context.Background(), tile.NewCoords(14, 8634, 5384))
	require.NoError(t, err)
	assert.Equal(t, "tile-14", string(data))

	meta, err := r.Metadata(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test", meta.Name)
	assert.Equal(t, "jpg", meta.Format)
	assert.Equal(t, 13, meta.MinZoom)
	assert.Equal(t, 14, meta.MaxZoom)
	assert.Less(t, meta.Bounds[0], meta.Bounds[2])
	assert.Less(t, meta.Bounds[1], meta.Bounds[3])
}

func TestPackErrors(t *testing.T) {
	dir := t.TempDir()

	err := pack(context.Background(), packOptions{inputDir: dir})
	assert.ErrorContains(t, err, "--output")

	err = pack(context.Background(), packOptions{inputDir: filepath.Join(dir, "missing"), output: filepath.Join(dir, "x.mbtiles")})
	assert.ErrorContains(t, err, "does not exist")

	err = pack(context.Background(), packOptions{inputDir: dir, output: filepath.Join(dir, "x.mbtiles")})
	assert.ErrorContains(t, err, "no tiles")

	writeFile(t, filepath.Join(dir, "1", "0", "0.png"), []byte("a"))
	writeFile(t, filepath.Join(dir, "1", "1", "0.jpg"), []byte("b"))
	err = pack(context.Background(), packOptions{inputDir: dir, output: filepath.Join(dir, "x.mbtiles")})
	assert.ErrorContains(t, err, "mixed tile formats")
}
