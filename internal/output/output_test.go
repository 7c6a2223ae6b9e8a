package output

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/staticmap/internal/types"
)

func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 486, 300))
	for y := 0; y < 300; y++ {
		for x := 0; x < 486; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{"map.png", PNG, false},
		{"out/MAP.PNG", PNG, false},
		{"map.jpg", JPEG, false},
		{"map.jpeg", JPEG, false},
		{"map.gif", "", true},
		{"map", "", true},
	}

	for _, tt := range tests {
		got, err := FormatFromPath(tt.path)
		if tt.wantErr {
			assert.ErrorIs(t, err, types.ErrConfiguration, tt.path)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestParseCompression(t *testing.T) {
	level, err := ParseCompression("best")
	require.NoError(t, err)
	assert.Equal(t, png.BestCompression, level)

	level, err = ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, png.DefaultCompression, level)

	_, err = ParseCompression("ultra")
	assert.ErrorIs(t, err, types.ErrConfiguration)
}

func TestEncode(t *testing.T) {
	img := testImage()

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, img, PNG, Options{Compression: png.BestSpeed}))
	decoded, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())

	buf.Reset()
	require.NoError(t, Encode(&buf, img, JPEG, Options{Quality: 80}))
	cfg, err := jpeg.DecodeConfig(&buf)
	require.NoError(t, err)
	assert.Equal(t, 486, cfg.Width)
	assert.Equal(t, 300, cfg.Height)

	assert.Error(t, Encode(&buf, img, Format("bmp"), Options{}))
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.png")

	require.NoError(t, WriteFile(path, testImage(), Options{}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 486, cfg.Width)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()

	err := WriteFile(filepath.Join(dir, "missing", "map.png"), testImage(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrWrite)

	var we *types.WriteError
	require.True(t, errors.As(err, &we))
	assert.Contains(t, we.Path, "map.png")

	err = WriteFile(filepath.Join(dir, "map.tiff"), testImage(), Options{})
	assert.ErrorIs(t, err, types.ErrWrite)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteAtomicEncodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "map.png")

	err := writeAtomic(path, func(io.Writer) error {
		return errors.New("encode failed")
	})
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}
