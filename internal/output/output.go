// Package output encodes rendered maps and writes them to disk or stdout.
package output

import (
	"bufio"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/staticmap/internal/types"
)

// Format is an output image encoding.
type Format string

const (
	PNG  Format = "png"
	JPEG Format = "jpeg"
)

// Stdout is the path that selects standard output.
const Stdout = "-"

// Options controls encoding.
type Options struct {
	Format      Format // overrides the format inferred from the path
	Compression png.CompressionLevel
	Quality     int // JPEG quality 1-100, 0 selects jpeg.DefaultQuality
}

// FormatFromPath infers the encoding from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return PNG, nil
	case ".jpg", ".jpeg":
		return JPEG, nil
	}
	return "", types.NewConfigurationError("output", path, "extension must be .png, .jpg or .jpeg")
}

// ParseCompression maps a name to a PNG compression level.
func ParseCompression(name string) (png.CompressionLevel, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return png.DefaultCompression, nil
	case "speed", "fast":
		return png.BestSpeed, nil
	case "best":
		return png.BestCompression, nil
	case "none":
		return png.NoCompression, nil
	}
	return 0, types.NewConfigurationError("png compression", name, "expected default, speed, best or none")
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == JPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Encode writes img to w.
func Encode(w io.Writer, img image.Image, format Format, opts Options) error {
	switch format {
	case PNG:
		enc := png.Encoder{CompressionLevel: opts.Compression}
		return enc.Encode(w, img)
	case JPEG:
		q := opts.Quality
		if q <= 0 {
			q = jpeg.DefaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: min(q, 100)})
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteFile encodes img to path. The file is written under a temporary name
// in the same directory and renamed into place, so a failed write never leaves
// a partial image behind. Path "-" writes to stdout.
func WriteFile(path string, img image.Image, opts Options) error {
	format := opts.Format
	if format == "" {
		if path == Stdout {
			format = PNG
		} else {
			f, err := FormatFromPath(path)
			if err != nil {
				return &types.WriteError{Path: path, Err: err}
			}
			format = f
		}
	}

	if path == Stdout {
		bw := bufio.NewWriter(os.Stdout)
		if err := Encode(bw, img, format, opts); err != nil {
			return &types.WriteError{Path: path, Err: err}
		}
		if err := bw.Flush(); err != nil {
			return &types.WriteError{Path: path, Err: err}
		}
		return nil
	}

	if err := writeAtomic(path, func(w io.Writer) error {
		return Encode(w, img, format, opts)
	}); err != nil {
		return &types.WriteError{Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, encode func(io.Writer) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err = encode(bw); err != nil {
		return err
	}
	if err = bw.Flush(); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
