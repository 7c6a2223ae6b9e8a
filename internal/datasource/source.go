// Package datasource retrieves map tiles from HTTP providers, local
// directories and MBTiles databases.
package datasource

import (
	"bytes"
	"context"
	"image"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/url"
	"path"
	"strings"

	"github.com/MeKo-Tech/staticmap/internal/types"
)

// TileSource fetches and decodes one tile.
type TileSource interface {
	FetchTile(ctx context.Context, url string) (image.Image, error)
}

// RawSource is implemented by sources that can return the encoded tile bytes.
// Instrumented uses it to account for transferred bytes.
type RawSource interface {
	FetchRaw(ctx context.Context, url string) ([]byte, error)
}

// Format is the raster format of a tile, derived from its URL.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
)

// FormatOf returns the tile format named by the extension of the URL path.
// Only .png and .jpg are accepted (case-insensitive); query strings and
// fragments are ignored.
func FormatOf(rawURL string) (Format, error) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
		if p == "" {
			p = u.Opaque
		}
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}

	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".png":
		return FormatPNG, nil
	case ".jpg":
		return FormatJPEG, nil
	}
	return "", &types.UnsupportedFormatError{URL: rawURL, Extension: ext}
}

// checkFormat wraps a FormatOf failure as an unsupported_format FetchError.
func checkFormat(rawURL string) error {
	if _, err := FormatOf(rawURL); err != nil {
		return &types.FetchError{Reason: types.FetchReasonUnsupportedFormat, URL: rawURL, Err: err}
	}
	return nil
}

// decodeTile decodes PNG or JPEG bytes. The decoder is picked from the data,
// not the URL, because providers do not always match the two.
func decodeTile(rawURL string, data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &types.FetchError{Reason: types.FetchReasonDecode, URL: rawURL, Err: err}
	}
	return img, nil
}

// fetchAndDecode implements FetchTile on top of FetchRaw.
func fetchAndDecode(ctx context.Context, src RawSource, rawURL string) (image.Image, error) {
	data, err := src.FetchRaw(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return decodeTile(rawURL, data)
}

// transportError builds a transport FetchError.
func transportError(rawURL string, err error) error {
	return &types.FetchError{Reason: types.FetchReasonTransport, URL: rawURL, Err: err}
}
