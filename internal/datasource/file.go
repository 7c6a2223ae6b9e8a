package datasource

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// FileSource reads tiles from the local filesystem. URLs are either file://
// URLs or plain paths; relative paths resolve against Root.
type FileSource struct {
	Root string
}

// FetchTile reads and decodes the tile file named by url.
func (s FileSource) FetchTile(ctx context.Context, url string) (image.Image, error) {
	return fetchAndDecode(ctx, s, url)
}

// FetchRaw reads the encoded tile file named by url.
func (s FileSource) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkFormat(rawURL); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError(rawURL, err)
	}

	p, err := s.resolve(rawURL)
	if err != nil {
		return nil, transportError(rawURL, err)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	return data, nil
}

func (s FileSource) resolve(rawURL string) (string, error) {
	p := rawURL
	if strings.HasPrefix(rawURL, "file:") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", fmt.Errorf("parse file url: %w", err)
		}
		p = u.Path
		if p == "" {
			p = u.Opaque
		}
	}

	p = filepath.FromSlash(p)
	if !filepath.IsAbs(p) && s.Root != "" {
		p = filepath.Join(s.Root, p)
	}
	return p, nil
}
