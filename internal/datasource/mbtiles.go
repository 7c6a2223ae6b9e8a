package datasource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"sync"

	"github.com/MeKo-Tech/staticmap/internal/mbtiles"
	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// MBTilesSource serves tiles out of MBTiles databases addressed as
//
//	mbtiles:///path/to/db.mbtiles/{z}/{x}/{y}.png
//
// Databases are opened on first use and kept open until Close.
type MBTilesSource struct {
	mu      sync.Mutex
	readers map[string]*mbtiles.Reader
}

// NewMBTilesSource creates an empty MBTiles source.
func NewMBTilesSource() *MBTilesSource {
	return &MBTilesSource{readers: make(map[string]*mbtiles.Reader)}
}

// FetchTile reads and decodes one tile.
func (s *MBTilesSource) FetchTile(ctx context.Context, url string) (image.Image, error) {
	return fetchAndDecode(ctx, s, url)
}

// FetchRaw reads the stored bytes of one tile.
func (s *MBTilesSource) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkFormat(rawURL); err != nil {
		return nil, err
	}

	dbPath, c, err := ParseMBTilesURL(rawURL)
	if err != nil {
		return nil, transportError(rawURL, err)
	}

	r, err := s.reader(dbPath)
	if err != nil {
		return nil, transportError(rawURL, err)
	}

	data, err := r.ReadTile(ctx, c)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	return data, nil
}

func (s *MBTilesSource) reader(dbPath string) (*mbtiles.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.readers[dbPath]; ok {
		return r, nil
	}
	r, err := mbtiles.OpenReader(dbPath)
	if err != nil {
		return nil, err
	}
	s.readers[dbPath] = r
	return r, nil
}

// Close closes every opened database.
func (s *MBTilesSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for p, r := range s.readers {
		errs = append(errs, r.Close())
		delete(s.readers, p)
	}
	return errors.Join(errs...)
}

// ParseMBTilesURL splits an mbtiles:// URL into the database path and the tile.
func ParseMBTilesURL(rawURL string) (string, tile.Coords, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", tile.Coords{}, fmt.Errorf("parse mbtiles url: %w", err)
	}
	if u.Scheme != "mbtiles" {
		return "", tile.Coords{}, fmt.Errorf("not an mbtiles url: %q", rawURL)
	}

	p := u.Host + u.Path
	i := strings.LastIndex(p, ".mbtiles/")
	if i < 0 {
		return "", tile.Coords{}, fmt.Errorf("mbtiles url %q does not name a .mbtiles file", rawURL)
	}
	dbPath := p[:i+len(".mbtiles")]

	var c tile.Coords
	var ext string
	rest := strings.ReplaceAll(p[i+len(".mbtiles/"):], "/", " ")
	rest = strings.Replace(rest, ".", " ", 1)
	if _, err := fmt.Sscanf(rest, "%d %d %d %s", &c.Z, &c.X, &c.Y, &ext); err != nil {
		return "", tile.Coords{}, fmt.Errorf("mbtiles url %q: expected /{z}/{x}/{y}.ext after database path", rawURL)
	}
	return dbPath, c, nil
}
