package mbtiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Reader reads tiles from an MBTiles database. It is safe for concurrent use.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens an MBTiles database read-only.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name='tiles'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database %s does not contain tiles table", path)
	}

	return &Reader{db: db, path: path}, nil
}

// Path returns the database file the reader was opened on.
func (r *Reader) Path() string {
	return r.path
}

// ReadTile returns the stored bytes of tile c, gunzipped if they were compressed.
// Coordinates are XYZ; the TMS row flip happens here.
func (r *Reader) ReadTile(ctx context.Context, c tile.Coords) ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s outside the tile grid", ErrTileNotFound, c)
	}

	var data []byte
	err := r.db.QueryRowContext(ctx,
		"SELECT tile_data FROM tiles WHERE zoom_level=? AND tile_column=? AND tile_row=?",
		c.Z, c.X, tmsRow(c),
	).Scan(&data)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrTileNotFound, c)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query tile %s: %w", c, err)
	}

	if isGzip(data) {
		data, err = gzipDecompress(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress tile %s: %w", c, err)
		}
	}
	return data, nil
}

// Metadata reads the metadata table.
func (r *Reader) Metadata(ctx context.Context) (Metadata, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		values[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return parseMetadata(values), nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// tmsRow flips an XYZ row into the TMS numbering MBTiles uses.
func tmsRow(c tile.Coords) int {
	return (1 << c.Z) - 1 - c.Y
}

func isGzip(data []byte) bool {
	return len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
