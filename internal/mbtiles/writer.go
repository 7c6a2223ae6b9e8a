package mbtiles

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// Writer builds an MBTiles database. It exists to prepare local tile sets
// (and test fixtures) that the Reader and the mbtiles:// source consume.
type Writer struct {
	db       *sql.DB
	compress bool
}

// Create creates (or truncates the metadata of) an MBTiles database at path.
// When compress is set, tile data is gzipped before storage.
func Create(path string, metadata Metadata, compress bool) (*Writer, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := insertMetadata(db, metadata); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to insert metadata: %w", err)
	}

	return &Writer{db: db, compress: compress}, nil
}

func createSchema(db *sql.DB) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS metadata (
			name TEXT NOT NULL,
			value TEXT
		);

		CREATE TABLE IF NOT EXISTS tiles (
			zoom_level INTEGER NOT NULL,
			tile_column INTEGER NOT NULL,
			tile_row INTEGER NOT NULL,
			tile_data BLOB NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS tile_index ON tiles (zoom_level, tile_column, tile_row);
	`
	_, err := db.Exec(schema)
	return err
}

func insertMetadata(db *sql.DB, meta Metadata) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint:errcheck

	if _, err := tx.Exec("DELETE FROM metadata"); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	for key, value := range meta.ToMap() {
		if _, err := tx.Exec("INSERT INTO metadata (name, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// WriteTile stores data for tile c, replacing any previous row.
func (w *Writer) WriteTile(ctx context.Context, c tile.Coords, data []byte) error {
	if !c.Valid() {
		return fmt.Errorf("tile %s outside the tile grid", c)
	}

	if w.compress {
		var err error
		if data, err = gzipCompress(data); err != nil {
			return fmt.Errorf("failed to compress tile %s: %w", c, err)
		}
	}

	_, err := w.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO tiles (zoom_level, tile_column, tile_row, tile_data) VALUES (?, ?, ?, ?)",
		c.Z, c.X, tmsRow(c), data,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tile %s: %w", c, err)
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	if err := w.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipCompress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		gw.Close()
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
