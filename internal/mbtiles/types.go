// Package mbtiles reads raster tiles from MBTiles (SQLite) databases.
package mbtiles

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTileNotFound is returned when the database has no row for a tile.
var ErrTileNotFound = errors.New("tile not found")

// Metadata contains MBTiles metadata fields.
type Metadata struct {
	Name        string // Human-readable tileset identifier
	Format      string // Tile data type (png, jpg)
	Attribution string
	Description string
	Type        string // "baselayer" or "overlay"
	Version     string
	Bounds      [4]float64 // minLon, minLat, maxLon, maxLat
	Center      [3]float64 // lon, lat, zoom
	MinZoom     int
	MaxZoom     int
}

// ToMap converts Metadata to name/value rows.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	set := func(k, v string) {
		if v != "" {
			result[k] = v
		}
	}
	set("name", m.Name)
	set("format", m.Format)
	set("attribution", m.Attribution)
	set("description", m.Description)
	set("type", m.Type)
	set("version", m.Version)

	if m.MinZoom > 0 {
		result["minzoom"] = strconv.Itoa(m.MinZoom)
	}
	if m.MaxZoom > 0 {
		result["maxzoom"] = strconv.Itoa(m.MaxZoom)
	}
	if m.Bounds != [4]float64{} {
		result["bounds"] = fmt.Sprintf("%.6f,%.6f,%.6f,%.6f",
			m.Bounds[0], m.Bounds[1], m.Bounds[2], m.Bounds[3])
	}
	if m.Center != [3]float64{} {
		result["center"] = fmt.Sprintf("%.6f,%.6f,%d",
			m.Center[0], m.Center[1], int(m.Center[2]))
	}

	return result
}

// parseMetadata is the inverse of ToMap. Unparseable numbers are left at zero.
func parseMetadata(rows map[string]string) Metadata {
	meta := Metadata{
		Name:        rows["name"],
		Format:      rows["format"],
		Attribution: rows["attribution"],
		Description: rows["description"],
		Type:        rows["type"],
		Version:     rows["version"],
	}

	if i, err := strconv.Atoi(rows["minzoom"]); err == nil {
		meta.MinZoom = i
	}
	if i, err := strconv.Atoi(rows["maxzoom"]); err == nil {
		meta.MaxZoom = i
	}
	parseFloats(rows["bounds"], meta.Bounds[:])
	parseFloats(rows["center"], meta.Center[:])

	return meta
}

func parseFloats(s string, dst []float64) {
	parts := strings.Split(s, ",")
	if len(parts) != len(dst) {
		return
	}
	for i, part := range parts {
		if f, err := strconv.ParseFloat(strings.TrimSpace(part), 64); err == nil {
			dst[i] = f
		}
	}
}
