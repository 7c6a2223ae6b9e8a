package pipeline

import (
	"fmt"
	"math"

	"github.com/MeKo-Tech/staticmap/internal/geometry"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
)

// Defaults of a new Request.
const (
	DefaultZoom   = 17
	DefaultWidth  = 486
	DefaultHeight = 300
)

// Request describes one map to render. It is immutable: every With method
// returns a modified copy.
type Request struct {
	center   types.GeoPoint
	zoom     int
	width    int
	height   int
	template tile.Template
	debug    bool
}

// NewRequest returns a request with the default zoom, size and tile provider,
// centered on (0, 0).
func NewRequest() Request {
	return Request{
		zoom:     DefaultZoom,
		width:    DefaultWidth,
		height:   DefaultHeight,
		template: tile.NewTemplate(tile.DefaultTemplate),
	}
}

// CenteredOn is a shorthand for NewRequest().CenteredOn(lat, lon).
func CenteredOn(lat, lon float64) Request {
	return NewRequest().CenteredOn(lat, lon)
}

// CenteredOn sets the center of the map.
func (r Request) CenteredOn(lat, lon float64) Request {
	r.center = types.NewGeoPoint(lat, lon)
	return r
}

// WithZoom sets the zoom level.
func (r Request) WithZoom(zoom int) Request {
	r.zoom = zoom
	return r
}

// WithDimensions sets the output size in pixels.
func (r Request) WithDimensions(width, height int) Request {
	r.width, r.height = width, height
	return r
}

// WithTileProvider sets the URL template, keeping the current shards.
func (r Request) WithTileProvider(pattern string) Request {
	r.template.Pattern = pattern
	return r
}

// WithShards replaces the values substituted for {s}.
func (r Request) WithShards(shards ...string) Request {
	r.template.Shards = append([]string(nil), shards...)
	return r
}

// Debug switches to debug mode: the map is returned uncropped with the
// tile grid and crop area drawn on it.
func (r Request) Debug() Request {
	return r.WithDebug(true)
}

// WithDebug sets debug mode explicitly.
func (r Request) WithDebug(debug bool) Request {
	r.debug = debug
	return r
}

// Center returns the geographic center of the map.
func (r Request) Center() types.GeoPoint { return r.center }

// Zoom returns the zoom level.
func (r Request) Zoom() int { return r.zoom }

// Width returns the output width in pixels.
func (r Request) Width() int { return r.width }

// Height returns the output height in pixels.
func (r Request) Height() int { return r.height }

// Template returns the tile URL template with its shards.
func (r Request) Template() tile.Template { return r.template }

// IsDebug reports whether the map is rendered uncropped with the debug overlay.
func (r Request) IsDebug() bool { return r.debug }

// BoundingBox computes the tile layout of the request without fetching anything.
func (r Request) BoundingBox() geometry.BoundingBox {
	return geometry.Compute(r.center, r.zoom, r.width, r.height)
}

// Validate checks the parameters that must hold before any work starts.
func (r Request) Validate() error {
	if r.width <= 0 {
		return types.NewConfigurationError("width", r.width, "map dimensions must be positive")
	}
	if r.height <= 0 {
		return types.NewConfigurationError("height", r.height, "map dimensions must be positive")
	}
	if r.zoom < 0 || r.zoom > tile.MaxZoom {
		return types.NewConfigurationError("zoom", r.zoom, fmt.Sprintf("zoom must be between 0 and %d", tile.MaxZoom))
	}
	if lat := r.center.Lat; math.IsNaN(lat) || math.Abs(lat) > tile.MaxLatitude {
		return types.NewConfigurationError("lat", lat, fmt.Sprintf("latitude must be within ±%.6f", tile.MaxLatitude))
	}
	if lon := r.center.Lon; math.IsNaN(lon) || math.Abs(lon) > 180 {
		return types.NewConfigurationError("lon", lon, "longitude must be within ±180")
	}
	return nil
}

// Layout validates the request and computes its bounding box. A viewport the
// tile grid cannot hold, such as one taller than the world at its zoom, is a
// configuration error.
func (r Request) Layout() (geometry.BoundingBox, error) {
	if err := r.Validate(); err != nil {
		return geometry.BoundingBox{}, err
	}
	box := r.BoundingBox()
	if err := box.Validate(); err != nil {
		return geometry.BoundingBox{}, &types.ConfigurationError{
			Field:  "viewport",
			Value:  fmt.Sprintf("%dx%d@z%d", r.width, r.height, r.zoom),
			Reason: err.Error(),
		}
	}
	return box, nil
}
