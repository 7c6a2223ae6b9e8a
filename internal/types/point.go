package types

import (
	"fmt"

	"github.com/paulmach/orb"
)

// GeoPoint is a WGS84 coordinate in decimal degrees.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeoPoint creates a point from latitude and longitude.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// Point returns the orb representation (lon, lat order).
func (p GeoPoint) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// String returns a human-readable representation of the point
func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f,%.6f)", p.Lat, p.Lon)
}
