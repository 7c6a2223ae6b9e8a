package server

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/staticmap/internal/pipeline"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
)

// parseRequest builds a pipeline request from the query string of a map or
// bbox request. Missing zoom, width and height fall back to the server
// defaults; lat and lon are required.
func (s *Server) parseRequest(q url.Values) (pipeline.Request, error) {
	lat, err := floatParam(q, "lat", tile.MaxLatitude)
	if err != nil {
		return pipeline.Request{}, err
	}
	lon, err := floatParam(q, "lon", 180)
	if err != nil {
		return pipeline.Request{}, err
	}

	zoom, err := intParam(q, "zoom", pipeline.DefaultZoom)
	if err != nil {
		return pipeline.Request{}, err
	}
	if zoom < 0 || zoom > tile.MaxZoom {
		return pipeline.Request{}, types.NewConfigurationError("zoom", zoom, "zoom must be between 0 and 22")
	}

	width, err := intParam(q, "width", pipeline.DefaultWidth)
	if err != nil {
		return pipeline.Request{}, err
	}
	height, err := intParam(q, "height", pipeline.DefaultHeight)
	if err != nil {
		return pipeline.Request{}, err
	}
	if width > s.cfg.MaxWidth {
		return pipeline.Request{}, types.NewConfigurationError("width", width, "exceeds the server limit of "+strconv.Itoa(s.cfg.MaxWidth))
	}
	if height > s.cfg.MaxHeight {
		return pipeline.Request{}, types.NewConfigurationError("height", height, "exceeds the server limit of "+strconv.Itoa(s.cfg.MaxHeight))
	}

	debug := false
	if v := q.Get("debug"); v != "" {
		debug, err = strconv.ParseBool(v)
		if err != nil {
			return pipeline.Request{}, types.NewConfigurationError("debug", v, "not a boolean")
		}
	}

	pattern := s.cfg.TileTemplate
	shards := s.cfg.Shards
	if v := q.Get("tile_url"); v != "" {
		if !s.cfg.AllowTileURL {
			return pipeline.Request{}, types.NewConfigurationError("tile_url", v, "overriding the tile provider is disabled")
		}
		pattern = v
	}
	if v := q.Get("shards"); v != "" {
		if !s.cfg.AllowTileURL {
			return pipeline.Request{}, types.NewConfigurationError("shards", v, "overriding the tile provider is disabled")
		}
		shards = strings.Split(v, ",")
	}

	req := pipeline.CenteredOn(lat, lon).
		WithZoom(zoom).
		WithDimensions(width, height).
		WithTileProvider(pattern).
		WithShards(shards...).
		WithDebug(debug)

	return req, req.Validate()
}

func floatParam(q url.Values, name string, limit float64) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, types.NewConfigurationError(name, raw, "required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, types.NewConfigurationError(name, raw, "not a number")
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, types.NewConfigurationError(name, v, "out of range")
	}
	return v, nil
}

func intParam(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, types.NewConfigurationError(name, raw, "not an integer")
	}
	return v, nil
}
