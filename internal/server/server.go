// Package server exposes the static map renderer over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/MeKo-Tech/staticmap/internal/datasource"
	"github.com/MeKo-Tech/staticmap/internal/metrics"
	"github.com/MeKo-Tech/staticmap/internal/output"
	"github.com/MeKo-Tech/staticmap/internal/pipeline"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
)

type Config struct {
	TileTemplate string
	Shards       []string
	// AllowTileURL lets clients pick the tile provider with tile_url and shards.
	// The default router also reads file:// and mbtiles:// URLs, so leave this
	// off on public deployments.
	AllowTileURL bool

	MaxConcurrentRenders int
	RenderTimeout        time.Duration
	CacheControl         string
	MaxWidth             int
	MaxHeight            int

	PNGCompression png.CompressionLevel
	JPEGQuality    int
}

// Server renders maps on request. It implements http.Handler.
type Server struct {
	chi.Router

	renderer *pipeline.Renderer
	fetch    *datasource.Instrumented
	cfg      Config
	logger   *slog.Logger
	sem      chan struct{}

	activeRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
	totalRejected atomic.Int64
}

// Status is the JSON document served on /status.
type Status struct {
	Render RenderStatus `json:"render"`
	// Fetch is present when the server was given an instrumented source.
	Fetch *datasource.FetchStatus `json:"fetch,omitempty"`
}

// RenderStatus contains current render operation status.
type RenderStatus struct {
	ActiveRenders int   `json:"active_renders"`
	MaxConcurrent int   `json:"max_concurrent"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	TotalRejected int64 `json:"total_rejected"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// New builds the service. fetch may be nil, in which case /status only
// reports render counters.
func New(renderer *pipeline.Renderer, fetch *datasource.Instrumented, cfg Config, logger *slog.Logger) *Server {
	if cfg.TileTemplate == "" {
		cfg.TileTemplate = tile.DefaultTemplate
	}
	if cfg.Shards == nil {
		cfg.Shards = tile.DefaultShards
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 4
	}
	if cfg.RenderTimeout <= 0 {
		cfg.RenderTimeout = time.Minute
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 2048
	}
	if cfg.MaxHeight <= 0 {
		cfg.MaxHeight = 2048
	}

	s := &Server{
		Router:   chi.NewRouter(),
		renderer: renderer,
		fetch:    fetch,
		cfg:      cfg,
		logger:   logger,
		sem:      make(chan struct{}, cfg.MaxConcurrentRenders),
	}

	s.Use(middleware.RequestID)
	s.Use(middleware.Recoverer)
	s.Use(withCORS)

	s.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	s.Get("/map.png", s.mapHandler(output.PNG))
	s.Get("/map.jpg", s.mapHandler(output.JPEG))
	s.Get("/bbox", s.serveBBox)
	s.Get("/status", s.serveStatus)
	s.Handle("/metrics", metrics.Handler())

	return s
}

// Status returns the current render and fetch statistics.
func (s *Server) Status() Status {
	st := Status{
		Render: RenderStatus{
			ActiveRenders: int(s.activeRenders.Load()),
			MaxConcurrent: s.cfg.MaxConcurrentRenders,
			TotalRendered: s.totalRendered.Load(),
			TotalFailed:   s.totalFailed.Load(),
			TotalRejected: s.totalRejected.Load(),
		},
	}
	if s.fetch != nil {
		fs := s.fetch.Status()
		st.Fetch = &fs
	}
	return st
}

func (s *Server) mapHandler(format output.Format) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := s.parseRequest(r.URL.Query())
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		default:
			s.totalRejected.Add(1)
			metrics.RejectedRenders.Inc()
			w.Header().Set("Retry-After", "1")
			s.writeJSONError(w, r, http.StatusServiceUnavailable, "too many concurrent renders")
			return
		}

		s.activeRenders.Add(1)
		metrics.ActiveRenders.Inc()
		defer func() {
			s.activeRenders.Add(-1)
			metrics.ActiveRenders.Dec()
		}()

		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RenderTimeout)
		defer cancel()

		res, err := s.renderer.Render(ctx, req)
		if err != nil {
			s.totalFailed.Add(1)
			s.writeError(w, r, err)
			return
		}

		var buf bytes.Buffer
		opts := output.Options{Compression: s.cfg.PNGCompression, Quality: s.cfg.JPEGQuality}
		if err := output.Encode(&buf, res.Image, format, opts); err != nil {
			s.totalFailed.Add(1)
			s.writeError(w, r, err)
			return
		}
		s.totalRendered.Add(1)

		s.log().Info("map rendered",
			"center", req.Center().String(),
			"zoom", req.Zoom(),
			"width", req.Width(),
			"height", req.Height(),
			"debug", res.Debug,
			"tiles", res.Tiles,
			"ms", res.Elapsed.Milliseconds(),
		)

		w.Header().Set("Content-Type", format.ContentType())
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Header().Set("Cache-Control", s.cfg.CacheControl)
		w.Header().Set("X-Tile-Count", strconv.Itoa(res.Tiles))
		_, _ = w.Write(buf.Bytes())
	}
}

func (s *Server) serveBBox(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	box, err := req.Layout()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	if r.URL.Query().Get("format") == "geojson" {
		w.Header().Set("Content-Type", "application/geo+json")
		_ = json.NewEncoder(w).Encode(box.FeatureCollection())
		return
	}
	render.JSON(w, r, box)
}

func (s *Server) serveStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	render.JSON(w, r, s.Status())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	switch {
	case code >= 500:
		s.log().Error("render failed", "path", r.URL.Path, "query", r.URL.RawQuery, "status", code, "error", err)
	default:
		s.log().Info("rejected request", "path", r.URL.Path, "query", r.URL.RawQuery, "status", code, "error", err)
	}
	s.writeJSONError(w, r, code, err.Error())
}

func (s *Server) writeJSONError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg, Status: code})
}

// statusFor maps the error kinds of a render to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	case errors.Is(err, types.ErrFetch), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
