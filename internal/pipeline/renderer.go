// Package pipeline assembles static maps: it computes the tile layout,
// fetches the tiles into one canvas and crops it to the requested viewport.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/disintegration/gift"
	xdraw "golang.org/x/image/draw"

	"github.com/MeKo-Tech/staticmap/internal/datasource"
	"github.com/MeKo-Tech/staticmap/internal/geometry"
	"github.com/MeKo-Tech/staticmap/internal/metrics"
	"github.com/MeKo-Tech/staticmap/internal/overlay"
	"github.com/MeKo-Tech/staticmap/internal/tile"
	"github.com/MeKo-Tech/staticmap/internal/types"
	"github.com/MeKo-Tech/staticmap/internal/worker"
)

// State is a step of a render.
type State int

const (
	Configuring State = iota
	BoxComputed
	TilesPlaced
	Cropped
	DebugRendered
	Done
)

func (s State) String() string {
	switch s {
	case Configuring:
		return "configuring"
	case BoxComputed:
		return "box_computed"
	case TilesPlaced:
		return "tiles_placed"
	case Cropped:
		return "cropped"
	case DebugRendered:
		return "debug_rendered"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// OverlayFunc draws the debug view onto the uncropped canvas.
type OverlayFunc func(canvas *image.RGBA, box geometry.BoundingBox, width, height int)

// Config configures a Renderer.
type Config struct {
	Source     datasource.TileSource
	Overlay    OverlayFunc // defaults to overlay.Render
	Workers    int         // concurrent tile fetches, default 4
	OnProgress worker.ProgressFunc
	Logger     *slog.Logger
}

// Renderer turns Requests into images. It holds no per-render state and is
// safe for concurrent use.
type Renderer struct {
	source     datasource.TileSource
	overlay    OverlayFunc
	workers    int
	onProgress worker.ProgressFunc
	logger     *slog.Logger
}

// NewRenderer creates a renderer.
func NewRenderer(cfg Config) *Renderer {
	if cfg.Overlay == nil {
		cfg.Overlay = overlay.Render
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Renderer{
		source:     cfg.Source,
		overlay:    cfg.Overlay,
		workers:    cfg.Workers,
		onProgress: cfg.OnProgress,
		logger:     cfg.Logger,
	}
}

// Result is a finished render.
type Result struct {
	Image   image.Image
	Box     geometry.BoundingBox
	Tiles   int
	Debug   bool
	Elapsed time.Duration
}

// Render produces the map described by req. Any tile failure aborts the
// render and no image is returned.
func (r *Renderer) Render(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	tiles := 0
	defer func() {
		metrics.ObserveRender(req.IsDebug(), tiles, time.Since(start), err)
	}()

	log := r.log().With("center", req.Center().String(), "zoom", req.Zoom(), "width", req.Width(), "height", req.Height())
	log.Debug("render state", "state", Configuring)

	box, err := req.Layout()
	if err != nil {
		return nil, err
	}
	log.Debug("render state", "state", BoxComputed,
		"tiles_x", box.XTileCount, "tiles_y", box.YTileCount,
		"left_offset", box.LeftOffset, "top_offset", box.TopOffset)

	tasks, err := r.tasks(box, req.Template())
	if err != nil {
		return nil, err
	}
	tiles = len(tasks)

	canvas := image.NewRGBA(box.CanvasRect())
	if err := r.placeTiles(ctx, canvas, box, tasks); err != nil {
		return nil, fmt.Errorf("render %s: %w", req.Center(), asFetchError(err))
	}
	log.Debug("render state", "state", TilesPlaced, "tiles", tiles)

	var out image.Image
	if req.IsDebug() {
		r.overlay(canvas, box, req.Width(), req.Height())
		out = canvas
		log.Debug("render state", "state", DebugRendered)
	} else {
		out = crop(canvas, box.CropRect())
		log.Debug("render state", "state", Cropped, "bounds", out.Bounds().String())
	}

	elapsed := time.Since(start)
	log.Debug("render state", "state", Done, "duration_ms", elapsed.Milliseconds())

	return &Result{
		Image:   out,
		Box:     box,
		Tiles:   tiles,
		Debug:   req.IsDebug(),
		Elapsed: elapsed,
	}, nil
}

// tasks resolves the URL of every tile in the box. The URL format is checked
// here so an unsupported provider fails before anything is fetched.
func (r *Renderer) tasks(box geometry.BoundingBox, tmpl tile.Template) ([]worker.Task, error) {
	coords := box.TileRange().Coords()
	tasks := make([]worker.Task, 0, len(coords))
	for _, c := range coords {
		url := tmpl.URL(c)
		if _, err := datasource.FormatOf(url); err != nil {
			return nil, err
		}
		tasks = append(tasks, worker.Task{Coords: c, URL: url})
	}
	return tasks, nil
}

// placeTiles fetches all tiles and copies each into its own cell of the
// canvas. Cells are disjoint, so the copies run concurrently.
func (r *Renderer) placeTiles(ctx context.Context, canvas *image.RGBA, box geometry.BoundingBox, tasks []worker.Task) error {
	pool := worker.New(worker.Config{
		Workers:    r.workers,
		Fetcher:    r.source,
		OnProgress: r.onProgress,
	})

	return pool.Run(ctx, tasks, func(res worker.Result) error {
		cell := box.TileRect(res.Task.Coords)
		src := res.Image.Bounds()
		sr := image.Rectangle{Min: src.Min, Max: src.Min.Add(cell.Size())}.Intersect(src)
		xdraw.Copy(canvas, cell.Min, res.Image, sr, xdraw.Src, nil)

		r.log().Debug("tile placed", "tile", res.Task.Coords.String(), "at", cell.Min.String(),
			"duration_ms", res.Elapsed.Milliseconds())
		return nil
	})
}

// asFetchError classifies a cancelled or timed-out render as a transport
// failure, so callers can match it with ErrFetch like any other lost tile.
func asFetchError(err error) error {
	if errors.Is(err, types.ErrFetch) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &types.FetchError{Reason: types.FetchReasonTransport, Err: err}
	}
	return err
}

// crop cuts rect out of canvas.
func crop(canvas *image.RGBA, rect image.Rectangle) image.Image {
	g := gift.New(gift.Crop(rect))
	dst := image.NewRGBA(g.Bounds(canvas.Bounds()))
	g.Draw(dst, canvas)
	return dst
}

func (r *Renderer) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}
