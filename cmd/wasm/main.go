//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/staticmap/internal/pipeline"
	"github.com/MeKo-Tech/staticmap/internal/tile"
)

// BoundingBoxRequest is the JSON argument of staticmapBoundingBox.
// Zoom, Width and Height fall back to the renderer defaults when zero.
type BoundingBoxRequest struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Zoom   *int    `json:"zoom"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

type tileURL struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func errorResult(format string, args ...any) any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// boundingBox computes the tile layout of a map so the browser can place
// tiles itself. Returns a JSON string, or an object with an error field.
func boundingBox(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("missing arguments")
	}

	var in BoundingBoxRequest
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return errorResult("failed to parse request: %v", err)
	}

	req := pipeline.CenteredOn(in.Lat, in.Lon)
	if in.Zoom != nil {
		if *in.Zoom < 0 || *in.Zoom > tile.MaxZoom {
			return errorResult("zoom must be between 0 and %d", tile.MaxZoom)
		}
		req = req.WithZoom(*in.Zoom)
	}
	if in.Width != 0 || in.Height != 0 {
		req = req.WithDimensions(in.Width, in.Height)
	}
	box, err := req.Layout()
	if err != nil {
		return errorResult("%v", err)
	}

	out, err := json.Marshal(box)
	if err != nil {
		return errorResult("failed to encode bounding box: %v", err)
	}
	return string(out)
}

// tileURLs lists the provider URLs of every tile of a map, in row-major order.
// The second argument optionally overrides the URL template.
func tileURLs(this js.Value, args []js.Value) any {
	if len(args) < 1 {
		return errorResult("missing arguments")
	}

	var in BoundingBoxRequest
	if err := json.Unmarshal([]byte(args[0].String()), &in); err != nil {
		return errorResult("failed to parse request: %v", err)
	}

	req := pipeline.CenteredOn(in.Lat, in.Lon)
	if in.Zoom != nil {
		req = req.WithZoom(*in.Zoom)
	}
	if in.Width != 0 || in.Height != 0 {
		req = req.WithDimensions(in.Width, in.Height)
	}
	if len(args) > 1 && args[1].Type() == js.TypeString {
		req = req.WithTileProvider(args[1].String())
	}
	box, err := req.Layout()
	if err != nil {
		return errorResult("%v", err)
	}

	tmpl := req.Template()
	var urls []tileURL
	box.TileRange().ForEach(func(c tile.Coords) {
		urls = append(urls, tileURL{Key: c.String(), URL: tmpl.URL(c)})
	})

	out, err := json.Marshal(urls)
	if err != nil {
		return errorResult("failed to encode tile urls: %v", err)
	}
	return string(out)
}

func main() {
	c := make(chan struct{})

	js.Global().Set("staticmapBoundingBox", js.FuncOf(boundingBox))
	js.Global().Set("staticmapTileURLs", js.FuncOf(tileURLs))

	fmt.Println("staticmap WASM module loaded")
	<-c
}
