package datasource

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/url"
	"strings"
)

// Router dispatches a fetch to the source registered for the URL scheme.
// URLs without a scheme are treated as file paths.
type Router struct {
	routes map[string]TileSource
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]TileSource)}
}

// NewDefaultRouter wires the built-in sources: http and https to httpSrc,
// file paths to a FileSource and mbtiles to a new MBTilesSource.
func NewDefaultRouter(httpSrc *HTTPSource) *Router {
	return NewRouter().
		Handle("http", httpSrc).
		Handle("https", httpSrc).
		Handle("file", FileSource{}).
		Handle("mbtiles", NewMBTilesSource())
}

// Handle registers src for scheme and returns the router.
func (r *Router) Handle(scheme string, src TileSource) *Router {
	r.routes[strings.ToLower(scheme)] = src
	return r
}

// Scheme returns the routing key of rawURL.
func Scheme(rawURL string) string {
	u, err := url.Parse(rawURL)
	// Single letters are Windows drive names, not schemes.
	if err != nil || len(u.Scheme) <= 1 {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}

func (r *Router) route(rawURL string) (TileSource, error) {
	scheme := Scheme(rawURL)
	src, ok := r.routes[scheme]
	if !ok {
		return nil, transportError(rawURL, fmt.Errorf("no tile source for scheme %q", scheme))
	}
	return src, nil
}

// FetchTile fetches the tile through the source matching its scheme.
func (r *Router) FetchTile(ctx context.Context, rawURL string) (image.Image, error) {
	if err := checkFormat(rawURL); err != nil {
		return nil, err
	}
	src, err := r.route(rawURL)
	if err != nil {
		return nil, err
	}
	return src.FetchTile(ctx, rawURL)
}

// FetchRaw returns encoded tile bytes when the routed source supports it.
func (r *Router) FetchRaw(ctx context.Context, rawURL string) ([]byte, error) {
	if err := checkFormat(rawURL); err != nil {
		return nil, err
	}
	src, err := r.route(rawURL)
	if err != nil {
		return nil, err
	}
	raw, ok := src.(RawSource)
	if !ok {
		return nil, transportError(rawURL, fmt.Errorf("source for %q cannot return raw bytes", Scheme(rawURL)))
	}
	return raw.FetchRaw(ctx, rawURL)
}

// Close closes every registered source that holds resources.
func (r *Router) Close() error {
	seen := make(map[io.Closer]bool)
	var errs []error
	for _, src := range r.routes {
		c, ok := src.(io.Closer)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
