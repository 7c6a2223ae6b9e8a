package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/staticmap/internal/output"
	"github.com/MeKo-Tech/staticmap/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve static maps over HTTP",
	Long: `Serve renders maps on request:

  GET /map.png?lat=50.8503&lon=4.3517&zoom=17&width=486&height=300
  GET /map.jpg?...&debug=true
  GET /bbox?...      tile layout as JSON (format=geojson for GeoJSON)
  GET /status        render and fetch counters
  GET /metrics       Prometheus metrics
  GET /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().Int("max-concurrent-renders", 4, "Max concurrent renders; further requests get 503")
	serveCmd.Flags().Duration("render-timeout", time.Minute, "Timeout per render")
	serveCmd.Flags().String("cache-control", "public, max-age=3600", "Cache-Control header for rendered maps")
	serveCmd.Flags().Int("max-width", 2048, "Largest accepted width in pixels")
	serveCmd.Flags().Int("max-height", 2048, "Largest accepted height in pixels")
	serveCmd.Flags().Bool("allow-tile-url", false, "Let clients choose the tile provider with tile_url and shards")
	serveCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	serveCmd.Flags().Int("jpeg-quality", 90, "JPEG quality (1-100)")

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.render_timeout", "render-timeout")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.max_width", "max-width")
	mustBind("serve.max_height", "max-height")
	mustBind("serve.allow_tile_url", "allow-tile-url")
	mustBind("serve.png_compression", "png-compression")
	mustBind("serve.jpeg_quality", "jpeg-quality")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	compression, err := output.ParseCompression(viper.GetString("serve.png_compression"))
	if err != nil {
		return err
	}

	router, src := newTileSource()
	defer router.Close()

	cfg := server.Config{
		TileTemplate:         viper.GetString("tile-url"),
		Shards:               viper.GetStringSlice("shards"),
		AllowTileURL:         viper.GetBool("serve.allow_tile_url"),
		MaxConcurrentRenders: viper.GetInt("serve.max_concurrent_renders"),
		RenderTimeout:        viper.GetDuration("serve.render_timeout"),
		CacheControl:         viper.GetString("serve.cache_control"),
		MaxWidth:             viper.GetInt("serve.max_width"),
		MaxHeight:            viper.GetInt("serve.max_height"),
		PNGCompression:       compression,
		JPEGQuality:          viper.GetInt("serve.jpeg_quality"),
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.New(newRenderer(src, nil), src, cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("map server listening",
		"addr", addr,
		"tile_url", cfg.TileTemplate,
		"max_concurrent_renders", cfg.MaxConcurrentRenders,
		"render_timeout", cfg.RenderTimeout,
		"allow_tile_url", cfg.AllowTileURL,
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
